package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"bybench/internal/models"
	"bybench/internal/repository"
	"bybench/internal/security"
)

// AdminService holds operator actions, including the only path that lifts
// an OTP suspension.
type AdminService struct {
	users   UserStore
	sellers SellerStore
	log     zerolog.Logger
}

func NewAdminService(users UserStore, sellers SellerStore, log zerolog.Logger) *AdminService {
	return &AdminService{users: users, sellers: sellers, log: log}
}

func (s *AdminService) ToggleSuspension(ctx context.Context, adminID, userID string) (bool, error) {
	suspended, err := s.users.ToggleSuspended(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	s.log.Info().Str("admin_id", adminID).Str("user_id", userID).Bool("suspended", suspended).Msg("suspension toggled")
	return suspended, nil
}

func (s *AdminService) SetSellerStatus(ctx context.Context, adminID, userID string, status models.SellerStatus) (models.SellerProfile, error) {
	if !status.Valid() {
		return models.SellerProfile{}, ErrInvalidSellerStatus
	}
	profile, err := s.sellers.UpdateStatus(ctx, userID, status)
	if err != nil {
		if errors.Is(err, repository.ErrSellerProfileNotFound) {
			return models.SellerProfile{}, ErrSellerProfileNotFound
		}
		return models.SellerProfile{}, err
	}
	s.log.Info().Str("admin_id", adminID).Str("user_id", userID).Str("status", string(status)).Msg("seller status updated")
	return profile, nil
}

type SellerUpdateInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Password  *string
	Seller    models.SellerPatch
}

// UpdateSeller edits a seller's account and company details on their behalf.
func (s *AdminService) UpdateSeller(ctx context.Context, adminID, userID string, input SellerUpdateInput) (Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, err
	}
	if user.Role != models.UserRoleSeller {
		return Profile{}, ErrNotSeller
	}

	patch := models.UserPatch{
		FirstName: trimmed(input.FirstName),
		LastName:  trimmed(input.LastName),
		Phone:     trimmed(input.Phone),
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		patch.Email = &email
	}
	seller := trimSeller(input.Seller)
	if blank(patch.FirstName) || blank(patch.LastName) || blank(patch.Phone) || blank(patch.Email) ||
		blank(seller.CompanyName) || blank(seller.CompanyAddress) || blank(seller.City) || blank(seller.Country) {
		return Profile{}, ErrBlankProfileField
	}

	var passwordHash string
	if input.Password != nil {
		if len(*input.Password) < minPasswordLength {
			return Profile{}, ErrWeakPassword
		}
		if passwordHash, err = security.HashPassword(*input.Password); err != nil {
			return Profile{}, err
		}
	}

	current, err := s.sellers.GetByUserID(ctx, userID)
	hasProfile := err == nil
	if err != nil && !errors.Is(err, repository.ErrSellerProfileNotFound) {
		return Profile{}, err
	}
	if !seller.Empty() && !hasProfile {
		return Profile{}, ErrSellerProfileNotFound
	}

	updated, err := s.users.Update(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return Profile{}, ErrDuplicateUser
		}
		return Profile{}, err
	}
	if passwordHash != "" {
		if err := s.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
			return Profile{}, err
		}
	}

	profile := Profile{User: updated}
	if hasProfile {
		profile.SellerProfile = &current
	}
	if !seller.Empty() {
		next, err := s.sellers.Update(ctx, userID, seller)
		if err != nil {
			return Profile{}, err
		}
		profile.SellerProfile = &next
	}

	s.log.Info().Str("admin_id", adminID).Str("user_id", userID).Bool("password", passwordHash != "").Msg("seller updated")
	return profile, nil
}

func (s *AdminService) DeleteUser(ctx context.Context, adminID, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	s.log.Warn().Str("admin_id", adminID).Str("user_id", userID).Msg("user deleted")
	return nil
}
