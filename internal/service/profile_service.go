package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"bybench/internal/ids"
	"bybench/internal/models"
	"bybench/internal/repository"
)

// AvatarUploader stores a vetted image and returns where it is served from.
type AvatarUploader interface {
	Upload(ctx context.Context, input AttachmentInput) (Attachment, error)
}

type ProfileService struct {
	users   UserStore
	sellers SellerStore
	avatars AvatarUploader
	log     zerolog.Logger
}

func NewProfileService(users UserStore, sellers SellerStore, avatars AvatarUploader, log zerolog.Logger) *ProfileService {
	return &ProfileService{users: users, sellers: sellers, avatars: avatars, log: log}
}

type Profile struct {
	User          models.User
	SellerProfile *models.SellerProfile
}

func (s *ProfileService) Me(ctx context.Context, userID string) (Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, err
	}
	return s.withSeller(ctx, user)
}

func (s *ProfileService) withSeller(ctx context.Context, user models.User) (Profile, error) {
	profile := Profile{User: user}
	if user.Role != models.UserRoleSeller {
		return profile, nil
	}
	seller, err := s.sellers.GetByUserID(ctx, user.ID)
	switch {
	case err == nil:
		profile.SellerProfile = &seller
	case !errors.Is(err, repository.ErrSellerProfileNotFound):
		return Profile{}, err
	}
	return profile, nil
}

type SellerProfileInput struct {
	CompanyName    string
	CompanyAddress string
	City           string
	Country        string
}

// CreateSellerProfile submits a seller's company details for review.
func (s *ProfileService) CreateSellerProfile(ctx context.Context, userID string, input SellerProfileInput) (models.SellerProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.SellerProfile{}, ErrUserNotFound
		}
		return models.SellerProfile{}, err
	}
	if user.Role != models.UserRoleSeller {
		return models.SellerProfile{}, ErrNotSeller
	}

	profile, err := s.sellers.Create(ctx, models.SellerProfile{
		ID:             ids.New(),
		UserID:         userID,
		CompanyName:    strings.TrimSpace(input.CompanyName),
		CompanyAddress: strings.TrimSpace(input.CompanyAddress),
		City:           strings.TrimSpace(input.City),
		Country:        strings.TrimSpace(input.Country),
		Status:         models.SellerStatusPending,
	})
	if err != nil {
		if errors.Is(err, repository.ErrSellerProfileExists) {
			return models.SellerProfile{}, ErrSellerProfileExists
		}
		return models.SellerProfile{}, err
	}

	s.log.Info().Str("user_id", userID).Msg("seller profile submitted")
	return profile, nil
}

type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	NickName  *string
	Phone     *string
	Picture   *AttachmentInput
	Seller    models.SellerPatch
}

// UpdateProfile applies a partial edit of the caller's own account. Company
// details can only be edited once the seller profile has been approved.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Profile{}, ErrUserNotFound
		}
		return Profile{}, err
	}

	patch := models.UserPatch{
		FirstName: trimmed(input.FirstName),
		LastName:  trimmed(input.LastName),
		NickName:  trimmed(input.NickName),
		Phone:     trimmed(input.Phone),
	}
	if blank(patch.FirstName) || blank(patch.LastName) || blank(patch.Phone) {
		return Profile{}, ErrBlankProfileField
	}
	seller := trimSeller(input.Seller)
	if blank(seller.CompanyName) || blank(seller.CompanyAddress) || blank(seller.City) || blank(seller.Country) {
		return Profile{}, ErrBlankProfileField
	}

	if !seller.Empty() {
		if user.Role != models.UserRoleSeller {
			return Profile{}, ErrNotSeller
		}
		current, err := s.sellers.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrSellerProfileNotFound) {
				return Profile{}, ErrSellerProfileNotFound
			}
			return Profile{}, err
		}
		if current.Status != models.SellerStatusApproved {
			return Profile{}, ErrSellerNotApproved
		}
	}

	if input.Picture != nil {
		if s.avatars == nil {
			return Profile{}, ErrUnsupportedAttachment
		}
		avatar, err := s.avatars.Upload(ctx, *input.Picture)
		if err != nil {
			return Profile{}, err
		}
		patch.ProfilePicture = &avatar.URL
	}

	updated, err := s.users.Update(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return Profile{}, ErrDuplicateUser
		}
		return Profile{}, err
	}
	if !seller.Empty() {
		if _, err := s.sellers.Update(ctx, userID, seller); err != nil {
			return Profile{}, err
		}
	}

	s.log.Info().Str("user_id", userID).Bool("avatar", input.Picture != nil).Bool("seller", !seller.Empty()).Msg("profile updated")
	return s.withSeller(ctx, updated)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func blank(v *string) bool {
	return v != nil && *v == ""
}

func trimSeller(p models.SellerPatch) models.SellerPatch {
	return models.SellerPatch{
		CompanyName:    trimmed(p.CompanyName),
		CompanyAddress: trimmed(p.CompanyAddress),
		City:           trimmed(p.City),
		Country:        trimmed(p.Country),
	}
}
