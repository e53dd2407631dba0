package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bybench/internal/ids"
	"bybench/internal/mail"
	"bybench/internal/models"
	"bybench/internal/repository"
	"bybench/internal/security"
)

const minPasswordLength = 8

type AuthService struct {
	users  UserStore
	otp    *OTPVerifier
	tokens *security.TokenIssuer
	log    zerolog.Logger
	now    func() time.Time
	verify func(password, hash string) (bool, error)
}

func NewAuthService(users UserStore, otp *OTPVerifier, tokens *security.TokenIssuer, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		otp:    otp,
		tokens: tokens,
		log:    log,
		now:    time.Now,
		verify: security.VerifyPassword,
	}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	NickName  string
	Email     string
	Phone     string
	Password  string
	Role      models.UserRole
}

// Register creates an unverified account and sends its verification code.
// Mail failures are logged only; the user can ask for a resend.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	input.Email = normalizeEmail(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	if len(input.Password) < minPasswordLength {
		return models.User{}, ErrWeakPassword
	}
	if input.Role == "" {
		input.Role = models.UserRoleUser
	}
	if input.Role != models.UserRoleUser && input.Role != models.UserRoleSeller {
		return models.User{}, ErrInvalidRole
	}

	if _, err := s.users.FindByEmailOrPhone(ctx, input.Email, input.Phone); err == nil {
		return models.User{}, ErrDuplicateUser
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		ID:           ids.New(),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		NickName:     strings.TrimSpace(input.NickName),
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: passwordHash,
		Role:         input.Role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return models.User{}, ErrDuplicateUser
		}
		return models.User{}, err
	}

	if err := s.otp.Issue(ctx, user, mail.PurposeRegistration); err != nil {
		if !errors.Is(err, ErrMailDispatch) {
			return models.User{}, err
		}
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("registration otp email not sent")
	}

	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	return user, nil
}

func (s *AuthService) Verify(ctx context.Context, email, code string) (models.User, error) {
	return s.otp.Verify(ctx, email, code, mail.PurposeRegistration)
}

func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	if user.IsSuspended {
		return ErrAccountSuspended
	}
	return s.otp.Issue(ctx, user, mail.PurposeRegistration)
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = s.verify(input.Password, security.DecoyHash())
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	ok, err := s.verify(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return LoginResult{}, ErrNotVerified
	}
	if user.IsSuspended {
		return LoginResult{}, ErrAccountSuspended
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email, string(user.Role))
	if err != nil {
		return LoginResult{}, err
	}

	loginAt := s.now()
	go s.recordLogin(user.ID, loginAt)

	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// recordLogin runs detached from the request so a slow write never delays the response.
func (s *AuthService) recordLogin(userID string, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.users.TouchLastLogin(ctx, userID, at); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("record last login")
	}
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsSuspended {
		return ErrAccountSuspended
	}
	return s.otp.Issue(ctx, user, mail.PurposePasswordReset)
}

type ResetPasswordInput struct {
	Email       string
	Code        string
	NewPassword string
}

func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if len(input.NewPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	user, err := s.otp.Verify(ctx, input.Email, input.Code, mail.PurposePasswordReset)
	if err != nil {
		return err
	}

	hash, err := security.HashPassword(input.NewPassword)
	if err != nil {
		return err
	}
	if user.OTPCode == nil {
		return ErrOTPExpired
	}
	if err := s.users.ResetPassword(ctx, user.ID, *user.OTPCode, hash); err != nil {
		if errors.Is(err, repository.ErrOTPNotPending) {
			return ErrOTPExpired
		}
		return fmt.Errorf("reset password: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := security.VerifyPassword(current, user.PasswordHash)
	if err != nil || !ok {
		return ErrWrongPassword
	}

	hash, err := security.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hash)
}

// Authenticate resolves a session token to its live account.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.User, *security.AccessClaims, error) {
	if token == "" {
		return models.User{}, nil, ErrInvalidToken
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return models.User{}, nil, ErrInvalidToken.Wrap(err)
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, nil, ErrInvalidToken
		}
		return models.User{}, nil, err
	}
	if user.IsSuspended {
		return models.User{}, nil, ErrAccountSuspended
	}
	return user, claims, nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

func (s *AuthService) getUser(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}
