package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"bybench/internal/config"
	"bybench/internal/mail"
	"bybench/internal/models"
	"bybench/internal/repository"
	"bybench/internal/security"
)

// OTPVerifier issues and checks attempt-limited one-time codes.
//
// Every issuance resets the attempt counter. Suspension is sticky: once the
// counter reaches MaxAttempts the account stays suspended until an admin
// lifts it, so reissuing codes never gets around the lock.
type OTPVerifier struct {
	users    UserStore
	mailer   mail.Mailer
	cfg      config.OTPConfig
	log      zerolog.Logger
	now      func() time.Time
	generate func(length int) (string, error)
}

func NewOTPVerifier(users UserStore, mailer mail.Mailer, cfg config.OTPConfig, log zerolog.Logger) *OTPVerifier {
	return &OTPVerifier{
		users:    users,
		mailer:   mailer,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		generate: security.GenerateOTP,
	}
}

// Issue stores a fresh code for user and mails it. A mail failure is returned
// wrapped in ErrMailDispatch after the code has been persisted.
func (v *OTPVerifier) Issue(ctx context.Context, user models.User, purpose mail.Purpose) error {
	code, err := v.generate(v.cfg.Length)
	if err != nil {
		return err
	}
	hash, err := security.HashOTP(code)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	expiresAt := v.now().Add(v.cfg.TTL)
	if err := v.users.SetOTP(ctx, user.ID, hash, expiresAt); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("store otp: %w", err)
	}

	msg, err := mail.OTPMessage(user.Email, user.FirstName, code, purpose, v.cfg.TTL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMailDispatch, err)
	}
	if err := v.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMailDispatch, err)
	}

	v.log.Info().
		Str("user_id", user.ID).
		Str("purpose", string(purpose)).
		Time("expires_at", expiresAt).
		Msg("otp issued")
	return nil
}

// Verify checks code for the account behind email. Registration codes mark
// the account verified; reset codes are left for the caller to consume.
func (v *OTPVerifier) Verify(ctx context.Context, email, code string, purpose mail.Purpose) (models.User, error) {
	user, err := v.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}

	if purpose == mail.PurposeRegistration && user.IsVerified {
		return models.User{}, ErrAlreadyVerified
	}
	if user.IsSuspended {
		return models.User{}, ErrAccountSuspended
	}
	if user.OTPCode == nil || user.OTPExpiresAt == nil || v.now().After(*user.OTPExpiresAt) {
		return models.User{}, ErrOTPExpired
	}

	if !security.VerifyOTP(strings.TrimSpace(code), *user.OTPCode) {
		attempts, suspended, err := v.users.IncrementOTPAttempts(ctx, user.ID, v.cfg.MaxAttempts)
		if err != nil {
			return models.User{}, fmt.Errorf("record otp attempt: %w", err)
		}
		if suspended {
			v.log.Warn().Str("user_id", user.ID).Int("attempts", attempts).Msg("account suspended after otp attempts")
			return models.User{}, ErrTooManyAttempts
		}
		return models.User{}, invalidOTP(v.cfg.MaxAttempts - attempts)
	}

	if purpose == mail.PurposeRegistration {
		if err := v.users.MarkVerified(ctx, user.ID); err != nil {
			return models.User{}, fmt.Errorf("mark verified: %w", err)
		}
		user.IsVerified = true
		user.OTPCode = nil
		user.OTPExpiresAt = nil
		user.OTPAttempts = 0
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
