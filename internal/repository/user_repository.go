package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bybench/internal/models"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user with this email or phone already exists")
	ErrOTPNotPending = errors.New("otp no longer pending")
)

const uniqueViolation = "23505"

const userColumns = `
	id, first_name, last_name, nick_name, email, phone, password_hash, role, profile_picture,
	is_verified, is_suspended, otp_code, otp_expires_at, otp_attempts, last_login_at,
	created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.NickName,
		&user.Email,
		&user.Phone,
		&user.PasswordHash,
		&user.Role,
		&user.ProfilePicture,
		&user.IsVerified,
		&user.IsSuspended,
		&user.OTPCode,
		&user.OTPExpiresAt,
		&user.OTPAttempts,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	const query = `
		INSERT INTO users (
			id, first_name, last_name, nick_name, email, phone, password_hash, role,
			profile_picture, is_verified, is_suspended, otp_attempts, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, 0, NOW(), NOW()
		)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.NickName,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.Role,
		user.ProfilePicture,
		user.IsVerified,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	return err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) FindByEmailOrPhone(ctx context.Context, email, phone string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 OR phone = $2 LIMIT 1`
	return scanUser(r.pool.QueryRow(ctx, query, email, phone))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetManyByID returns the users that exist, keyed by id.
func (r *UserRepository) GetManyByID(ctx context.Context, userIDs []string) (map[string]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[])`
	rows, err := r.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make(map[string]models.User, len(userIDs))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users[user.ID] = user
	}
	return users, rows.Err()
}

// SetOTP stores a freshly issued code hash and restarts the attempt counter.
func (r *UserRepository) SetOTP(ctx context.Context, id, codeHash string, expiresAt time.Time) error {
	const query = `
		UPDATE users
		SET otp_code = $2, otp_expires_at = $3, otp_attempts = 0, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, codeHash, expiresAt)
}

// IncrementOTPAttempts records one mismatch and suspends the account once the
// counter reaches max. It returns the new counter and suspension flag.
func (r *UserRepository) IncrementOTPAttempts(ctx context.Context, id string, max int) (int, bool, error) {
	const query = `
		UPDATE users
		SET otp_attempts = otp_attempts + 1,
		    is_suspended = is_suspended OR otp_attempts + 1 >= $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING otp_attempts, is_suspended
	`
	var (
		attempts  int
		suspended bool
	)
	if err := r.pool.QueryRow(ctx, query, id, max).Scan(&attempts, &suspended); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ErrUserNotFound
		}
		return 0, false, err
	}
	return attempts, suspended, nil
}

func (r *UserRepository) MarkVerified(ctx context.Context, id string) error {
	const query = `
		UPDATE users
		SET is_verified = TRUE, otp_code = NULL, otp_expires_at = NULL, otp_attempts = 0, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id)
}

// ResetPassword replaces the hash and consumes codeHash in one statement, so
// a code redeemed concurrently succeeds exactly once.
func (r *UserRepository) ResetPassword(ctx context.Context, id, codeHash, passwordHash string) error {
	const query = `
		UPDATE users
		SET password_hash = $3, otp_code = NULL, otp_expires_at = NULL, otp_attempts = 0, updated_at = NOW()
		WHERE id = $1 AND otp_code = $2
	`
	cmd, err := r.pool.Exec(ctx, query, id, codeHash, passwordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOTPNotPending
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, passwordHash)
}

// Update applies the non-nil fields of patch and returns the stored row.
func (r *UserRepository) Update(ctx context.Context, id string, patch models.UserPatch) (models.User, error) {
	query := `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			nick_name = COALESCE($4, nick_name),
			email = COALESCE($5, email),
			phone = COALESCE($6, phone),
			profile_picture = COALESCE($7, profile_picture),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, id,
		patch.FirstName,
		patch.LastName,
		patch.NickName,
		patch.Email,
		patch.Phone,
		patch.ProfilePicture,
	))
	if isUniqueViolation(err) {
		return models.User{}, ErrDuplicateUser
	}
	return user, err
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_login_at = $2 WHERE id = $1`
	return r.execOne(ctx, query, id, at)
}

// ToggleSuspended flips the flag and returns the new value. Lifting a
// suspension also clears the OTP attempt history.
func (r *UserRepository) ToggleSuspended(ctx context.Context, id string) (bool, error) {
	const query = `
		UPDATE users
		SET is_suspended = NOT is_suspended,
		    otp_attempts = CASE WHEN is_suspended THEN 0 ELSE otp_attempts END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING is_suspended
	`
	var suspended bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&suspended); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrUserNotFound
		}
		return false, err
	}
	return suspended, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// ClearExpiredOTPs drops codes whose expiry has passed. Attempts and
// suspension are left alone.
func (r *UserRepository) ClearExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE users
		SET otp_code = NULL, otp_expires_at = NULL
		WHERE otp_code IS NOT NULL AND otp_expires_at < $1
	`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
