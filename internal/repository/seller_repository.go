package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bybench/internal/models"
)

var (
	ErrSellerProfileNotFound = errors.New("seller profile not found")
	ErrSellerProfileExists   = errors.New("seller profile already exists")
)

const sellerColumns = `
	id, user_id, company_name, company_address, city, country, status,
	payment_account_id, payment_onboarded, created_at, updated_at
`

type SellerRepository struct {
	pool *pgxpool.Pool
}

func NewSellerRepository(pool *pgxpool.Pool) *SellerRepository {
	return &SellerRepository{pool: pool}
}

func (r *SellerRepository) Create(ctx context.Context, profile models.SellerProfile) (models.SellerProfile, error) {
	query := `
		INSERT INTO seller_profiles (
			id, user_id, company_name, company_address, city, country, status,
			payment_account_id, payment_onboarded, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()
		)
		RETURNING ` + sellerColumns

	row := r.pool.QueryRow(ctx, query,
		profile.ID,
		profile.UserID,
		profile.CompanyName,
		profile.CompanyAddress,
		profile.City,
		profile.Country,
		profile.Status,
		profile.PaymentAccountID,
		profile.PaymentOnboarded,
	)
	created, err := scanSeller(row)
	if isUniqueViolation(err) {
		return models.SellerProfile{}, ErrSellerProfileExists
	}
	return created, err
}

func (r *SellerRepository) GetByUserID(ctx context.Context, userID string) (models.SellerProfile, error) {
	query := `SELECT ` + sellerColumns + ` FROM seller_profiles WHERE user_id = $1`
	return scanSeller(r.pool.QueryRow(ctx, query, userID))
}

func (r *SellerRepository) UpdateStatus(ctx context.Context, userID string, status models.SellerStatus) (models.SellerProfile, error) {
	query := `
		UPDATE seller_profiles SET status = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + sellerColumns
	return scanSeller(r.pool.QueryRow(ctx, query, userID, status))
}

func (r *SellerRepository) Update(ctx context.Context, userID string, patch models.SellerPatch) (models.SellerProfile, error) {
	query := `
		UPDATE seller_profiles SET
			company_name = COALESCE($2, company_name),
			company_address = COALESCE($3, company_address),
			city = COALESCE($4, city),
			country = COALESCE($5, country),
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + sellerColumns
	return scanSeller(r.pool.QueryRow(ctx, query, userID,
		patch.CompanyName,
		patch.CompanyAddress,
		patch.City,
		patch.Country,
	))
}

func scanSeller(row rowScanner) (models.SellerProfile, error) {
	var p models.SellerProfile
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.CompanyName,
		&p.CompanyAddress,
		&p.City,
		&p.Country,
		&p.Status,
		&p.PaymentAccountID,
		&p.PaymentOnboarded,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.SellerProfile{}, ErrSellerProfileNotFound
		}
		return models.SellerProfile{}, err
	}
	return p, nil
}
