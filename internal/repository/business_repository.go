package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
)

// BusinessRepository reads merchant profiles and their card styling.
type BusinessRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Business, error)
	GetCardStyle(ctx context.Context, businessID string) (*domain.CardStyle, error)
}

type businessRepository struct {
	pool *pgxpool.Pool
}

// NewBusinessRepository returns a Postgres-backed implementation.
func NewBusinessRepository(pool *pgxpool.Pool) BusinessRepository {
	return &businessRepository{pool: pool}
}

func (r *businessRepository) GetByID(ctx context.Context, id string) (*domain.Business, error) {
	const query = `
        SELECT id, name, created_at, updated_at
        FROM businesses WHERE id=$1`

	var b domain.Business
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID,
		&b.Name,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, notFound("business", id, err)
	}
	return &b, nil
}

// GetCardStyle falls back to an unstyled card when the business never configured one.
func (r *businessRepository) GetCardStyle(ctx context.Context, businessID string) (*domain.CardStyle, error) {
	const query = `
        SELECT business_id, background_color, text_scheme, reward_text, logo_url
        FROM card_styles WHERE business_id=$1`

	var s domain.CardStyle
	err := r.pool.QueryRow(ctx, query, businessID).Scan(
		&s.BusinessID,
		&s.BackgroundColor,
		&s.TextScheme,
		&s.RewardText,
		&s.LogoURL,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.CardStyle{BusinessID: businessID, TextScheme: domain.TextSchemeLight}, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return err
}
