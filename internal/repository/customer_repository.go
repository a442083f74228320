package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
)

// CustomerRepository defines persistence access for card holders.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	// EnsureAuthToken stores candidate only when no token exists yet and
	// returns whichever token is persisted afterwards.
	EnsureAuthToken(ctx context.Context, id, candidate string) (string, error)
}

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a Postgres-backed implementation.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	const query = `
        SELECT id, business_id, name, phone, stamps, rewards_redeemed, auth_token, created_at, updated_at
        FROM customers WHERE id=$1`

	var c domain.Customer
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.BusinessID,
		&c.Name,
		&c.Phone,
		&c.Stamps,
		&c.RewardsRedeemed,
		&c.AuthToken,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, notFound("customer", id, err)
	}
	return &c, nil
}

func (r *customerRepository) EnsureAuthToken(ctx context.Context, id, candidate string) (string, error) {
	const mint = `
        UPDATE customers SET auth_token=$2
        WHERE id=$1 AND auth_token IS NULL
        RETURNING auth_token`

	var token string
	err := r.pool.QueryRow(ctx, mint, id, candidate).Scan(&token)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	// Lost the race or the token already existed; the row lock serialised us
	// behind the winner, so the stored value is final.
	const current = `SELECT auth_token FROM customers WHERE id=$1`
	var stored *string
	if err := r.pool.QueryRow(ctx, current, id).Scan(&stored); err != nil {
		return "", notFound("customer", id, err)
	}
	if stored == nil {
		return "", errors.New("auth token missing after conditional mint")
	}
	return *stored, nil
}
