package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
)

// RegistrationRepository persists wallet device registrations.
type RegistrationRepository interface {
	// Upsert inserts or refreshes the push token; created is false on overwrite.
	Upsert(ctx context.Context, reg *domain.DeviceRegistration) (created bool, err error)
	Delete(ctx context.Context, customerID, deviceID, passTypeID string) error
	ListByCustomer(ctx context.Context, customerID string) ([]domain.DeviceRegistration, error)
	// ListUpdatedSerials returns serials registered by the device under the
	// business whose customers changed after since (all when since is nil).
	ListUpdatedSerials(ctx context.Context, businessID, deviceID, passTypeID string, since *time.Time) ([]domain.UpdatedSerial, error)
}

type registrationRepository struct {
	pool *pgxpool.Pool
}

// NewRegistrationRepository constructs repository.
func NewRegistrationRepository(pool *pgxpool.Pool) RegistrationRepository {
	return &registrationRepository{pool: pool}
}

func (r *registrationRepository) Upsert(ctx context.Context, reg *domain.DeviceRegistration) (bool, error) {
	const query = `
        INSERT INTO device_registrations (customer_id, device_id, pass_type_id, push_token)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (customer_id, device_id, pass_type_id)
        DO UPDATE SET push_token = EXCLUDED.push_token
        RETURNING registered_at, (xmax = 0)`

	var created bool
	err := r.pool.QueryRow(ctx, query,
		reg.CustomerID,
		reg.DeviceID,
		reg.PassTypeID,
		reg.PushToken,
	).Scan(&reg.RegisteredAt, &created)
	return created, err
}

func (r *registrationRepository) Delete(ctx context.Context, customerID, deviceID, passTypeID string) error {
	const query = `
        DELETE FROM device_registrations
        WHERE customer_id=$1 AND device_id=$2 AND pass_type_id=$3`
	_, err := r.pool.Exec(ctx, query, customerID, deviceID, passTypeID)
	return err
}

func (r *registrationRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.DeviceRegistration, error) {
	const query = `
        SELECT customer_id, device_id, pass_type_id, push_token, registered_at
        FROM device_registrations WHERE customer_id=$1
        ORDER BY registered_at`
	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DeviceRegistration
	for rows.Next() {
		var reg domain.DeviceRegistration
		if err := rows.Scan(
			&reg.CustomerID,
			&reg.DeviceID,
			&reg.PassTypeID,
			&reg.PushToken,
			&reg.RegisteredAt,
		); err != nil {
			return nil, err
		}
		result = append(result, reg)
	}
	return result, rows.Err()
}

func (r *registrationRepository) ListUpdatedSerials(ctx context.Context, businessID, deviceID, passTypeID string, since *time.Time) ([]domain.UpdatedSerial, error) {
	const query = `
        SELECT c.id, c.updated_at
        FROM device_registrations r
        JOIN customers c ON c.id = r.customer_id
        WHERE c.business_id=$1 AND r.device_id=$2 AND r.pass_type_id=$3
          AND ($4::timestamptz IS NULL OR c.updated_at > $4::timestamptz)
        ORDER BY c.updated_at`
	rows, err := r.pool.Query(ctx, query, businessID, deviceID, passTypeID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.UpdatedSerial
	for rows.Next() {
		var s domain.UpdatedSerial
		if err := rows.Scan(&s.Serial, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
