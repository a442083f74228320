package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
	"github.com/spec-kit/wallet-pass-service/internal/events"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// ChangeListener turns customer-row notifications into events.
type ChangeListener struct {
	pool       *pgxpool.Pool
	channel    string
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewChangeListener listens on channel using a connection taken from pool.
func NewChangeListener(pool *pgxpool.Pool, channel string, dispatcher events.Dispatcher, logger *zap.Logger) *ChangeListener {
	return &ChangeListener{pool: pool, channel: channel, dispatcher: dispatcher, logger: logger}
}

// Run blocks until ctx is cancelled, reconnecting with back-off whenever the
// listening connection is lost.
func (l *ChangeListener) Run(ctx context.Context) error {
	if l.pool == nil {
		l.logger.Warn("no postgres pool available; change listener disabled")
		return nil
	}
	backoff := minBackoff
	for {
		started := time.Now()
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > maxBackoff {
			backoff = minBackoff
		}
		l.logger.Warn("change listener disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (l *ChangeListener) listen(ctx context.Context) error {
	pooled, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	// The session keeps LISTEN state, so it must never return to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.logger.Info("listening for customer changes", zap.String("channel", l.channel))

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.handle(ctx, n.Payload)
	}
}

func (l *ChangeListener) handle(ctx context.Context, payload string) {
	change, err := decodeChange(payload)
	if err != nil {
		l.logger.Warn("discarding malformed change notification", zap.Error(err))
		return
	}
	_ = l.dispatcher.Publish(ctx, events.Event{
		ID:         uuid.NewString(),
		Type:       events.EventCustomerUpdated,
		BusinessID: change.After.BusinessID,
		CustomerID: change.After.ID,
		Timestamp:  time.Now().UTC(),
		Payload:    change,
	})
}

type customerImage struct {
	ID              string    `json:"id"`
	BusinessID      string    `json:"business_id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	Stamps          int       `json:"stamps"`
	RewardsRedeemed int       `json:"rewards_redeemed"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (c customerImage) toDomain() domain.Customer {
	return domain.Customer{
		ID:              c.ID,
		BusinessID:      c.BusinessID,
		Name:            c.Name,
		Phone:           c.Phone,
		Stamps:          c.Stamps,
		RewardsRedeemed: c.RewardsRedeemed,
		UpdatedAt:       c.UpdatedAt,
	}
}

func decodeChange(payload string) (events.CustomerUpdatedPayload, error) {
	var msg struct {
		Before *customerImage `json:"before"`
		After  *customerImage `json:"after"`
	}
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return events.CustomerUpdatedPayload{}, fmt.Errorf("decode change: %w", err)
	}
	if msg.Before == nil || msg.After == nil || msg.After.ID == "" {
		return events.CustomerUpdatedPayload{}, errors.New("change notification missing row images")
	}
	return events.CustomerUpdatedPayload{Before: msg.Before.toDomain(), After: msg.After.toDomain()}, nil
}
