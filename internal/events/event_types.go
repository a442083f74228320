package events

import (
	"time"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCustomerUpdated EventType = "customer_updated"
)

// Event represents a change observed in the store.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	BusinessID string      `json:"business_id"`
	CustomerID string      `json:"customer_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// CustomerUpdatedPayload carries the row images around an update.
type CustomerUpdatedPayload struct {
	Before domain.Customer
	After  domain.Customer
}
