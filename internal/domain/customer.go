package domain

import (
	"errors"
	"time"
)

// ErrNotFound marks a missing business or customer.
var ErrNotFound = errors.New("not found")

// Customer is an enrolled card holder. ID doubles as the pass serial number.
type Customer struct {
	ID              string
	BusinessID      string
	Name            string
	Phone           string
	Stamps          int
	RewardsRedeemed int
	AuthToken       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasAuthToken reports whether a wallet token was already minted.
func (c *Customer) HasAuthToken() bool {
	return c != nil && c.AuthToken != nil && *c.AuthToken != ""
}

// VisibleChange reports whether any field rendered on a pass differs.
func VisibleChange(before, after Customer) bool {
	return before.Stamps != after.Stamps ||
		before.RewardsRedeemed != after.RewardsRedeemed ||
		before.Name != after.Name
}
