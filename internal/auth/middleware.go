package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
	apperrors "github.com/spec-kit/wallet-pass-service/pkg/util/errorutil"
)

const customerKey = "pass_customer"

// CustomerLookup loads the customer a pass belongs to.
type CustomerLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
}

// PassAuthMiddleware authenticates wallet callbacks with the per-pass token.
// Every rejection yields the same 401 so callers cannot tell which check failed.
type PassAuthMiddleware struct {
	customers CustomerLookup
	scheme    string
	logger    *zap.Logger
}

// NewPassAuthMiddleware constructs middleware for the given Authorization scheme.
func NewPassAuthMiddleware(customers CustomerLookup, scheme string, logger *zap.Logger) *PassAuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PassAuthMiddleware{customers: customers, scheme: scheme, logger: logger}
}

// Handle enforces "<scheme> <token>" against the customer named by :serial
// under business :bid.
func (m *PassAuthMiddleware) Handle(c *fiber.Ctx) error {
	token, ok := ParseAuthorization(c.Get(fiber.HeaderAuthorization), m.scheme)
	if !ok {
		return unauthorized()
	}

	customer, err := m.customers.GetByID(c.UserContext(), c.Params("serial"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return unauthorized()
		}
		return apperrors.MapError(err)
	}
	if customer.BusinessID != c.Params("bid") || !TokenMatches(customer, token) {
		m.logger.Debug("pass token rejected", zap.String("serial", customer.ID))
		return unauthorized()
	}

	c.Locals(customerKey, customer)
	return c.Next()
}

// ParseAuthorization splits "<scheme> <token>". The scheme is case-insensitive.
func ParseAuthorization(header, scheme string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], scheme) {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// TokenMatches compares in constant time. A customer without a minted token
// matches nothing.
func TokenMatches(customer *domain.Customer, token string) bool {
	if !customer.HasAuthToken() || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*customer.AuthToken), []byte(token)) == 1
}

// CustomerFromContext retrieves the authenticated customer.
func CustomerFromContext(c *fiber.Ctx) (*domain.Customer, bool) {
	val := c.Locals(customerKey)
	if val == nil {
		return nil, false
	}
	customer, ok := val.(*domain.Customer)
	return customer, ok
}

func unauthorized() error {
	return apperrors.NewUnauthorized("unauthorized")
}
