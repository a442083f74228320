package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
	"github.com/spec-kit/wallet-pass-service/internal/testutil"
	apperrors "github.com/spec-kit/wallet-pass-service/pkg/util/errorutil"
)

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	store := testutil.NewStore()
	token := "secret-token"
	store.PutCustomer(domain.Customer{ID: "c1", BusinessID: "b1", AuthToken: &token})
	store.PutCustomer(domain.Customer{ID: "c2", BusinessID: "b1"})

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).SendString(de.Message)
	}})
	mw := NewPassAuthMiddleware(store.Customers(), "ApplePass", nil)
	app.Get("/v1/api/:bid/v1/passes/:passType/:serial", mw.Handle, func(c *fiber.Ctx) error {
		customer, ok := CustomerFromContext(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(customer.ID)
	})
	return app
}

func TestPassAuth(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"valid", "/v1/api/b1/v1/passes/p/c1", "ApplePass secret-token", fiber.StatusOK},
		{"scheme is case insensitive", "/v1/api/b1/v1/passes/p/c1", "applepass secret-token", fiber.StatusOK},
		{"missing header", "/v1/api/b1/v1/passes/p/c1", "", fiber.StatusUnauthorized},
		{"wrong scheme", "/v1/api/b1/v1/passes/p/c1", "Bearer secret-token", fiber.StatusUnauthorized},
		{"wrong token", "/v1/api/b1/v1/passes/p/c1", "ApplePass nope", fiber.StatusUnauthorized},
		{"other business", "/v1/api/b2/v1/passes/p/c1", "ApplePass secret-token", fiber.StatusUnauthorized},
		{"unknown customer", "/v1/api/b1/v1/passes/p/c9", "ApplePass secret-token", fiber.StatusUnauthorized},
		{"customer without token", "/v1/api/b1/v1/passes/p/c2", "ApplePass secret-token", fiber.StatusUnauthorized},
	}
	app := newApp(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestParseAuthorization(t *testing.T) {
	tok, ok := ParseAuthorization("ApplePass  abc ", "ApplePass")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = ParseAuthorization("ApplePass", "ApplePass")
	assert.False(t, ok)
	_, ok = ParseAuthorization("ApplePass ", "ApplePass")
	assert.False(t, ok)
}
