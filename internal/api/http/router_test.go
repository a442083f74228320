package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/wallet-pass-service/internal/api/http/handlers"
	"github.com/spec-kit/wallet-pass-service/internal/auth"
	"github.com/spec-kit/wallet-pass-service/internal/certs"
	"github.com/spec-kit/wallet-pass-service/internal/config"
	"github.com/spec-kit/wallet-pass-service/internal/domain"
	"github.com/spec-kit/wallet-pass-service/internal/observability"
	"github.com/spec-kit/wallet-pass-service/internal/passkit"
	"github.com/spec-kit/wallet-pass-service/internal/service"
	"github.com/spec-kit/wallet-pass-service/internal/testutil"
)

const (
	passType   = "pass.com.example.test"
	passPath   = "/v1/api/b1/v1/passes/" + passType + "/c1"
	regPath    = "/v1/api/b1/v1/devices/d1/registrations/" + passType + "/c1"
	pollPath   = "/v1/api/b1/v1/devices/d1/registrations/" + passType
	customerAt = "2026-03-01T10:00:00Z"
)

type testServer struct {
	app     *fiber.App
	store   *testutil.Store
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, secrets config.Secrets) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := testutil.NewStore()
	store.PutBusiness(domain.Business{ID: "b1", Name: "Bean There"}, domain.CardStyle{BackgroundColor: "#336699"})
	updated, _ := time.Parse(time.RFC3339, customerAt)
	store.PutCustomer(domain.Customer{ID: "c1", BusinessID: "b1", Name: "Ada", Stamps: 3, UpdatedAt: updated})

	builder := passkit.NewBuilder(passkit.Dependencies{
		Businesses: store,
		Customers:  store.Customers(),
		Certs:      certs.NewMaterializer(logger),
	}, config.PassConfig{PassTypeID: passType, AuthScheme: "ApplePass"}, "https://cards.example.com", secrets, logger)
	passes := service.NewPassKitService(service.PassKitDependencies{
		Registrations: store.Registrations(),
		Builder:       builder,
		PassTypeID:    passType,
		Logger:        logger,
	})
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Metrics:  handlers.NewMetricsHandler(metrics),
		PassKit:  handlers.NewPassKitHandler(passes),
		Generate: handlers.NewGenerateHandler(passes),
		Google: handlers.NewGoogleWalletHandler(service.NewGoogleWalletService(service.GoogleWalletDependencies{
			Businesses: store,
			Customers:  store.Customers(),
		})),
		PassAuth: auth.NewPassAuthMiddleware(store.Customers(), "ApplePass", logger),
	})
	return &testServer{app: app, store: store, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path, token, body string, headers ...string) (int, []byte, map[string]string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "ApplePass "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]string{}
	for k := range resp.Header {
		out[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, data, out
}

// issue downloads the pass once, minting the customer's token.
func (s *testServer) issue(t *testing.T) string {
	t.Helper()
	status, body, headers := s.do(t, "GET", "/v1/pass?bid=b1&cid=c1", "", "")
	require.Equal(t, fiber.StatusOK, status, string(body))
	assert.Equal(t, "attachment; filename=c1.pkpass", headers["Content-Disposition"])
	assert.Equal(t, passkit.MIMEType, headers["Content-Type"])

	pass, err := passkit.ParsePass(body)
	require.NoError(t, err)
	assert.Equal(t, "c1", pass.SerialNumber)
	assert.Equal(t, "https://cards.example.com/v1/api/b1", pass.WebServiceURL)
	return pass.AuthenticationToken
}

func TestRegisteredDeviceFetchesPass(t *testing.T) {
	s := newTestServer(t, testutil.NewSigningFixture(t).Secrets())
	token := s.issue(t)

	status, _, _ := s.do(t, "POST", regPath, token, `{"pushToken":"apns-1"}`)
	assert.Equal(t, fiber.StatusCreated, status)

	status, body, headers := s.do(t, "GET", passPath, token, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, passkit.MIMEType, headers["Content-Type"])
	assert.Equal(t, "Sun, 01 Mar 2026 10:00:00 GMT", headers["Last-Modified"])
	pass, err := passkit.ParsePass(body)
	require.NoError(t, err)
	assert.Equal(t, token, pass.AuthenticationToken)

	status, body, _ = s.do(t, "GET", passPath, "wrong-token", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, string(body), `"message":"unauthorized"`)
}

func TestRegisterTwiceOverwritesPushToken(t *testing.T) {
	s := newTestServer(t, testutil.NewSigningFixture(t).Secrets())
	token := s.issue(t)

	status, _, _ := s.do(t, "POST", regPath, token, `{"pushToken":"apns-1"}`)
	assert.Equal(t, fiber.StatusCreated, status)
	status, _, _ = s.do(t, "POST", regPath, token, `{"pushToken":"apns-2"}`)
	assert.Equal(t, fiber.StatusOK, status)

	assert.Equal(t, 1, s.store.RegistrationCount())
}

func TestUnregisteredDeviceWithoutCredentialIsDenied(t *testing.T) {
	s := newTestServer(t, testutil.NewSigningFixture(t).Secrets())
	token := s.issue(t)

	status, _, _ := s.do(t, "POST", regPath, token, `{"pushToken":"apns-1"}`)
	require.Equal(t, fiber.StatusCreated, status)
	status, _, _ = s.do(t, "DELETE", regPath, token, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Zero(t, s.store.RegistrationCount())

	status, _, _ = s.do(t, "GET", passPath, "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestUnregisterRequiresToken(t *testing.T) {
	s := newTestServer(t, testutil.NewSigningFixture(t).Secrets())
	token := s.issue(t)
	s.do(t, "POST", regPath, token, `{"pushToken":"apns-1"}`)

	status, _, _ := s.do(t, "DELETE", regPath, "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, 1, s.store.RegistrationCount())
}

func TestRegisterWithoutPushTokenIsRejected(t *testing.T) {
	s := newTestServer(t, testutil.NewSigningFixture(t).Secrets())
	token := s.issue(t)

	status, _, _ := s.do(t, "POST", regPath, token, `{}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestPollReturnsChangedSerials(t *testing.T) {
	s := newTestServer(t, testutil.NewSigningFixture(t).Secrets())
	token := s.issue(t)

	status, _, _ := s.do(t, "GET", pollPath, "", "")
	assert.Equal(t, fiber.StatusNoContent, status)

	s.do(t, "POST", regPath, token, `{"pushToken":"apns-1"}`)
	status, body, _ := s.do(t, "GET", pollPath, "", "")
	require.Equal(t, fiber.StatusOK, status)

	var resp struct {
		SerialNumbers []string `json:"serialNumbers"`
		LastUpdated   string   `json:"lastUpdated"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, []string{"c1"}, resp.SerialNumbers)
	require.NotEmpty(t, resp.LastUpdated)

	status, _, _ = s.do(t, "GET", pollPath+"?passesUpdatedSince="+resp.LastUpdated, "", "")
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestFetchHonoursIfModifiedSince(t *testing.T) {
	s := newTestServer(t, testutil.NewSigningFixture(t).Secrets())
	token := s.issue(t)

	status, _, _ := s.do(t, "GET", passPath, token, "", "If-Modified-Since", "Sun, 01 Mar 2026 10:00:00 GMT")
	assert.Equal(t, fiber.StatusNotModified, status)

	status, _, _ = s.do(t, "GET", passPath, token, "", "If-Modified-Since", "Sun, 01 Mar 2026 09:59:59 GMT")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestFetchAfterSubSecondUpdateIsNotCached(t *testing.T) {
	s := newTestServer(t, testutil.NewSigningFixture(t).Secrets())
	token := s.issue(t)

	customer := s.store.Customer("c1")
	customer.Stamps = 4
	customer.UpdatedAt = customer.UpdatedAt.Add(800 * time.Millisecond)
	s.store.PutCustomer(customer)

	status, _, _ := s.do(t, "GET", passPath, token, "", "If-Modified-Since", "Sun, 01 Mar 2026 10:00:00 GMT")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestOneShotErrors(t *testing.T) {
	s := newTestServer(t, config.Secrets{})

	status, body, _ := s.do(t, "GET", "/v1/pass?bid=b1", "", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "bid and cid are required", string(body))

	status, body, _ = s.do(t, "GET", "/v1/pass?bid=b1&cid=nobody", "", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Contains(t, string(body), "not found")

	status, body, _ = s.do(t, "GET", "/v1/pass?bid=b1&cid=c1", "", "")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, string(body), "pass signing")
}

func TestLogEndpointAcceptsMessages(t *testing.T) {
	s := newTestServer(t, testutil.NewSigningFixture(t).Secrets())

	status, _, _ := s.do(t, "POST", "/v1/api/b1/v1/log", "", `{"logs":["Web service error: 500"]}`)
	assert.Equal(t, fiber.StatusOK, status)
}

func TestGoogleSaveDisabled(t *testing.T) {
	s := newTestServer(t, config.Secrets{})

	status, body, _ := s.do(t, "GET", "/v1/google/save?bid=b1&cid=c1", "", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Contains(t, string(body), "GOOGLE_WALLET_DISABLED")
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	s := newTestServer(t, config.Secrets{})

	status, body, _ := s.do(t, "GET", "/nope", "", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Contains(t, string(body), `"code":"NOT_FOUND"`)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, testutil.NewSigningFixture(t).Secrets())
	s.do(t, "GET", pollPath, "", "")

	status, body, _ := s.do(t, "GET", "/metrics", "", "")
	require.Equal(t, fiber.StatusOK, status)
	var snap observability.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.EqualValues(t, 1, snap.Requests["/v1/api/:bid/v1/devices/:deviceId/registrations/:passType|GET|204"])
}
