package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/wallet-pass-service/internal/config"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/v1/pass", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/v1/pass", "GET", 200, 30*time.Millisecond)
	m.RecordError("/v1/pass", "GET", "NOT_FOUND")
	m.RecordPush("apns", PushDelivered)
	m.RecordPush("apns", PushDelivered)
	m.RecordPush("google", PushFailed)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.Requests["/v1/pass|GET|200"])
	assert.EqualValues(t, 20, snap.AvgLatencyMillis["/v1/pass|GET|200"])
	assert.EqualValues(t, 1, snap.Errors["/v1/pass|GET|NOT_FOUND"])
	assert.EqualValues(t, 2, snap.Pushes["apns|delivered"])
	assert.EqualValues(t, 1, snap.Pushes["google|failed"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordPush("apns", PushFailed)
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	assert.Empty(t, m.Snapshot().Pushes)
}

func TestRequestLoggerUsesRouteTemplate(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/v1/passes/:serial", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNotModified) })

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/passes/c1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotModified, resp.StatusCode)

	assert.EqualValues(t, 1, metrics.Snapshot().Requests["/v1/passes/:serial|GET|304"])
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "/v1/passes/:serial", logs.All()[0].ContextMap()["route"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "chatty"}, config.AppConfig{Name: "wallet-pass-service", Env: "production"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
}
