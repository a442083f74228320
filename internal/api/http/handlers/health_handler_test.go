package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyReportsEachProbe(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	app := fiber.New()
	app.Get("/ready-ok", NewHealthHandler("svc", "v1", map[string]Probe{"postgres": ok, "redis": ok}).Ready)
	app.Get("/ready-down", NewHealthHandler("svc", "v1", map[string]Probe{"postgres": ok, "redis": down}).Ready)

	resp, err := app.Test(httptest.NewRequest("GET", "/ready-ok", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/ready-down", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	var out struct {
		Error struct {
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "ok", out.Error.Details["postgres"])
	assert.Equal(t, "connection refused", out.Error.Details["redis"])
}
