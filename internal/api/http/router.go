package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/wallet-pass-service/internal/api/http/handlers"
	"github.com/spec-kit/wallet-pass-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health   *handlers.HealthHandler
	Metrics  *handlers.MetricsHandler
	PassKit  *handlers.PassKitHandler
	Generate *handlers.GenerateHandler
	Google   *handlers.GoogleWalletHandler
	PassAuth *auth.PassAuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Snapshot)
	}

	app.Get("/v1/pass", cfg.Generate.Issue)
	if cfg.Google != nil {
		app.Get("/v1/google/save", cfg.Google.SaveURL)
	}

	wallet := app.Group("/v1/api/:bid/v1")
	wallet.Post("/devices/:deviceId/registrations/:passType/:serial", cfg.PassAuth.Handle, cfg.PassKit.Register)
	wallet.Delete("/devices/:deviceId/registrations/:passType/:serial", cfg.PassAuth.Handle, cfg.PassKit.Unregister)
	wallet.Get("/devices/:deviceId/registrations/:passType", cfg.PassKit.UpdatedSerials)
	wallet.Get("/passes/:passType/:serial", cfg.PassAuth.Handle, cfg.PassKit.LatestPass)
	wallet.Post("/log", cfg.PassKit.Log)
}
