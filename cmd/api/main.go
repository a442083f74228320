package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/wallet-pass-service/internal/api/http"
	"github.com/spec-kit/wallet-pass-service/internal/api/http/handlers"
	"github.com/spec-kit/wallet-pass-service/internal/auth"
	"github.com/spec-kit/wallet-pass-service/internal/certs"
	"github.com/spec-kit/wallet-pass-service/internal/config"
	"github.com/spec-kit/wallet-pass-service/internal/events"
	"github.com/spec-kit/wallet-pass-service/internal/googlewallet"
	"github.com/spec-kit/wallet-pass-service/internal/observability"
	"github.com/spec-kit/wallet-pass-service/internal/passkit"
	"github.com/spec-kit/wallet-pass-service/internal/persistence"
	"github.com/spec-kit/wallet-pass-service/internal/push"
	"github.com/spec-kit/wallet-pass-service/internal/repository"
	"github.com/spec-kit/wallet-pass-service/internal/service"
	"github.com/spec-kit/wallet-pass-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if pg.PoolHandle() == nil {
		logger.Fatal("POSTGRES_DSN is required")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	businessRepo := repository.NewBusinessRepository(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	registrationRepo := repository.NewRegistrationRepository(pool)

	metrics := observability.NewMetrics()
	materializer := certs.NewMaterializer(logger)

	builder := passkit.NewBuilder(passkit.Dependencies{
		Businesses: businessRepo,
		Customers:  customerRepo,
		Logos:      passkit.NewLogoFetcher(cfg.Logo, redis, cfg.Redis.LogoTTL, logger),
		Certs:      materializer,
	}, cfg.Pass, cfg.App.PublicBaseURL, cfg.Secrets, logger)

	passService := service.NewPassKitService(service.PassKitDependencies{
		Registrations: registrationRepo,
		Builder:       builder,
		PassTypeID:    cfg.Pass.PassTypeID,
		Logger:        logger,
	})

	account, googleClient := newGoogleWallet(ctx, cfg, logger)
	walletService := service.NewGoogleWalletService(service.GoogleWalletDependencies{
		Businesses: businessRepo,
		Customers:  customerRepo,
		Account:    account,
		IssuerID:   cfg.Secrets.GoogleIssuerID,
		Origins:    cfg.Google.Origins,
	})

	pushOpts := push.Options{
		Registrations:  registrationRepo,
		GoogleIssuerID: cfg.Secrets.GoogleIssuerID,
		APNs:           push.NewAPNsClient(cfg.Push),
		Certs:          materializer,
		Secrets:        cfg.Secrets,
		MaxConcurrency: cfg.Push.MaxConcurrency,
		Metrics:        metrics,
		Logger:         logger.Named("push"),
	}
	if googleClient != nil {
		pushOpts.Google = googleClient
	}
	pushDispatcher := push.NewDispatcher(pushOpts)

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartPushWorker(dispatcher, pushDispatcher)
	listener := worker.NewChangeListener(pool, persistence.CustomerChangesChannel, dispatcher, logger.Named("listener"))
	go func() {
		if err := listener.Run(ctx); err != nil {
			logger.Error("change listener stopped", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.App.RequestTimeout(),
		WriteTimeout: cfg.App.RequestTimeout(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Probe{
			"postgres": pg.Ping,
			"redis":    redis.Ping,
		}),
		Metrics:  handlers.NewMetricsHandler(metrics),
		PassKit:  handlers.NewPassKitHandler(passService),
		Generate: handlers.NewGenerateHandler(passService),
		Google:   handlers.NewGoogleWalletHandler(walletService),
		PassAuth: auth.NewPassAuthMiddleware(customerRepo, cfg.Pass.AuthScheme, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.ShutdownWithTimeout(10 * time.Second)
}

// newGoogleWallet returns nil values when no service account is configured;
// the service then runs with the Google channel disabled.
func newGoogleWallet(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*googlewallet.ServiceAccount, *googlewallet.Client) {
	if cfg.Secrets.GoogleServiceAccount == "" || cfg.Secrets.GoogleIssuerID == "" {
		logger.Info("google wallet disabled: service account or issuer id not set")
		return nil, nil
	}
	account, err := googlewallet.ParseServiceAccount(cfg.Secrets.GoogleServiceAccount)
	if err != nil {
		logger.Warn("google wallet disabled: unusable service account", zap.String("label", "google service account"), zap.Error(err))
		return nil, nil
	}
	src := googlewallet.NewTokenSource(ctx, account, cfg.Google.Scope, cfg.Google.Timeout)
	return account, googlewallet.NewClient(cfg.Google.APIBaseURL, src, cfg.Google.Timeout)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
