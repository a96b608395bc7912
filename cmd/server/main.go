package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"payconfirm/internal/app"
	"payconfirm/internal/config"
	"payconfirm/internal/handler"
	"payconfirm/internal/mailer"
	"payconfirm/internal/middleware"
	"payconfirm/internal/rail"
	internalRedis "payconfirm/internal/redis"
	"payconfirm/internal/repository"
	"payconfirm/internal/repository/memory"
	"payconfirm/internal/repository/postgres"
	"payconfirm/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	os.Exit(exitCode(logger, run(cfg, logger)))
}

// exitCode logs the outcome of run and flushes the logger. logger.Fatal is
// avoided because it exits before buffered entries are written.
func exitCode(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("server exited with error", zap.Error(err))
		code = 1
	} else {
		logger.Info("server exited")
	}
	_ = logger.Sync()
	return code
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	nrApp := newRelicApp(cfg.NewRelic, logger)

	banks, err := config.LoadBankDirectory(cfg.BankDetailsFile)
	if err != nil {
		return err
	}
	logger.Info("bank directory loaded", zap.Strings("currencies", banks.Currencies()))

	var (
		db          *sql.DB
		redisClient *goredis.Client
		ledger      repository.Ledger
	)

	switch cfg.Ledger.Backend {
	case config.LedgerPostgres:
		db, err = app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		repo := postgres.NewLedgerRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate ledger: %w", err)
		}
		ledger = repo
		logger.Info("connected to PostgreSQL")

		// Redis only backs the idempotency cache here; the ledger alone keeps
		// confirmation correct, so the service starts without it.
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logger.Warn("redis unavailable, idempotency cache disabled", zap.Error(err))
			redisClient = nil
		}

	case config.LedgerRedis:
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		ledger = internalRedis.NewLedgerStore(redisClient)
		logger.Info("connected to Redis")

	case config.LedgerMemory:
		ledger = memory.NewLedger()
		logger.Warn("using in-memory ledger, confirmations are lost on restart")

	default:
		return fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Notifications.
	var sender mailer.Sender = mailer.NewLogSender(logger)
	if cfg.Notification.Endpoint != "" {
		sender = mailer.NewFormSender(cfg.Notification.Endpoint, cfg.Notification.Timeout)
	}
	dispatcher := service.NewNotificationDispatcher(sender, logger, service.DispatcherConfig{
		AdminEmail: cfg.Notification.AdminEmail,
		Timeout:    cfg.Notification.Timeout,
		Workers:    cfg.Notification.Workers,
		QueueSize:  cfg.Notification.QueueSize,
	})

	// Rails.
	rails := rail.NewRegistry(
		rail.NewCardRail(rail.CardConfig{
			BaseURL:       cfg.Card.BaseURL,
			SecretKey:     cfg.Card.SecretKey,
			WebhookSecret: cfg.Card.WebhookSecret,
			Timeout:       cfg.Card.Timeout,
		}),
		rail.NewGatewayRail(rail.GatewayConfig{
			BaseURL:   cfg.Gateway.BaseURL,
			SecretKey: cfg.Gateway.SecretKey,
			Timeout:   cfg.Gateway.Timeout,
		}),
		rail.NewBankTransferRail(),
	)

	// Initialize services.
	confirmations := service.NewConfirmationService(ledger, rails, dispatcher, banks, logger)
	webhooks := service.NewWebhookService(rails, confirmations, logger)

	deps := app.RouterDeps{
		PaymentHandler:     handler.NewPaymentHandler(confirmations),
		WebhookHandler:     handler.NewWebhookHandler(webhooks),
		BankDetailsHandler: handler.NewBankDetailsHandler(banks),
		IdempotencyTTL:     cfg.Server.IdempotencyTTL,
		AdminSecret:        cfg.Admin.JWTSecret,
		NewRelicApp:        nrApp,
		Logger:             logger,
	}
	if redisClient != nil {
		deps.ResponseCache = internalRedis.NewResponseCache(redisClient)
	}

	bg, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if cfg.RateLimit.Enabled {
		deps.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go deps.RateLimiter.Run(bg, time.Minute)
	}
	if cfg.Admin.JWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET is empty, admin routes reject every request")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine.
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.Server.Port),
			zap.String("ledger", cfg.Ledger.Backend),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// In-flight requests may have queued notifications; drain them last.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("notification queue not drained", zap.Error(err))
	}

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}
	return nil
}

func newRelicApp(cfg config.NewRelicConfig, logger *zap.Logger) *newrelic.Application {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return nil
	}

	nrApp, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		newrelic.ConfigAppLogForwardingEnabled(true),
	)
	if err != nil {
		logger.Warn("failed to initialize New Relic", zap.Error(err))
		return nil
	}
	logger.Info("New Relic enabled", zap.String("app", cfg.AppName))
	return nrApp
}
