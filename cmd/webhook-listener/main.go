package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nnamdiosuji/okrika-backend/api/routes"
	"github.com/nnamdiosuji/okrika-backend/internal/disputes"
	"github.com/nnamdiosuji/okrika-backend/internal/escrow"
	"github.com/nnamdiosuji/okrika-backend/internal/ledger"
	"github.com/nnamdiosuji/okrika-backend/internal/notify"
	"github.com/nnamdiosuji/okrika-backend/internal/orders"
	webhookpayment "github.com/nnamdiosuji/okrika-backend/internal/webhooks/payment"
	"github.com/nnamdiosuji/okrika-backend/pkg/config"
	"github.com/nnamdiosuji/okrika-backend/pkg/db"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
	"github.com/nnamdiosuji/okrika-backend/pkg/metrics"
	"github.com/nnamdiosuji/okrika-backend/pkg/migrate"
	"github.com/nnamdiosuji/okrika-backend/pkg/outbox"
	"github.com/nnamdiosuji/okrika-backend/pkg/redis"
	"github.com/nnamdiosuji/okrika-backend/pkg/square"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "webhook-listener"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "webhook-listener",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "webhook listener stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "webhook listener shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("run dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return fmt.Errorf("bootstrap square: %w", err)
	}

	ob := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	notifier, err := notify.NewEmitter(ob, dbClient, redisClient, logg, cfg.Notify.CooldownTTL)
	if err != nil {
		return fmt.Errorf("build notifier: %w", err)
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		return fmt.Errorf("build ledger service: %w", err)
	}

	disputeRepo := disputes.NewRepository(dbClient.DB())
	escrowSvc, err := escrow.NewService(escrow.NewRepository(dbClient.DB()), ledgerSvc, dbClient, ob,
		disputes.NewOpenDisputeChecker(disputeRepo), cfg.Escrow.HoldDuration)
	if err != nil {
		return fmt.Errorf("build escrow service: %w", err)
	}

	orderSvc, err := orders.NewService(orders.NewRepository(dbClient.DB()), escrowSvc, dbClient, ob, notifier, logg)
	if err != nil {
		return fmt.Errorf("build orders service: %w", err)
	}

	adminID := uuid.Nil
	if cfg.Notify.AdminUserID != "" {
		adminID, err = uuid.Parse(cfg.Notify.AdminUserID)
		if err != nil {
			return fmt.Errorf("parse admin user id: %w", err)
		}
	}
	webhookSvc, err := webhookpayment.NewService(webhookpayment.NewRepository(dbClient.DB()), orderSvc,
		squareClient, dbClient, ob, notifier, logg, metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		cfg.Webhooks, adminID)
	if err != nil {
		return fmt.Errorf("build webhook service: %w", err)
	}

	handler := routes.NewListenerRouter(cfg, logg, dbClient, webhookSvc, squareClient)
	server := &http.Server{
		Addr:    ":" + cfg.Listener.Port,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", server.Addr), "webhook listener serving")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown listener: %w", err)
	}
	return ctx.Err()
}
