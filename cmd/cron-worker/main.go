package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nnamdiosuji/okrika-backend/internal/cron"
	"github.com/nnamdiosuji/okrika-backend/internal/disputes"
	"github.com/nnamdiosuji/okrika-backend/internal/escrow"
	"github.com/nnamdiosuji/okrika-backend/internal/ledger"
	"github.com/nnamdiosuji/okrika-backend/internal/notify"
	"github.com/nnamdiosuji/okrika-backend/internal/orders"
	"github.com/nnamdiosuji/okrika-backend/internal/payouts"
	webhookpayment "github.com/nnamdiosuji/okrika-backend/internal/webhooks/payment"
	"github.com/nnamdiosuji/okrika-backend/pkg/config"
	"github.com/nnamdiosuji/okrika-backend/pkg/db"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
	"github.com/nnamdiosuji/okrika-backend/pkg/metrics"
	"github.com/nnamdiosuji/okrika-backend/pkg/migrate"
	"github.com/nnamdiosuji/okrika-backend/pkg/outbox"
	"github.com/nnamdiosuji/okrika-backend/pkg/redis"
	"github.com/nnamdiosuji/okrika-backend/pkg/square"
	"github.com/nnamdiosuji/okrika-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
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

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return fmt.Errorf("bootstrap stripe: %w", err)
	}
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

	orderRepo := orders.NewRepository(dbClient.DB())
	orderSvc, err := orders.NewService(orderRepo, escrowSvc, dbClient, ob, notifier, logg)
	if err != nil {
		return fmt.Errorf("build orders service: %w", err)
	}

	disputeSvc, err := disputes.NewService(disputeRepo, orderRepo, escrowSvc, ledgerSvc, dbClient, ob, notifier, logg)
	if err != nil {
		return fmt.Errorf("build disputes service: %w", err)
	}

	stripeProvider, err := payouts.NewStripeProvider(stripeClient, logg)
	if err != nil {
		return fmt.Errorf("build stripe provider: %w", err)
	}
	escrowProvider := payouts.NewEscrowProvider()

	registry := payouts.NewRegistry()
	registry.Register(enums.PayoutMethodTypeBankTransfer, stripeProvider)
	registry.Register(enums.PayoutMethodTypeWire, stripeProvider)
	registry.Register(enums.PayoutMethodTypePayPal, stripeProvider)
	registry.Register(enums.PayoutMethodTypeCrypto, stripeProvider)
	registry.Register(enums.PayoutMethodTypeEscrow, escrowProvider)
	registry.AddFallback(escrowProvider)

	payoutSvc, err := payouts.NewService(payouts.NewRepository(dbClient.DB()), ledgerSvc, registry,
		dbClient, ob, notifier, logg, metrics.NewPayoutMetrics(prometheus.DefaultRegisterer), cfg.Payouts)
	if err != nil {
		return fmt.Errorf("build payouts service: %w", err)
	}

	adminID, err := parseAdminID(cfg.Notify.AdminUserID)
	if err != nil {
		return err
	}
	webhookSvc, err := webhookpayment.NewService(webhookpayment.NewRepository(dbClient.DB()), orderSvc,
		squareClient, dbClient, ob, notifier, logg, metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		cfg.Webhooks, adminID)
	if err != nil {
		return fmt.Errorf("build webhook service: %w", err)
	}

	holdExpiry, err := cron.NewHoldExpiryJob(cron.HoldExpiryJobParams{
		Logger:   logg,
		Escrow:   escrowSvc,
		Interval: cfg.Cron.HoldExpiryEvery,
	})
	if err != nil {
		return fmt.Errorf("build hold expiry job: %w", err)
	}
	payoutRun, err := cron.NewPayoutRunJob(cron.PayoutRunJobParams{
		Logger:   logg,
		Payouts:  payoutSvc,
		Interval: cfg.Cron.ScheduledPayoutsEvery,
	})
	if err != nil {
		return fmt.Errorf("build payout run job: %w", err)
	}
	disputeEscalation, err := cron.NewDisputeEscalationJob(cron.DisputeEscalationJobParams{
		Logger:   logg,
		Disputes: disputeSvc,
		Window:   cfg.Disputes.EscalationWindow,
		Interval: cfg.Cron.DisputeEscalateEvery,
	})
	if err != nil {
		return fmt.Errorf("build dispute escalation job: %w", err)
	}
	webhookRetry, err := cron.NewWebhookRetryJob(cron.WebhookRetryJobParams{
		Logger:   logg,
		Webhooks: webhookSvc,
		Interval: cfg.Cron.WebhookRetryEvery,
	})
	if err != nil {
		return fmt.Errorf("build webhook retry job: %w", err)
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewRepository(dbClient.DB()),
	})
	if err != nil {
		return fmt.Errorf("build outbox retention job: %w", err)
	}

	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockKey, cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("build cron lock: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(holdExpiry, payoutRun, disputeEscalation, webhookRetry, outboxRetention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("build cron service: %w", err)
	}

	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

func parseAdminID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse admin user id: %w", err)
	}
	return id, nil
}
