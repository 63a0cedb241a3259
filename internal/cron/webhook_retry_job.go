package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
)

const defaultWebhookRetryBatch = 100

type webhookRetrier interface {
	RetryDue(ctx context.Context, asOf time.Time, limit int) (int, error)
}

// WebhookRetryJobParams configure the webhook retry sweep.
type WebhookRetryJobParams struct {
	Logger    *logger.Logger
	Webhooks  webhookRetrier
	BatchSize int
	Interval  time.Duration
}

// NewWebhookRetryJob builds the job that re-runs failed webhook deliveries
// whose backoff has elapsed.
func NewWebhookRetryJob(params WebhookRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Webhooks == nil {
		return nil, fmt.Errorf("webhooks service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultWebhookRetryBatch
	}
	return &webhookRetryJob{
		logg:     params.Logger,
		webhooks: params.Webhooks,
		batch:    batch,
		interval: params.Interval,
		now:      time.Now,
	}, nil
}

type webhookRetryJob struct {
	logg     *logger.Logger
	webhooks webhookRetrier
	batch    int
	interval time.Duration
	now      func() time.Time
}

func (j *webhookRetryJob) Name() string { return "webhook-retry" }

func (j *webhookRetryJob) Every() time.Duration { return j.interval }

func (j *webhookRetryJob) Run(ctx context.Context) error {
	retried, err := j.webhooks.RetryDue(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return fmt.Errorf("retry due webhooks: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "count", retried)
	j.logg.Info(logCtx, "webhook retry sweep complete")
	return nil
}
