package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
)

type payoutRunner interface {
	ExecuteScheduledPayouts(ctx context.Context) (int, error)
}

// PayoutRunJobParams configure the scheduled payout run.
type PayoutRunJobParams struct {
	Logger   *logger.Logger
	Payouts  payoutRunner
	Interval time.Duration
}

// NewPayoutRunJob builds the job that executes due scheduled payouts.
func NewPayoutRunJob(params PayoutRunJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payouts service required")
	}
	return &payoutRunJob{
		logg:     params.Logger,
		payouts:  params.Payouts,
		interval: params.Interval,
	}, nil
}

type payoutRunJob struct {
	logg     *logger.Logger
	payouts  payoutRunner
	interval time.Duration
}

func (j *payoutRunJob) Name() string { return "scheduled-payouts" }

func (j *payoutRunJob) Every() time.Duration { return j.interval }

func (j *payoutRunJob) Run(ctx context.Context) error {
	executed, err := j.payouts.ExecuteScheduledPayouts(ctx)
	if err != nil {
		return fmt.Errorf("execute scheduled payouts: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "count", executed)
	j.logg.Info(logCtx, "scheduled payout run complete")
	return nil
}
