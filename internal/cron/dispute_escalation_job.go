package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
)

const defaultEscalationBatch = 100

type disputeEscalator interface {
	FlagStale(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// DisputeEscalationJobParams configure the stale dispute sweep.
type DisputeEscalationJobParams struct {
	Logger    *logger.Logger
	Disputes  disputeEscalator
	Window    time.Duration
	BatchSize int
	Interval  time.Duration
}

// NewDisputeEscalationJob builds the job that flags disputes left open past
// the escalation window.
func NewDisputeEscalationJob(params DisputeEscalationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Disputes == nil {
		return nil, fmt.Errorf("disputes service required")
	}
	if params.Window <= 0 {
		return nil, fmt.Errorf("escalation window required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultEscalationBatch
	}
	return &disputeEscalationJob{
		logg:     params.Logger,
		disputes: params.Disputes,
		window:   params.Window,
		batch:    batch,
		interval: params.Interval,
		now:      time.Now,
	}, nil
}

type disputeEscalationJob struct {
	logg     *logger.Logger
	disputes disputeEscalator
	window   time.Duration
	batch    int
	interval time.Duration
	now      func() time.Time
}

func (j *disputeEscalationJob) Name() string { return "dispute-escalation" }

func (j *disputeEscalationJob) Every() time.Duration { return j.interval }

func (j *disputeEscalationJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	flagged, err := j.disputes.FlagStale(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("flag stale disputes: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"count":  flagged,
	})
	j.logg.Info(logCtx, "dispute escalation sweep complete")
	return nil
}
