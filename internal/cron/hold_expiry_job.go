package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
)

const defaultHoldExpiryBatch = 200

type holdExpirer interface {
	ExpireDue(ctx context.Context, asOf time.Time, limit int) (int, error)
}

// HoldExpiryJobParams configure the hold expiry sweep.
type HoldExpiryJobParams struct {
	Logger    *logger.Logger
	Escrow    holdExpirer
	BatchSize int
	Interval  time.Duration
}

// NewHoldExpiryJob builds the job that releases holds past their timeout.
func NewHoldExpiryJob(params HoldExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Escrow == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultHoldExpiryBatch
	}
	return &holdExpiryJob{
		logg:     params.Logger,
		escrow:   params.Escrow,
		batch:    batch,
		interval: params.Interval,
		now:      time.Now,
	}, nil
}

type holdExpiryJob struct {
	logg     *logger.Logger
	escrow   holdExpirer
	batch    int
	interval time.Duration
	now      func() time.Time
}

func (j *holdExpiryJob) Name() string { return "hold-expiry" }

func (j *holdExpiryJob) Every() time.Duration { return j.interval }

func (j *holdExpiryJob) Run(ctx context.Context) error {
	released, err := j.escrow.ExpireDue(ctx, j.now().UTC(), j.batch)
	if err != nil {
		return fmt.Errorf("expire due holds: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "count", released)
	j.logg.Info(logCtx, "hold expiry sweep complete")
	return nil
}
