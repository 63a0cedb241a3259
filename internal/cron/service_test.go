package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nnamdiosuji/okrika-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	registry := NewRegistry(&testJob{name: "success"}, &testJob{name: "fail", err: errors.New("boom")})
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     &fakeLock{},
		Interval: 0,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx := context.Background()
	if err := service.runCycle(ctx); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if success, ok := jobs[0].(*testJob); ok {
		if success.runs != 1 {
			t.Fatalf("expected success job to run once, ran %d", success.runs)
		}
	} else {
		t.Fatalf("first job type mismatch")
	}
	if failure, ok := jobs[1].(*testJob); ok {
		if failure.runs != 1 {
			t.Fatalf("expected failure job to run once, ran %d", failure.runs)
		}
	} else {
		t.Fatalf("second job type mismatch")
	}
}

type pacedJob struct {
	testJob
	every time.Duration
}

func (p *pacedJob) Every() time.Duration { return p.every }

func TestServiceHonorsPerJobCadence(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	fast := &testJob{name: "fast"}
	slow := &pacedJob{testJob: testJob{name: "slow"}, every: time.Hour}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(fast, slow),
		Lock:     &fakeLock{},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	start := time.Now()
	service.now = func() time.Time { return start }
	ctx := context.Background()
	if err := service.runCycle(ctx); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	if err := service.runCycle(ctx); err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if fast.runs != 2 {
		t.Fatalf("expected fast job to run every cycle, ran %d", fast.runs)
	}
	if slow.runs != 1 {
		t.Fatalf("expected slow job to wait out its interval, ran %d", slow.runs)
	}

	service.now = func() time.Time { return start.Add(2 * time.Hour) }
	if err := service.runCycle(ctx); err != nil {
		t.Fatalf("third cycle: %v", err)
	}
	if slow.runs != 2 {
		t.Fatalf("expected slow job to run once its interval elapsed, ran %d", slow.runs)
	}
}
