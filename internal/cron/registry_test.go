package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	expiry := &stubJob{name: "hold-expiry"}
	payouts := &stubJob{name: "scheduled-payouts"}

	registry := NewRegistry(expiry, nil, payouts)
	registry.Register(nil)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, expiry, jobs[0].(*stubJob))
	assert.Same(t, payouts, jobs[1].(*stubJob))
}

func TestRegistryJobsReturnsACopy(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "webhook-retry"})

	jobs := registry.Jobs()
	jobs[0] = nil

	require.NotNil(t, registry.Jobs()[0])
}
