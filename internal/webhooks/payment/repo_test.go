package payment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/pkg/db"
	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

func setupWebhookTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS webhook_events (
  id TEXT PRIMARY KEY,
  provider_event_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  event_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  processed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_webhook_events_provider_event_id
  ON webhook_events (provider_event_id);`,
		`CREATE TABLE IF NOT EXISTS webhook_logs (
  id TEXT PRIMARY KEY,
  webhook_event_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  event_type TEXT NOT NULL,
  retry_count INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL,
  next_retry_at DATETIME,
  created_at DATETIME
);`,
	}
	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func insertEvent(t *testing.T, repo Repository, providerEventID string, status enums.WebhookEventStatus) *models.WebhookEvent {
	t.Helper()
	event := &models.WebhookEvent{
		ID:              uuid.New(),
		ProviderEventID: providerEventID,
		Provider:        "square",
		EventType:       "payment.updated",
		Payload:         []byte(`{}`),
		Status:          status,
	}
	require.NoError(t, repo.InsertEvent(context.Background(), event))
	return event
}

func TestRepositoryRejectsDuplicateProviderEventID(t *testing.T) {
	repo := NewRepository(setupWebhookTestDB(t))

	insertEvent(t, repo, "evt_dup", enums.WebhookEventStatusPending)

	err := repo.InsertEvent(context.Background(), &models.WebhookEvent{
		ID:              uuid.New(),
		ProviderEventID: "evt_dup",
		Provider:        "square",
		EventType:       "payment.updated",
		Payload:         []byte(`{}`),
		Status:          enums.WebhookEventStatusPending,
	})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, "ux_webhook_events_provider_event_id"))
}

func TestRepositoryLatestLogPicksHighestAttempt(t *testing.T) {
	repo := NewRepository(setupWebhookTestDB(t))
	event := insertEvent(t, repo, "evt_logs", enums.WebhookEventStatusPending)

	for attempt := 1; attempt <= 3; attempt++ {
		next := time.Now().Add(time.Duration(attempt) * time.Minute)
		require.NoError(t, repo.CreateLog(context.Background(), &models.WebhookLog{
			ID:             uuid.New(),
			WebhookEventID: event.ID,
			Provider:       event.Provider,
			EventType:      event.EventType,
			RetryCount:     attempt,
			Error:          "handler failed",
			NextRetryAt:    &next,
		}))
	}

	latest, err := repo.LatestLog(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.RetryCount)
}

func TestRepositoryListRetryable(t *testing.T) {
	repo := NewRepository(setupWebhookTestDB(t))
	ctx := context.Background()
	now := time.Now()

	due := insertEvent(t, repo, "evt_due", enums.WebhookEventStatusPending)
	past := now.Add(-time.Minute)
	require.NoError(t, repo.CreateLog(ctx, &models.WebhookLog{
		ID: uuid.New(), WebhookEventID: due.ID, Provider: due.Provider,
		EventType: due.EventType, RetryCount: 1, Error: "handler failed",
		NextRetryAt: &past,
	}))

	notYet := insertEvent(t, repo, "evt_future", enums.WebhookEventStatusPending)
	future := now.Add(time.Hour)
	require.NoError(t, repo.CreateLog(ctx, &models.WebhookLog{
		ID: uuid.New(), WebhookEventID: notYet.ID, Provider: notYet.Provider,
		EventType: notYet.EventType, RetryCount: 1, Error: "handler failed",
		NextRetryAt: &future,
	}))

	// a later attempt supersedes an earlier due one
	superseded := insertEvent(t, repo, "evt_superseded", enums.WebhookEventStatusPending)
	require.NoError(t, repo.CreateLog(ctx, &models.WebhookLog{
		ID: uuid.New(), WebhookEventID: superseded.ID, Provider: superseded.Provider,
		EventType: superseded.EventType, RetryCount: 1, Error: "handler failed",
		NextRetryAt: &past,
	}))
	require.NoError(t, repo.CreateLog(ctx, &models.WebhookLog{
		ID: uuid.New(), WebhookEventID: superseded.ID, Provider: superseded.Provider,
		EventType: superseded.EventType, RetryCount: 2, Error: "handler failed",
		NextRetryAt: &future,
	}))

	// terminal events never come back even with a due log
	failed := insertEvent(t, repo, "evt_failed", enums.WebhookEventStatusFailed)
	require.NoError(t, repo.CreateLog(ctx, &models.WebhookLog{
		ID: uuid.New(), WebhookEventID: failed.ID, Provider: failed.Provider,
		EventType: failed.EventType, RetryCount: 1, Error: "handler failed",
		NextRetryAt: &past,
	}))

	events, err := repo.ListRetryable(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt_due", events[0].ProviderEventID)
}

func TestRepositoryFindByProviderEventID(t *testing.T) {
	repo := NewRepository(setupWebhookTestDB(t))
	insertEvent(t, repo, "evt_find", enums.WebhookEventStatusPending)

	found, err := repo.FindByProviderEventID(context.Background(), "evt_find")
	require.NoError(t, err)
	assert.Equal(t, "square", found.Provider)

	_, err = repo.FindByProviderEventID(context.Background(), "evt_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
