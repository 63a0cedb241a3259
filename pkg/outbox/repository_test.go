package outbox

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, conn.Exec(`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`).Error)
	return conn
}

func seedEvent(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType, createdAt time.Time) models.OutboxEvent {
	t.Helper()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		CreatedAt:     createdAt,
	}
	require.NoError(t, conn.Create(&event).Error)
	return event
}

func TestFetchUnpublishedOrdersByCreationAndSkipsExhausted(t *testing.T) {
	conn := setupOutboxTestDB(t)
	repo := NewRepository(conn)

	base := time.Now().Add(-time.Hour)
	second := seedEvent(t, conn, enums.EventHoldReleased, base.Add(time.Minute))
	first := seedEvent(t, conn, enums.EventHoldCreated, base)

	exhausted := seedEvent(t, conn, enums.EventPayoutFailed, base)
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("id = ?", exhausted.ID).
		Update("attempt_count", 8).Error)

	published := seedEvent(t, conn, enums.EventDisputeOpened, base)
	require.NoError(t, repo.MarkPublished(published.ID))

	rows, err := repo.FetchUnpublished(10, 8)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, first.ID, rows[0].ID)
	assert.Equal(t, second.ID, rows[1].ID)
}

func TestMarkFailedIncrementsAttemptAndRecordsError(t *testing.T) {
	conn := setupOutboxTestDB(t)
	repo := NewRepository(conn)

	event := seedEvent(t, conn, enums.EventHoldCreated, time.Now())
	require.NoError(t, repo.MarkFailed(event.ID, fmt.Errorf("topic unavailable")))
	require.NoError(t, repo.MarkFailed(event.ID, fmt.Errorf("topic still unavailable")))

	var stored models.OutboxEvent
	require.NoError(t, conn.First(&stored, "id = ?", event.ID).Error)
	assert.Equal(t, 2, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "topic still unavailable", *stored.LastError)
	assert.Nil(t, stored.PublishedAt)
}

func TestDeletePublishedBeforeKeepsRecentAndPendingRows(t *testing.T) {
	conn := setupOutboxTestDB(t)
	repo := NewRepository(conn)

	cutoff := time.Now().Add(-24 * time.Hour)

	oldPublished := seedEvent(t, conn, enums.EventHoldReleased, cutoff.Add(-time.Hour))
	past := cutoff.Add(-time.Hour)
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("id = ?", oldPublished.ID).
		Update("published_at", past).Error)

	recentPublished := seedEvent(t, conn, enums.EventHoldReleased, time.Now())
	require.NoError(t, repo.MarkPublished(recentPublished.ID))

	abandoned := seedEvent(t, conn, enums.EventPayoutFailed, cutoff.Add(-time.Hour))
	require.NoError(t, conn.Model(&models.OutboxEvent{}).
		Where("id = ?", abandoned.ID).
		Update("attempt_count", 5).Error)

	pending := seedEvent(t, conn, enums.EventHoldCreated, cutoff.Add(-time.Hour))

	deleted, err := repo.DeletePublishedBefore(conn, cutoff, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	ids := []uuid.UUID{remaining[0].ID, remaining[1].ID}
	assert.Contains(t, ids, recentPublished.ID)
	assert.Contains(t, ids, pending.ID)
}

func TestExistsTxSeesUncommittedSiblingEvent(t *testing.T) {
	conn := setupOutboxTestDB(t)
	repo := NewRepository(conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		event := models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventWebhookExhausted,
			AggregateType: enums.AggregateWebhookEvent,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
		}
		if err := repo.Insert(tx, event); err != nil {
			return err
		}

		found, err := repo.ExistsTx(tx, event.EventType, event.AggregateType, event.AggregateID)
		require.NoError(t, err)
		assert.True(t, found)

		missing, err := repo.ExistsTx(tx, event.EventType, event.AggregateType, uuid.New())
		require.NoError(t, err)
		assert.False(t, missing)
		return nil
	})
	require.NoError(t, err)
}

func TestInsertRequiresTransaction(t *testing.T) {
	repo := NewRepository(setupOutboxTestDB(t))
	require.Error(t, repo.Insert(nil, models.OutboxEvent{}))
	_, err := repo.ExistsTx(nil, enums.EventHoldCreated, enums.AggregateOrder, uuid.New())
	require.Error(t, err)
	_, err = repo.DeletePublishedBefore(nil, time.Now(), 5)
	require.Error(t, err)
}
