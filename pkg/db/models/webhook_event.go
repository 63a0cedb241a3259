package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// WebhookEvent records one inbound provider event. The unique index on
// provider_event_id is the first-writer-wins guard that gives ingestion its
// at-most-once effect across instances.
type WebhookEvent struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderEventID string                   `gorm:"column:provider_event_id;type:text;not null;uniqueIndex:ux_webhook_events_provider_event_id"`
	Provider        string                   `gorm:"column:provider;type:text;not null"`
	EventType       string                   `gorm:"column:event_type;type:text;not null"`
	Payload         json.RawMessage          `gorm:"column:payload;type:jsonb;not null"`
	Status          enums.WebhookEventStatus `gorm:"column:status;type:webhook_event_status;not null;default:'pending'"`
	ProcessedAt     *time.Time               `gorm:"column:processed_at"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// WebhookLog records one processing attempt for a webhook event, carrying
// the retry bookkeeping the retry job reads.
type WebhookLog struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WebhookEventID uuid.UUID  `gorm:"column:webhook_event_id;type:uuid;not null"`
	Provider       string     `gorm:"column:provider;type:text;not null"`
	EventType      string     `gorm:"column:event_type;type:text;not null"`
	RetryCount     int        `gorm:"column:retry_count;not null;default:0"`
	Error          string     `gorm:"column:error;type:text;not null"`
	NextRetryAt    *time.Time `gorm:"column:next_retry_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
