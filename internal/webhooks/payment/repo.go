package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// Repository defines persistence operations for webhook events and their
// attempt logs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertEvent(ctx context.Context, event *models.WebhookEvent) error
	FindByProviderEventID(ctx context.Context, providerEventID string) (*models.WebhookEvent, error)
	UpdateEvent(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CreateLog(ctx context.Context, log *models.WebhookLog) error
	LatestLog(ctx context.Context, eventID uuid.UUID) (*models.WebhookLog, error)
	ListRetryable(ctx context.Context, asOf time.Time, limit int) ([]models.WebhookEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a webhook repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) InsertEvent(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByProviderEventID(ctx context.Context, providerEventID string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider_event_id = ?", providerEventID).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) UpdateEvent(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) CreateLog(ctx context.Context, log *models.WebhookLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *repository) LatestLog(ctx context.Context, eventID uuid.UUID) (*models.WebhookLog, error) {
	var log models.WebhookLog
	err := r.db.WithContext(ctx).
		Where("webhook_event_id = ?", eventID).
		Order("retry_count DESC").
		First(&log).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// ListRetryable returns pending events whose most recent attempt log has a
// retry time in the past.
func (r *repository) ListRetryable(ctx context.Context, asOf time.Time, limit int) ([]models.WebhookEvent, error) {
	var events []models.WebhookEvent
	latest := r.db.
		Table("webhook_logs").
		Select("MAX(retry_count)").
		Where("webhook_logs.webhook_event_id = webhook_events.id")
	err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("status = ?", enums.WebhookEventStatusPending).
		Where("EXISTS (SELECT 1 FROM webhook_logs WHERE webhook_logs.webhook_event_id = webhook_events.id AND webhook_logs.next_retry_at <= ? AND webhook_logs.retry_count = (?))", asOf, latest).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
