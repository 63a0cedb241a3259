package disputes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// Repository defines persistence operations for dispute records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateDispute(ctx context.Context, dispute *models.Dispute) error
	FindDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	UpdateDispute(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CountOpenByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Dispute, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a disputes repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateDispute(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) FindDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) UpdateDispute(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) CountOpenByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("order_id = ?", orderID).
		Where("status NOT IN ?", terminalStatuses()).
		Count(&count).Error
	return count, err
}

// ListStale returns open disputes created before the cutoff that have not
// been escalated yet, oldest first.
func (r *repository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", terminalStatuses()).
		Where("created_at < ?", cutoff).
		Where("escalated_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&disputes).Error
	if err != nil {
		return nil, err
	}
	return disputes, nil
}

func terminalStatuses() []enums.DisputeStatus {
	return []enums.DisputeStatus{
		enums.DisputeStatusRefunded,
		enums.DisputeStatusReturnRejected,
		enums.DisputeStatusCanceled,
	}
}
