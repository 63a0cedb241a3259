package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// Repository handles payment hold persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateHold(ctx context.Context, hold *models.PaymentHold) error
	FindHold(ctx context.Context, id uuid.UUID) (*models.PaymentHold, error)
	FindActiveHoldByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentHold, error)
	FindLatestHoldByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentHold, error)
	UpdateHold(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListReleasableHolds(ctx context.Context, asOf time.Time, limit int) ([]models.PaymentHold, error)
	SumActiveHolds(ctx context.Context, sellerID uuid.UUID, currency enums.Currency) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an escrow repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateHold(ctx context.Context, hold *models.PaymentHold) error {
	return r.db.WithContext(ctx).Create(hold).Error
}

func (r *repository) FindHold(ctx context.Context, id uuid.UUID) (*models.PaymentHold, error) {
	var hold models.PaymentHold
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&hold).Error
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *repository) FindActiveHoldByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentHold, error) {
	var hold models.PaymentHold
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.HoldStatusActive).
		First(&hold).Error
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *repository) FindLatestHoldByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentHold, error) {
	var hold models.PaymentHold
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&hold).Error
	if err != nil {
		return nil, err
	}
	return &hold, nil
}

func (r *repository) UpdateHold(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentHold{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListReleasableHolds(ctx context.Context, asOf time.Time, limit int) ([]models.PaymentHold, error) {
	var holds []models.PaymentHold
	q := r.db.WithContext(ctx).
		Where("status = ? AND releaseable_at <= ?", enums.HoldStatusActive, asOf).
		Order("releaseable_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&holds).Error; err != nil {
		return nil, err
	}
	return holds, nil
}

func (r *repository) SumActiveHolds(ctx context.Context, sellerID uuid.UUID, currency enums.Currency) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentHold{}).
		Select("COALESCE(SUM(amount_minor), 0)").
		Where("seller_id = ? AND currency = ? AND status = ?", sellerID, currency, enums.HoldStatusActive).
		Scan(&total).Error
	return total, err
}
