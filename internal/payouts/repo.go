package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// Repository defines persistence operations for payout methods and
// scheduled payouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateMethod(ctx context.Context, method *models.PayoutMethod) error
	FindMethod(ctx context.Context, id uuid.UUID) (*models.PayoutMethod, error)
	ListMethodsBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.PayoutMethod, error)
	CreateScheduledPayout(ctx context.Context, payout *models.ScheduledPayout) error
	FindScheduledPayout(ctx context.Context, id uuid.UUID) (*models.ScheduledPayout, error)
	UpdateScheduledPayout(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.ScheduledPayout, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payouts repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateMethod(ctx context.Context, method *models.PayoutMethod) error {
	return r.db.WithContext(ctx).Create(method).Error
}

func (r *repository) FindMethod(ctx context.Context, id uuid.UUID) (*models.PayoutMethod, error) {
	var method models.PayoutMethod
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&method).Error
	if err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *repository) ListMethodsBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.PayoutMethod, error) {
	var methods []models.PayoutMethod
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at ASC").
		Find(&methods).Error
	if err != nil {
		return nil, err
	}
	return methods, nil
}

func (r *repository) CreateScheduledPayout(ctx context.Context, payout *models.ScheduledPayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindScheduledPayout(ctx context.Context, id uuid.UUID) (*models.ScheduledPayout, error) {
	var payout models.ScheduledPayout
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) UpdateScheduledPayout(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ScheduledPayout{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ClaimForProcessing flips a due payout to processing. The guarded update is
// what keeps concurrent scheduler instances from executing the same payout
// twice; only the caller that flipped the row proceeds.
func (r *repository) ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ScheduledPayout{}).
		Where("id = ?", id).
		Where("status IN ?", []enums.ScheduledPayoutStatus{
			enums.ScheduledPayoutStatusPending,
			enums.ScheduledPayoutStatusFailed,
		}).
		Updates(map[string]any{"status": enums.ScheduledPayoutStatusProcessing})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListDue returns payouts whose next run time has passed. Failed recurring
// rows stay eligible because a failed run never advances the schedule; a
// failed immediate payout is terminal and waits for a fresh request instead
// of being retried by every sweep.
func (r *repository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]models.ScheduledPayout, error) {
	var payouts []models.ScheduledPayout
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND schedule <> ?)",
			enums.ScheduledPayoutStatusPending,
			enums.ScheduledPayoutStatusFailed,
			enums.PayoutScheduleImmediate).
		Where("next_scheduled_at <= ?", asOf).
		Order("next_scheduled_at ASC").
		Limit(limit).
		Find(&payouts).Error
	if err != nil {
		return nil, err
	}
	return payouts, nil
}
