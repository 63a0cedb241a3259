package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nnamdiosuji/okrika-backend/pkg/db/models"
	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// Repository handles ledger persistence. Entries are insert-only; there is
// deliberately no update method.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateEntry(ctx context.Context, entry *models.LedgerEntry) error
	FindEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	FindEntryByOrderAndType(ctx context.Context, orderID uuid.UUID, entryType enums.LedgerEntryType) (*models.LedgerEntry, error)
	ListUnsettledRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error)
	ListEntriesBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEntry, error)
	SumByStatuses(ctx context.Context, sellerID uuid.UUID, currency enums.Currency, statuses []enums.LedgerEntryStatus) (int64, error)
	SumUncorrectedByStatuses(ctx context.Context, sellerID uuid.UUID, currency enums.Currency, statuses []enums.LedgerEntryStatus) (int64, error)
	SumIssuedPayouts(ctx context.Context, sellerID uuid.UUID, currency enums.Currency) (int64, error)
	HasCorrection(ctx context.Context, entryID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindEntryByOrderAndType(ctx context.Context, orderID uuid.UUID, entryType enums.LedgerEntryType) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ?", orderID, entryType).
		Order("created_at ASC").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListUnsettledRefundsByOrder returns the order's pending refund entries
// that have no settlement row yet.
func (r *repository) ListUnsettledRefundsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ? AND status = ?",
			orderID, enums.LedgerEntryTypeRefundCompleted, enums.LedgerEntryStatusPending).
		Where("id NOT IN (?)", r.db.Model(&models.LedgerEntry{}).
			Select("corrects_entry_id").
			Where("corrects_entry_id IS NOT NULL")).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListEntriesBySeller(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	q := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumByStatuses(ctx context.Context, sellerID uuid.UUID, currency enums.Currency, statuses []enums.LedgerEntryStatus) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount_minor), 0)").
		Where("seller_id = ? AND currency = ? AND status IN ?", sellerID, currency, statuses).
		Scan(&total).Error
	return total, err
}

// SumUncorrectedByStatuses excludes entries superseded by a settlement row
// written at escrow close (sale promotions and refund settlements), so
// released earnings and settled refunds stop counting as pending. Payout
// entries are excluded outright; issued payouts count against available, not
// pending. Compensating adjustment pairs are not excluded; they net to zero
// on their own.
func (r *repository) SumUncorrectedByStatuses(ctx context.Context, sellerID uuid.UUID, currency enums.Currency, statuses []enums.LedgerEntryStatus) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount_minor), 0)").
		Where("seller_id = ? AND currency = ? AND status IN ?", sellerID, currency, statuses).
		Where("type <> ?", enums.LedgerEntryTypePayout).
		Where("id NOT IN (?)", r.db.Model(&models.LedgerEntry{}).
			Select("corrects_entry_id").
			Where("corrects_entry_id IS NOT NULL").
			Where("type IN ? AND status = ?", []enums.LedgerEntryType{
				enums.LedgerEntryTypeSale,
				enums.LedgerEntryTypeRefundCompleted,
			}, enums.LedgerEntryStatusCompleted)).
		Scan(&total).Error
	return total, err
}

// SumIssuedPayouts totals payout entries still processing at the provider.
// The amounts are negative; the sum is an obligation already issued against
// the seller's available balance.
func (r *repository) SumIssuedPayouts(ctx context.Context, sellerID uuid.UUID, currency enums.Currency) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("COALESCE(SUM(amount_minor), 0)").
		Where("seller_id = ? AND currency = ? AND type = ? AND status = ?",
			sellerID, currency, enums.LedgerEntryTypePayout, enums.LedgerEntryStatusProcessing).
		Scan(&total).Error
	return total, err
}

func (r *repository) HasCorrection(ctx context.Context, entryID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("corrects_entry_id = ?", entryID).
		Count(&count).Error
	return count > 0, err
}
