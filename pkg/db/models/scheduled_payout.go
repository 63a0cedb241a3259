package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// ScheduledPayout is a seller-authored payout instruction. Recurring
// schedules recompute NextScheduledAt only after a successful run; a failed
// run leaves it untouched so the next scheduler pass retries the payout.
// Failed immediate payouts are terminal and must be re-requested.
type ScheduledPayout struct {
	ID              uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID        uuid.UUID                   `gorm:"column:seller_id;type:uuid;not null"`
	PayoutMethodID  uuid.UUID                   `gorm:"column:payout_method_id;type:uuid;not null"`
	AmountMinor     int64                       `gorm:"column:amount_minor;not null"`
	Currency        enums.Currency              `gorm:"column:currency;type:text;not null"`
	Schedule        enums.PayoutSchedule        `gorm:"column:schedule;type:payout_schedule;not null"`
	Status          enums.ScheduledPayoutStatus `gorm:"column:status;type:scheduled_payout_status;not null;default:'pending'"`
	NextScheduledAt time.Time                   `gorm:"column:next_scheduled_at;not null"`
	LastRunAt       *time.Time                  `gorm:"column:last_run_at"`
	FailureCount    int                         `gorm:"column:failure_count;not null;default:0"`
	LastError       *string                     `gorm:"column:last_error;type:text"`
	CreatedAt       time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
