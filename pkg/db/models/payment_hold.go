package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// PaymentHold is the escrow record for an order's funds. A partial unique
// index on (order_id) WHERE status = 'active' guarantees at most one active
// hold per order; that constraint, not application locking, is the
// concurrency guard for duplicate creation.
//
// AmountMinor is the remaining held amount; partial refunds decrement it
// while OriginalAmountMinor keeps the amount held at creation.
type PaymentHold struct {
	ID                  uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID           uuid.UUID        `gorm:"column:payment_id;type:uuid;not null"`
	OrderID             uuid.UUID        `gorm:"column:order_id;type:uuid;not null"`
	SellerID            uuid.UUID        `gorm:"column:seller_id;type:uuid;not null"`
	AmountMinor         int64            `gorm:"column:amount_minor;not null"`
	OriginalAmountMinor int64            `gorm:"column:original_amount_minor;not null"`
	Currency            enums.Currency   `gorm:"column:currency;type:text;not null"`
	Status              enums.HoldStatus `gorm:"column:status;type:hold_status;not null;default:'active'"`
	ReleaseableAt       time.Time        `gorm:"column:releaseable_at;not null"`
	ReleasedAt          *time.Time       `gorm:"column:released_at"`
	RefundedAt          *time.Time       `gorm:"column:refunded_at"`
	ExpiredAt           *time.Time       `gorm:"column:expired_at"`
	CreatedAt           time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
