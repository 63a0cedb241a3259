package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// Payment is one payment attempt against an order. Retries create new rows;
// the only permitted mutation is the single pending -> completed|failed
// status transition.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	ProviderReference string              `gorm:"column:provider_reference;type:text;not null"`
	AmountMinor       int64               `gorm:"column:amount_minor;not null"`
	Currency          enums.Currency      `gorm:"column:currency;type:text;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	CompletedAt       *time.Time          `gorm:"column:completed_at"`
	FailedAt          *time.Time          `gorm:"column:failed_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
