package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// Order is the per-listing purchase produced at checkout. Orders are created
// once, mutated only through the lifecycle controller, and never deleted.
type Order struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID        uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID       uuid.UUID            `gorm:"column:seller_id;type:uuid;not null"`
	ListingID      uuid.UUID            `gorm:"column:listing_id;type:uuid;not null"`
	AmountMinor    int64                `gorm:"column:amount_minor;not null"`
	Currency       enums.Currency       `gorm:"column:currency;type:text;not null;default:'NGN'"`
	Status         enums.OrderStatus    `gorm:"column:status;type:order_status;not null;default:'processing'"`
	DeliveryStatus enums.DeliveryStatus `gorm:"column:delivery_status;type:delivery_status;not null;default:'not_shipped'"`
	PayoutStatus   enums.PayoutStatus   `gorm:"column:payout_status;type:payout_status;not null;default:'in_escrow'"`
	ShippedAt      *time.Time           `gorm:"column:shipped_at"`
	DeliveredAt    *time.Time           `gorm:"column:delivered_at"`
	CanceledAt     *time.Time           `gorm:"column:canceled_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
