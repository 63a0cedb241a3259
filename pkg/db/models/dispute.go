package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// Dispute is one return/dispute record against an order. The return flow
// layers an RMA number and item-condition fields on top of the same
// hold/ledger primitives the plain dispute flow uses.
type Dispute struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	BuyerID               uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID              uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	AmountMinor           int64               `gorm:"column:amount_minor;not null"`
	Currency              enums.Currency      `gorm:"column:currency;type:text;not null"`
	Reason                string              `gorm:"column:reason;type:text;not null"`
	Status                enums.DisputeStatus `gorm:"column:status;type:dispute_status;not null;default:'pending'"`
	RMANumber             *string             `gorm:"column:rma_number;type:text"`
	RefundType            *enums.RefundType   `gorm:"column:refund_type;type:refund_type"`
	ResolutionAmountMinor *int64              `gorm:"column:resolution_amount_minor"`
	ItemCondition         *string             `gorm:"column:item_condition;type:text"`
	EvidenceURLs          pq.StringArray      `gorm:"column:evidence_urls;type:text[];default:ARRAY[]::text[]"`
	EscalatedAt           *time.Time          `gorm:"column:escalated_at"`
	ResolvedAt            *time.Time          `gorm:"column:resolved_at"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
