package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// LedgerEntry is an immutable, signed monetary record. Positive amounts
// credit the seller, negative amounts debit. Rows are never updated or
// deleted; corrections are new compensating entries whose CorrectsEntryID
// points at the original.
type LedgerEntry struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID        uuid.UUID               `gorm:"column:seller_id;type:uuid;not null"`
	OrderID         *uuid.UUID              `gorm:"column:order_id;type:uuid"`
	HoldID          *uuid.UUID              `gorm:"column:hold_id;type:uuid"`
	Type            enums.LedgerEntryType   `gorm:"column:type;type:ledger_entry_type;not null"`
	AmountMinor     int64                   `gorm:"column:amount_minor;not null"`
	Currency        enums.Currency          `gorm:"column:currency;type:text;not null"`
	Status          enums.LedgerEntryStatus `gorm:"column:status;type:ledger_entry_status;not null"`
	Description     string                  `gorm:"column:description;type:text;not null"`
	CorrectsEntryID *uuid.UUID              `gorm:"column:corrects_entry_id;type:uuid"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
}
