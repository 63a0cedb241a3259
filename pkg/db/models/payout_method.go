package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

// PayoutMethod is a seller's registered payout destination. It is a closed
// tagged variant: Type selects which detail columns are required, and each
// variant is validated before any provider call.
type PayoutMethod struct {
	ID       uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID uuid.UUID              `gorm:"column:seller_id;type:uuid;not null"`
	Type     enums.PayoutMethodType `gorm:"column:type;type:payout_method_type;not null"`

	// bank_transfer / wire
	BankName      *string `gorm:"column:bank_name;type:text"`
	AccountName   *string `gorm:"column:account_name;type:text"`
	AccountNumber *string `gorm:"column:account_number;type:text"`
	RoutingNumber *string `gorm:"column:routing_number;type:text"`
	SwiftCode     *string `gorm:"column:swift_code;type:text"`

	// paypal
	PayPalEmail *string `gorm:"column:paypal_email;type:text"`

	// crypto
	WalletAddress *string `gorm:"column:wallet_address;type:text"`
	WalletNetwork *string `gorm:"column:wallet_network;type:text"`

	// escrow provider
	EscrowAccountID *string `gorm:"column:escrow_account_id;type:text"`

	Disabled  bool      `gorm:"column:disabled;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
