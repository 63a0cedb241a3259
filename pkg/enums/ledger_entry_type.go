package enums

import "fmt"

// LedgerEntryType maps to the ledger_entry_type enum in Postgres.
type LedgerEntryType string

const (
	LedgerEntryTypeSale            LedgerEntryType = "sale"
	LedgerEntryTypeRefundInitiated LedgerEntryType = "refund_initiated"
	LedgerEntryTypeRefundCompleted LedgerEntryType = "refund_completed"
	LedgerEntryTypeReturnApproved  LedgerEntryType = "return_approved"
	LedgerEntryTypePayout          LedgerEntryType = "payout"
	LedgerEntryTypeFee             LedgerEntryType = "fee"
	LedgerEntryTypeAdjustment      LedgerEntryType = "adjustment"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeSale,
	LedgerEntryTypeRefundInitiated,
	LedgerEntryTypeRefundCompleted,
	LedgerEntryTypeReturnApproved,
	LedgerEntryTypePayout,
	LedgerEntryTypeFee,
	LedgerEntryTypeAdjustment,
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
