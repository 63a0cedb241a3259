package enums

import "fmt"

// PayoutStatus tracks where an order's funds sit between buyer and seller.
type PayoutStatus string

const (
	PayoutStatusInEscrow   PayoutStatus = "in_escrow"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusPaid       PayoutStatus = "paid"
	PayoutStatusRefunded   PayoutStatus = "refunded"
	PayoutStatusDisputed   PayoutStatus = "disputed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusInEscrow,
	PayoutStatusProcessing,
	PayoutStatusPaid,
	PayoutStatusRefunded,
	PayoutStatusDisputed,
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
