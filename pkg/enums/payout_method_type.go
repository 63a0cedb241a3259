package enums

import "fmt"

// PayoutMethodType is the closed set of destinations a seller can be paid to.
// New rails are added as new variants, never by loosening validation on an
// existing one.
type PayoutMethodType string

const (
	PayoutMethodTypeBankTransfer PayoutMethodType = "bank_transfer"
	PayoutMethodTypePayPal       PayoutMethodType = "paypal"
	PayoutMethodTypeCrypto       PayoutMethodType = "crypto"
	PayoutMethodTypeWire         PayoutMethodType = "wire"
	PayoutMethodTypeEscrow       PayoutMethodType = "escrow"
)

var validPayoutMethodTypes = []PayoutMethodType{
	PayoutMethodTypeBankTransfer,
	PayoutMethodTypePayPal,
	PayoutMethodTypeCrypto,
	PayoutMethodTypeWire,
	PayoutMethodTypeEscrow,
}

// String implements fmt.Stringer.
func (p PayoutMethodType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutMethodType.
func (p PayoutMethodType) IsValid() bool {
	for _, candidate := range validPayoutMethodTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// AllowsImmediate reports whether the method may execute immediate payouts.
// The escrow provider settles on its own clock and is restricted to
// recurring schedules.
func (p PayoutMethodType) AllowsImmediate() bool {
	return p != PayoutMethodTypeEscrow
}

// ParsePayoutMethodType converts raw input into a PayoutMethodType.
func ParsePayoutMethodType(value string) (PayoutMethodType, error) {
	for _, candidate := range validPayoutMethodTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout method type %q", value)
}
