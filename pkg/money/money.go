// Package money holds the presentation-boundary helpers for amounts.
//
// Every amount in the core is an int64 in minor currency units (kobo,
// cents, pence). Conversion to major units happens only here, when an
// amount leaves the system in a human-facing message.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nnamdiosuji/okrika-backend/pkg/enums"
)

const minorUnitsPerMajor = 100

// ToMajor converts minor units to a decimal major-unit value.
func ToMajor(amountMinor int64) decimal.Decimal {
	return decimal.NewFromInt(amountMinor).Div(decimal.NewFromInt(minorUnitsPerMajor))
}

// Format renders an amount for human-facing messages, e.g. "NGN 5,000.00"
// without the thousands separator: "NGN 5000.00".
func Format(amountMinor int64, currency enums.Currency) string {
	return fmt.Sprintf("%s %s", currency, ToMajor(amountMinor).StringFixed(2))
}
