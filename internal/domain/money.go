package domain

import (
	"github.com/shopspring/decimal"
)

// ToMinorUnits converts a major-unit amount to the integer minor-unit form
// the gateway expects (e.g. 19.99 -> 1999). Half-up rounding at two decimal
// places before scaling.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

// FromMinorUnits converts an integer minor-unit amount back to major units
// for display and refund request construction.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100))
}
