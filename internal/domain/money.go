package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToCents converts a major unit amount to minor units, rounding half up
func ToCents(major decimal.Decimal) int64 {
	return RoundCents(major.Mul(hundred))
}

// FromCents converts minor units to a major unit amount
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// RoundCents rounds a fractional cent amount half up. Money is never negative
// here, so rounding half away from zero is rounding half up.
func RoundCents(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
