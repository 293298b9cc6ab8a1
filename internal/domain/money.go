package domain

import "github.com/shopspring/decimal"

const minorUnitExponent = 2

var minorUnitFactor = decimal.New(1, minorUnitExponent)

// ToMinorUnits converts an amount to integer cents. Amounts with more than two
// fractional digits are rounded half-up (away from zero).
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	cents := amount.Mul(minorUnitFactor).Round(0)
	if !cents.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if !cents.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorUnitExponent)
}
