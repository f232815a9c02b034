package service

import (
	"github.com/shopspring/decimal"
)

// CommissionBase returns the amount commission is computed against: the
// merchandise subtotal net of discount, never negative. Shipping is excluded.
func CommissionBase(subtotal, discount decimal.Decimal) decimal.Decimal {
	base := subtotal.Sub(discount)

	if base.IsNegative() {
		return decimal.Zero
	}

	return base
}

// CalculateCommission computes an ambassador's cut of an order. rate is a
// percentage (50 means 50%). The result is rounded to 2 decimal places.
func CalculateCommission(subtotal, discount, rate decimal.Decimal) decimal.Decimal {
	base := CommissionBase(subtotal, discount)
	return base.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}
