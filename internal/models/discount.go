package models

import (
	"github.com/shopspring/decimal"
)

// Discount is a resolved discount policy, the result of validating a code
// against either the promo-code namespace or the ambassador coupon namespace.
type Discount struct {
	// PolicyID is the backing row: a promo code ID or an ambassador ID,
	// depending on IsAmbassador.
	PolicyID       string          `json:"policy_id,omitempty"`
	Type           string          `json:"type"` // percentage | fixed
	Value          decimal.Decimal `json:"value"`
	MinPurchase    decimal.Decimal `json:"min_purchase"`
	Code           string          `json:"code"`
	ReferralCode   *string         `json:"referral_code,omitempty"`
	IsAmbassador   bool            `json:"is_ambassador"`
	AmbassadorID   string          `json:"ambassador_id,omitempty"`
	CommissionRate decimal.Decimal `json:"commission_rate,omitempty"`
}

// AmountFor computes the discount amount against a merchandise subtotal. A
// fixed discount never exceeds the subtotal.
func (d *Discount) AmountFor(subtotal decimal.Decimal) decimal.Decimal {
	if d.Type == string(DiscountPercentage) {
		return subtotal.Mul(d.Value).Div(decimal.NewFromInt(100)).Round(2)
	}

	if d.Value.GreaterThan(subtotal) {
		return subtotal
	}

	return d.Value
}
