package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType is how a promo code's value is applied
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// PromoCode is a generic promotional code. It is effective only when active,
// inside its [StartDate, EndDate] window, and under its usage cap.
type PromoCode struct {
	ID           string          `db:"id" json:"id"`
	Code         string          `db:"code" json:"code"`
	DiscountType string          `db:"discount_type" json:"type"`
	Value        decimal.Decimal `db:"value" json:"value"`
	MinPurchase  decimal.Decimal `db:"min_purchase" json:"min_purchase"`
	MaxUses      *int            `db:"max_uses" json:"max_uses,omitempty"`
	UsedCount    int             `db:"used_count" json:"used_count"`
	StartDate    *time.Time      `db:"start_date" json:"start_date,omitempty"`
	EndDate      *time.Time      `db:"end_date" json:"end_date,omitempty"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	ReferralCode *string         `db:"referral_code" json:"referral_code,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
