package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AmbassadorStatus represents the review state of an ambassador application
type AmbassadorStatus string

const (
	AmbassadorStatusPending  AmbassadorStatus = "pending"
	AmbassadorStatusApproved AmbassadorStatus = "approved"
	AmbassadorStatusRejected AmbassadorStatus = "rejected"
)

// Ambassador is an affiliate with a unique coupon/referral code and a
// commission rate. Counters are cumulative and only ever incremented by this
// service. AdminProfile holds the raw attribute blob synced from the admin
// system, whose schema is not contractually fixed.
type Ambassador struct {
	ID              string           `db:"id" json:"id"`
	Email           string           `db:"email" json:"email"`
	Name            string           `db:"name" json:"name"`
	Status          string           `db:"status" json:"status"`
	ReferralCode    *string          `db:"referral_code" json:"referral_code,omitempty"`
	CouponCode      *string          `db:"coupon_code" json:"coupon_code,omitempty"`
	CommissionRate  decimal.Decimal  `db:"commission_rate" json:"commission_rate"`
	DiscountPercent *decimal.Decimal `db:"discount_percent" json:"discount_percent,omitempty"`
	AdminProfile    JSONMap          `db:"admin_profile" json:"admin_profile,omitempty"`
	Referrals       int              `db:"referrals" json:"referrals"`
	Orders          int              `db:"orders" json:"orders"`
	Conversions     int              `db:"conversions" json:"conversions"`
	Sales           decimal.Decimal  `db:"sales" json:"sales"`
	Earnings        decimal.Decimal  `db:"earnings" json:"earnings"`
	PaymentsPending decimal.Decimal  `db:"payments_pending" json:"payments_pending"`
	PaymentsPaid    decimal.Decimal  `db:"payments_paid" json:"payments_paid"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// JSONMap maps a JSONB column to a generic map
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}

	raw, ok := src.([]byte)

	if !ok {
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}

	return json.Unmarshal(raw, m)
}
