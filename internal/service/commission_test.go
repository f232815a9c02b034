package service

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateCommission(t *testing.T) {
	cases := []struct {
		name     string
		subtotal string
		discount string
		rate     string
		expected string
	}{
		{"half of discounted subtotal", "200", "20", "50", "90"},
		{"no discount", "100", "0", "50", "50"},
		{"discount exceeds subtotal", "30", "50", "50", "0"},
		{"rounded to cents", "99.99", "10", "33", "29.7"},
		{"zero rate", "200", "0", "0", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			subtotal := decimal.RequireFromString(tc.subtotal)
			discount := decimal.RequireFromString(tc.discount)
			rate := decimal.RequireFromString(tc.rate)

			got := CalculateCommission(subtotal, discount, rate)

			if !got.Equal(decimal.RequireFromString(tc.expected)) {
				t.Fatalf("CalculateCommission(%s, %s, %s) = %s, expected %s",
					tc.subtotal, tc.discount, tc.rate, got, tc.expected)
			}
		})
	}
}

func TestCommissionBaseNeverNegative(t *testing.T) {
	base := CommissionBase(decimal.NewFromInt(10), decimal.NewFromInt(25))

	if !base.IsZero() {
		t.Fatalf("expected zero base, got %s", base)
	}
}

func TestCommissionExcludesShipping(t *testing.T) {
	// Shipping never enters the calculation: callers pass the merchandise
	// subtotal only. 200 subtotal, 20 discount, 50% -> 90 regardless of any
	// shipping charged on the order.
	got := CalculateCommission(decimal.NewFromInt(200), decimal.NewFromInt(20), decimal.NewFromInt(50))

	if got.String() != "90" {
		t.Fatalf("expected 90, got %s", got)
	}
}
