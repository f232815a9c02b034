package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestItemsSubtotal(t *testing.T) {
	order := &Order{
		Items: []*OrderItem{
			{Price: decimal.RequireFromString("49.99"), Quantity: 2},
			{Price: decimal.NewFromInt(100), Quantity: 1},
		},
	}

	got := order.ItemsSubtotal()

	if !got.Equal(decimal.RequireFromString("199.98")) {
		t.Fatalf("expected 199.98, got %s", got)
	}
}

func TestVariantColorDefaults(t *testing.T) {
	empty := ""
	black := "Black"

	cases := []struct {
		name     string
		color    *string
		expected string
	}{
		{"nil color", nil, DefaultVariantColor},
		{"empty color", &empty, DefaultVariantColor},
		{"explicit color", &black, "Black"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := &OrderItem{Color: tc.color}

			if got := item.VariantColor(); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestNewOrderDefaults(t *testing.T) {
	order := NewOrder("Nour", "nour@example.com", "+20100", "Cairo", PaymentCashOnDelivery)

	if order.ID == "" {
		t.Fatal("expected generated order ID")
	}
	if order.Status != string(OrderStatusPending) {
		t.Fatalf("expected pending status, got %q", order.Status)
	}
	if order.InventoryProcessed {
		t.Fatal("new order must not be marked inventory processed")
	}
}
