package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentMethod represents how the customer pays
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cashOnDelivery"
	PaymentInstaPay       PaymentMethod = "instaPay"
)

// Order is the source of truth for what was purchased and its processing
// state. The ambassador fields are a snapshot copied at creation time, not a
// live reference, so historical commission figures stay stable even if the
// ambassador's rate later changes.
type Order struct {
	ID                    string              `db:"id" json:"id"`
	CustomerName          string              `db:"customer_name" json:"customer_name"`
	CustomerEmail         string              `db:"customer_email" json:"customer_email"`
	CustomerPhone         string              `db:"customer_phone" json:"customer_phone"`
	CustomerAddress       string              `db:"customer_address" json:"customer_address,omitempty"`
	Subtotal              decimal.Decimal     `db:"subtotal" json:"subtotal"`
	ShippingCost          decimal.Decimal     `db:"shipping_cost" json:"shipping_cost"`
	DiscountAmount        decimal.Decimal     `db:"discount_amount" json:"discount_amount"`
	TotalAmount           decimal.Decimal     `db:"total_amount" json:"total_amount"`
	Status                string              `db:"status" json:"status"`
	PaymentMethod         string              `db:"payment_method" json:"payment_method"`
	TransactionScreenshot *string             `db:"transaction_screenshot" json:"transaction_screenshot,omitempty"`
	PaymentVerified       *bool               `db:"payment_verified" json:"payment_verified"`
	CouponCode            *string             `db:"coupon_code" json:"coupon_code,omitempty"`
	Ambassador            *AmbassadorSnapshot `db:"-" json:"ambassador,omitempty"`
	InventoryProcessed    bool                `db:"inventory_processed" json:"inventory_processed"`
	Items                 []*OrderItem        `db:"-" json:"products"`
	CreatedAt             time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time           `db:"updated_at" json:"updated_at"`
}

// AmbassadorSnapshot is the commission context embedded in an order
type AmbassadorSnapshot struct {
	AmbassadorID   string          `json:"ambassador_id"`
	ReferralCode   string          `json:"referral_code,omitempty"`
	CouponCode     string          `json:"coupon_code"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	Commission     decimal.Decimal `json:"commission"`
	PaymentStatus  string          `json:"payment_status"`
}

// OrderItem is one purchased line. InventoryUpdated flips to true exactly
// once, when the reconciler has deducted this line's stock.
type OrderItem struct {
	ID               int64           `db:"id" json:"-"`
	OrderID          string          `db:"order_id" json:"-"`
	ProductID        string          `db:"product_id" json:"product_id"`
	Name             string          `db:"name" json:"name"`
	Price            decimal.Decimal `db:"price" json:"price"`
	Quantity         int             `db:"quantity" json:"quantity"`
	Size             string          `db:"size" json:"size"`
	Color            *string         `db:"color" json:"color,omitempty"`
	InventoryUpdated bool            `db:"inventory_updated" json:"inventory_updated"`
}

// VariantColor returns the variant color key for this line item; missing
// colors match the "Default" variant.
func (i *OrderItem) VariantColor() string {
	if i.Color == nil || *i.Color == "" {
		return DefaultVariantColor
	}
	return *i.Color
}

// NewOrder creates a pending order with payment_verified defaulted per
// payment method (nil for cash on delivery, false for InstaPay until an
// admin verifies the transfer).
func NewOrder(customerName, customerEmail, customerPhone, customerAddress string, paymentMethod PaymentMethod) *Order {
	now := GetCurrentTime()

	var paymentVerified *bool

	if paymentMethod == PaymentInstaPay {
		verified := false
		paymentVerified = &verified
	}

	return &Order{
		ID:              GenerateID("ord"),
		CustomerName:    customerName,
		CustomerEmail:   customerEmail,
		CustomerPhone:   customerPhone,
		CustomerAddress: customerAddress,
		Status:          string(OrderStatusPending),
		PaymentMethod:   string(paymentMethod),
		PaymentVerified: paymentVerified,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ItemsSubtotal computes the merchandise value of the order's line items
func (o *Order) ItemsSubtotal() decimal.Decimal {
	subtotal := decimal.Zero

	for _, item := range o.Items {
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	return subtotal
}
