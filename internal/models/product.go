package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultVariantColor is the color key used when a line item or variant
// carries no explicit color.
const DefaultVariantColor = "Default"

// Product is a catalog entry. InventoryTotal must equal the sum of its
// variants' quantities after every mutation; the repository recomputes it
// whenever a variant changes.
type Product struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Price          decimal.Decimal `db:"price" json:"price"`
	InventoryTotal int             `db:"inventory_total" json:"inventory_total"`
	Variants       []*Variant      `db:"-" json:"variants,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Variant is a product's (size, color) stock-keeping unit
type Variant struct {
	ID        int64  `db:"id" json:"-"`
	ProductID string `db:"product_id" json:"-"`
	Size      string `db:"size" json:"size"`
	Color     string `db:"color" json:"color"`
	Quantity  int    `db:"quantity" json:"quantity"`
}

// InventoryVariant is one (size, color) stock line on the wire
type InventoryVariant struct {
	Size     string `json:"size"`
	Color    string `json:"color"`
	Quantity int    `json:"quantity"`
}

// Inventory is the wire representation of a product's stock block
type Inventory struct {
	Total    int                `json:"total"`
	Variants []InventoryVariant `json:"variants"`
}
