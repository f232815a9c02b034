package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aezzeldin/storefront-api/internal/database"
	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrDatabase = errors.New("database error")
)

// Writable fields for the item-level patch endpoint
var allowedItemFields = map[string]string{
	"name":              "name",
	"price":             "price",
	"quantity":          "quantity",
	"size":              "size",
	"color":             "color",
	"inventory_updated": "inventory_updated",
}

// OrderRepository handles database operations for orders and their line items
type OrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.Database, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// BeginTx starts a transaction
func (r *OrderRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.DB.BeginTx(ctx, nil)

	if err != nil {
		r.logger.Error("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return tx, nil
}

// CreateInTx inserts an order and its line items within a transaction
func (r *OrderRepository) CreateInTx(tx *sql.Tx, order *models.Order) error {
	query := `
		INSERT INTO orders (
			id, customer_name, customer_email, customer_phone, customer_address,
			subtotal, shipping_cost, discount_amount, total_amount,
			status, payment_method, transaction_screenshot, payment_verified,
			coupon_code, ambassador_id, amb_referral_code, amb_coupon_code,
			amb_commission_rate, amb_commission, amb_payment_status,
			inventory_processed, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23
		)
	`

	var (
		ambassadorID, ambReferral, ambCoupon, ambPayment interface{}
		ambRate, ambCommission                           interface{}
	)

	if snap := order.Ambassador; snap != nil {
		ambassadorID = snap.AmbassadorID
		ambReferral = snap.ReferralCode
		ambCoupon = snap.CouponCode
		ambRate = snap.CommissionRate
		ambCommission = snap.Commission
		ambPayment = snap.PaymentStatus
	}

	_, err := tx.Exec(
		query,
		order.ID,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.CustomerAddress,
		order.Subtotal,
		order.ShippingCost,
		order.DiscountAmount,
		order.TotalAmount,
		order.Status,
		order.PaymentMethod,
		order.TransactionScreenshot,
		order.PaymentVerified,
		order.CouponCode,
		ambassadorID,
		ambReferral,
		ambCoupon,
		ambRate,
		ambCommission,
		ambPayment,
		order.InventoryProcessed,
		order.CreatedAt,
		order.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create order in transaction: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, name, price, quantity, size, color, inventory_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	for _, item := range order.Items {
		item.OrderID = order.ID

		err := tx.QueryRow(
			itemQuery,
			item.OrderID,
			item.ProductID,
			item.Name,
			item.Price,
			item.Quantity,
			item.Size,
			item.Color,
			item.InventoryUpdated,
		).Scan(&item.ID)

		if err != nil {
			return fmt.Errorf("failed to create order item in transaction: %w", err)
		}
	}

	return nil
}

// GetByID retrieves an order with its line items and ambassador snapshot
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `
		SELECT id, customer_name, customer_email, customer_phone, customer_address,
			   subtotal, shipping_cost, discount_amount, total_amount,
			   status, payment_method, transaction_screenshot, payment_verified,
			   coupon_code, inventory_processed, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var order models.Order
	err := r.db.DB.GetContext(ctx, &order, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order by ID", "error", err, "orderID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := r.attachSnapshot(ctx, &order); err != nil {
		return nil, err
	}

	if err := r.attachItems(ctx, &order); err != nil {
		return nil, err
	}

	return &order, nil
}

// GetAll retrieves orders newest first with limit and offset
func (r *OrderRepository) GetAll(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	query := `
		SELECT id, customer_name, customer_email, customer_phone, customer_address,
			   subtotal, shipping_cost, discount_amount, total_amount,
			   status, payment_method, transaction_screenshot, payment_verified,
			   coupon_code, inventory_processed, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query, limit, offset)

	if err != nil {
		r.logger.Error("Failed to get all orders", "error", err, "limit", limit, "offset", offset)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	for _, order := range orders {
		if err := r.attachSnapshot(ctx, order); err != nil {
			return nil, err
		}
		if err := r.attachItems(ctx, order); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// ListUnprocessed retrieves orders not yet reconciled, oldest first
func (r *OrderRepository) ListUnprocessed(ctx context.Context) ([]*models.Order, error) {
	query := `
		SELECT id, customer_name, customer_email, customer_phone, customer_address,
			   subtotal, shipping_cost, discount_amount, total_amount,
			   status, payment_method, transaction_screenshot, payment_verified,
			   coupon_code, inventory_processed, created_at, updated_at
		FROM orders
		WHERE inventory_processed = FALSE
		ORDER BY created_at ASC
	`

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query)

	if err != nil {
		r.logger.Error("Failed to list unprocessed orders", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	for _, order := range orders {
		if err := r.attachItems(ctx, order); err != nil {
			return nil, err
		}
	}

	return orders, nil
}

// Patch applies a targeted mutation of status and/or inventory_processed
func (r *OrderRepository) Patch(ctx context.Context, id string, status *string, inventoryProcessed *bool) error {
	query := `
		UPDATE orders
		SET status = COALESCE($1, status),
		    inventory_processed = COALESCE($2, inventory_processed),
		    updated_at = NOW()
		WHERE id = $3
	`

	result, err := r.db.DB.ExecContext(ctx, query, status, inventoryProcessed, id)

	if err != nil {
		r.logger.Error("Failed to patch order", "error", err, "orderID", id)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return checkRowsAffected(result)
}

// UpdateStatusInTx updates an order's status within a transaction
func (r *OrderRepository) UpdateStatusInTx(tx *sql.Tx, id, status string) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := tx.Exec(query, status, id)

	if err != nil {
		return fmt.Errorf("failed to update order status in transaction: %w", err)
	}

	return checkRowsAffected(result)
}

// ClaimForInventory atomically flips inventory_processed from false to true.
// Returns false when the order was already claimed; all deduction work is
// gated on this update's success so concurrent reconcilers cannot both
// deduct the same order.
func (r *OrderRepository) ClaimForInventory(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE orders
		SET inventory_processed = TRUE, updated_at = NOW()
		WHERE id = $1 AND inventory_processed = FALSE
	`

	result, err := r.db.DB.ExecContext(ctx, query, id)

	if err != nil {
		r.logger.Error("Failed to claim order for inventory processing", "error", err, "orderID", id)
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rows, err := result.RowsAffected()

	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return rows > 0, nil
}

// MarkItemInventoryUpdated flips a line item's inventory_updated flag
func (r *OrderRepository) MarkItemInventoryUpdated(ctx context.Context, itemID int64) error {
	query := `
		UPDATE order_items
		SET inventory_updated = TRUE
		WHERE id = $1 AND inventory_updated = FALSE
	`

	_, err := r.db.DB.ExecContext(ctx, query, itemID)

	if err != nil {
		r.logger.Error("Failed to mark item inventory updated", "error", err, "itemID", itemID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// PatchItem updates one field of a line item matched by productId+size and
// optionally color. Unknown fields are rejected.
func (r *OrderRepository) PatchItem(ctx context.Context, orderID, productID, size string, color *string, field string, value interface{}) error {
	column, ok := allowedItemFields[field]

	if !ok {
		return fmt.Errorf("%w: field %q is not updatable", ErrDatabase, field)
	}

	query := fmt.Sprintf(`
		UPDATE order_items
		SET %s = $1
		WHERE order_id = $2 AND product_id = $3 AND size = $4
		  AND ($5::text IS NULL OR COALESCE(color, 'Default') = $5)
	`, column)

	result, err := r.db.DB.ExecContext(ctx, query, value, orderID, productID, size, color)

	if err != nil {
		r.logger.Error("Failed to patch order item",
			"error", err,
			"orderID", orderID,
			"productID", productID,
			"size", size)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return checkRowsAffected(result)
}

// Count counts the total number of orders
func (r *OrderRepository) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM orders`

	err := r.db.DB.GetContext(ctx, &count, query)

	if err != nil {
		r.logger.Error("Failed to count orders", "error", err)
		return 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return count, nil
}

func (r *OrderRepository) attachItems(ctx context.Context, order *models.Order) error {
	query := `
		SELECT id, order_id, product_id, name, price, quantity, size, color, inventory_updated
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`

	var items []*models.OrderItem
	err := r.db.DB.SelectContext(ctx, &items, query, order.ID)

	if err != nil {
		r.logger.Error("Failed to get order items", "error", err, "orderID", order.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	order.Items = items
	return nil
}

// attachSnapshot loads the denormalized ambassador columns into the embedded
// snapshot struct.
func (r *OrderRepository) attachSnapshot(ctx context.Context, order *models.Order) error {
	query := `
		SELECT ambassador_id, amb_referral_code, amb_coupon_code,
		       amb_commission_rate, amb_commission, amb_payment_status
		FROM orders
		WHERE id = $1 AND ambassador_id IS NOT NULL
	`

	var snap struct {
		AmbassadorID   string         `db:"ambassador_id"`
		ReferralCode   *string        `db:"amb_referral_code"`
		CouponCode     *string        `db:"amb_coupon_code"`
		CommissionRate sql.NullString `db:"amb_commission_rate"`
		Commission     sql.NullString `db:"amb_commission"`
		PaymentStatus  *string        `db:"amb_payment_status"`
	}

	err := r.db.DB.GetContext(ctx, &snap, query, order.ID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // no ambassador attached
		}
		r.logger.Error("Failed to get ambassador snapshot", "error", err, "orderID", order.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	snapshot := &models.AmbassadorSnapshot{AmbassadorID: snap.AmbassadorID}

	if snap.ReferralCode != nil {
		snapshot.ReferralCode = *snap.ReferralCode
	}
	if snap.CouponCode != nil {
		snapshot.CouponCode = *snap.CouponCode
	}
	if snap.PaymentStatus != nil {
		snapshot.PaymentStatus = *snap.PaymentStatus
	}
	if snap.CommissionRate.Valid {
		if err := snapshot.CommissionRate.Scan(snap.CommissionRate.String); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
	}
	if snap.Commission.Valid {
		if err := snapshot.Commission.Scan(snap.Commission.String); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}
	}

	order.Ambassador = snapshot
	return nil
}

func checkRowsAffected(result sql.Result) error {
	rows, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
