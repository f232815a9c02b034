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

// ProductRepository handles database operations for products and variants
type ProductRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(db *database.Database, logger logger.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a product with its variants
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	query := `
		SELECT id, name, price, inventory_total, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var product models.Product
	err := r.db.DB.GetContext(ctx, &product, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get product by ID", "error", err, "productID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := r.attachVariants(ctx, &product); err != nil {
		return nil, err
	}

	return &product, nil
}

// GetInventory retrieves a product's inventory as total plus variant rows
func (r *ProductRepository) GetInventory(ctx context.Context, id string) (*models.Inventory, error) {
	product, err := r.GetByID(ctx, id)

	if err != nil {
		return nil, err
	}

	inventory := &models.Inventory{
		Total:    product.InventoryTotal,
		Variants: make([]models.InventoryVariant, 0, len(product.Variants)),
	}

	for _, v := range product.Variants {
		inventory.Variants = append(inventory.Variants, models.InventoryVariant{
			Size:     v.Size,
			Color:    v.Color,
			Quantity: v.Quantity,
		})
	}

	return inventory, nil
}

// ReplaceInventory replaces the full variant set of a product and recomputes
// the cached total, all in one transaction.
func (r *ProductRepository) ReplaceInventory(ctx context.Context, productID string, variants []models.InventoryVariant) (*models.Inventory, error) {
	tx, err := r.db.DB.BeginTx(ctx, nil)

	if err != nil {
		r.logger.Error("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if !exists {
		return nil, ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM product_variants WHERE product_id = $1`, productID); err != nil {
		r.logger.Error("Failed to clear product variants", "error", err, "productID", productID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	insert := `
		INSERT INTO product_variants (product_id, size, color, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, size, color)
		DO UPDATE SET quantity = product_variants.quantity + EXCLUDED.quantity
	`

	for _, v := range variants {
		color := v.Color
		if color == "" {
			color = models.DefaultVariantColor
		}

		quantity := v.Quantity
		if quantity < 0 {
			quantity = 0
		}

		if _, err := tx.Exec(insert, productID, v.Size, color, quantity); err != nil {
			r.logger.Error("Failed to insert product variant",
				"error", err,
				"productID", productID,
				"size", v.Size,
				"color", color)
			return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
		}
	}

	if err := recomputeTotal(tx, productID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return r.GetInventory(ctx, productID)
}

// DeductVariant atomically subtracts quantity from a (size, color) variant,
// flooring at zero, and recomputes the product total. Returns the variant
// quantity before and after the deduction.
func (r *ProductRepository) DeductVariant(ctx context.Context, productID, size, color string, quantity int) (before, after int, err error) {
	if color == "" {
		color = models.DefaultVariantColor
	}

	tx, err := r.db.DB.BeginTx(ctx, nil)

	if err != nil {
		r.logger.Error("Failed to begin transaction", "error", err)
		return 0, 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	defer tx.Rollback()

	query := `
		WITH current AS (
			SELECT quantity FROM product_variants
			WHERE product_id = $2 AND size = $3 AND color = $4
			FOR UPDATE
		), updated AS (
			UPDATE product_variants
			SET quantity = GREATEST(quantity - $1, 0)
			WHERE product_id = $2 AND size = $3 AND color = $4
			RETURNING quantity
		)
		SELECT current.quantity, updated.quantity FROM current, updated
	`

	err = tx.QueryRow(query, quantity, productID, size, color).Scan(&before, &after)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		r.logger.Error("Failed to deduct variant quantity",
			"error", err,
			"productID", productID,
			"size", size,
			"color", color)
		return 0, 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := recomputeTotal(tx, productID); err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return before, after, nil
}

func (r *ProductRepository) attachVariants(ctx context.Context, product *models.Product) error {
	query := `
		SELECT id, product_id, size, color, quantity
		FROM product_variants
		WHERE product_id = $1
		ORDER BY size ASC, color ASC
	`

	var variants []*models.Variant
	err := r.db.DB.SelectContext(ctx, &variants, query, product.ID)

	if err != nil {
		r.logger.Error("Failed to get product variants", "error", err, "productID", product.ID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	product.Variants = variants
	return nil
}

func recomputeTotal(tx *sql.Tx, productID string) error {
	query := `
		UPDATE products
		SET inventory_total = COALESCE(
			(SELECT SUM(quantity) FROM product_variants WHERE product_id = $1), 0
		), updated_at = NOW()
		WHERE id = $1
	`

	if _, err := tx.Exec(query, productID); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}
