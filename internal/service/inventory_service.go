package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/internal/repository"
	apperrors "github.com/aezzeldin/storefront-api/pkg/errors"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

// Per-item outcome states for a reconciliation pass
const (
	ItemStatusSuccess = "success"
	ItemStatusSkipped = "skipped"
	ItemStatusError   = "error"
)

// perOrderTimeout bounds the work done on a single order during a sweep so
// one stuck order cannot stall the whole pass.
const perOrderTimeout = 30 * time.Second

// ItemResult reports what happened to one line item during reconciliation
type ItemResult struct {
	ProductID      string `json:"product_id"`
	Size           string `json:"size"`
	Color          string `json:"color"`
	Quantity       int    `json:"quantity"`
	Status         string `json:"status"`
	QuantityBefore int    `json:"quantity_before,omitempty"`
	QuantityAfter  int    `json:"quantity_after,omitempty"`
	Error          string `json:"error,omitempty"`
}

// OrderReconcileResult reports the outcome of reconciling one order
type OrderReconcileResult struct {
	OrderID          string       `json:"order_id"`
	Processed        bool         `json:"processed"`
	AlreadyProcessed bool         `json:"already_processed"`
	Items            []ItemResult `json:"items,omitempty"`
	FailedItems      int          `json:"failed_items"`
}

// SweepResult summarizes a full pass over unprocessed orders
type SweepResult struct {
	OrdersChecked   int                     `json:"orders_checked"`
	OrdersProcessed int                     `json:"orders_processed"`
	OrdersSkipped   int                     `json:"orders_skipped"`
	Orders          []*OrderReconcileResult `json:"orders"`
}

// ReconcilerOrderStore is the order persistence surface the reconciler needs
type ReconcilerOrderStore interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ClaimForInventory(ctx context.Context, id string) (bool, error)
	MarkItemInventoryUpdated(ctx context.Context, itemID int64) error
	ListUnprocessed(ctx context.Context) ([]*models.Order, error)
}

// VariantStore is the product persistence surface the reconciler needs
type VariantStore interface {
	GetInventory(ctx context.Context, id string) (*models.Inventory, error)
	ReplaceInventory(ctx context.Context, productID string, variants []models.InventoryVariant) (*models.Inventory, error)
	DeductVariant(ctx context.Context, productID, size, color string, quantity int) (before, after int, err error)
}

// InventoryService reconciles sold order items against product variant
// stock. An order is deducted at most once, claimed via an atomic flag flip
// before any stock is touched.
type InventoryService struct {
	orderRepo   ReconcilerOrderStore
	productRepo VariantStore
	logger      logger.Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(orderRepo ReconcilerOrderStore, productRepo VariantStore, logger logger.Logger) *InventoryService {
	return &InventoryService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		logger:      logger,
	}
}

// ReconcileOrder deducts one order's items from stock. Calling it again for
// the same order is a no-op reported via AlreadyProcessed. Item failures are
// isolated: a bad line is recorded and the rest still deduct.
func (s *InventoryService) ReconcileOrder(ctx context.Context, orderID string) (*OrderReconcileResult, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", orderID))
		}
		return nil, apperrors.NewInternalError("failed to load order")
	}

	claimed, err := s.orderRepo.ClaimForInventory(ctx, orderID)

	if err != nil {
		return nil, apperrors.NewInternalError("failed to claim order for processing")
	}

	if !claimed {
		s.logger.Info("Order already reconciled, skipping", "orderID", orderID)
		return &OrderReconcileResult{OrderID: orderID, AlreadyProcessed: true}, nil
	}

	result := &OrderReconcileResult{OrderID: orderID, Processed: true}

	for _, item := range order.Items {
		result.Items = append(result.Items, s.processItem(ctx, item))
	}

	for _, item := range result.Items {
		if item.Status == ItemStatusError {
			result.FailedItems++
		}
	}

	s.logger.Info("Order reconciled",
		"orderID", orderID,
		"items", len(result.Items),
		"failed", result.FailedItems)

	return result, nil
}

// SweepUnprocessed reconciles every order not yet processed, oldest first.
// Each order runs under its own timeout and its own claim, so a failure in
// one order never blocks the rest.
func (s *InventoryService) SweepUnprocessed(ctx context.Context) (*SweepResult, error) {
	orders, err := s.orderRepo.ListUnprocessed(ctx)

	if err != nil {
		return nil, apperrors.NewInternalError("failed to list unprocessed orders")
	}

	result := &SweepResult{OrdersChecked: len(orders)}

	for _, order := range orders {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("inventory sweep cancelled")
		}

		orderCtx, cancel := context.WithTimeout(ctx, perOrderTimeout)
		orderResult, err := s.ReconcileOrder(orderCtx, order.ID)
		cancel()

		if err != nil {
			s.logger.Error("Failed to reconcile order during sweep", "error", err, "orderID", order.ID)
			result.OrdersSkipped++
			result.Orders = append(result.Orders, &OrderReconcileResult{OrderID: order.ID})
			continue
		}

		if orderResult.AlreadyProcessed {
			result.OrdersSkipped++
		} else {
			result.OrdersProcessed++
		}

		result.Orders = append(result.Orders, orderResult)
	}

	s.logger.Info("Inventory sweep finished",
		"checked", result.OrdersChecked,
		"processed", result.OrdersProcessed,
		"skipped", result.OrdersSkipped)

	return result, nil
}

// GetProductInventory returns a product's stock as total plus variants
func (s *InventoryService) GetProductInventory(ctx context.Context, productID string) (*models.Inventory, error) {
	inventory, err := s.productRepo.GetInventory(ctx, productID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("product %s not found", productID))
		}
		return nil, apperrors.NewInternalError("failed to load inventory")
	}

	return inventory, nil
}

// SetProductInventory replaces a product's variant stock wholesale
func (s *InventoryService) SetProductInventory(ctx context.Context, productID string, variants []models.InventoryVariant) (*models.Inventory, error) {
	for _, v := range variants {
		if v.Size == "" {
			return nil, apperrors.NewValidationError("variant size is required")
		}
	}

	inventory, err := s.productRepo.ReplaceInventory(ctx, productID, variants)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("product %s not found", productID))
		}
		return nil, apperrors.NewInternalError("failed to replace inventory")
	}

	return inventory, nil
}

// ReduceProductInventory deducts stock from one variant directly, outside of
// any order. The quantity floors at zero.
func (s *InventoryService) ReduceProductInventory(ctx context.Context, productID, size, color string, quantity int) (*ItemResult, error) {
	if size == "" {
		return nil, apperrors.NewValidationError("size is required")
	}
	if quantity <= 0 {
		return nil, apperrors.NewValidationError("quantity must be positive")
	}

	if color == "" {
		color = models.DefaultVariantColor
	}

	before, after, err := s.productRepo.DeductVariant(ctx, productID, size, color, quantity)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(
				fmt.Sprintf("variant %s/%s of product %s not found", size, color, productID))
		}
		return nil, apperrors.NewInternalError("failed to reduce inventory")
	}

	return &ItemResult{
		ProductID:      productID,
		Size:           size,
		Color:          color,
		Quantity:       quantity,
		Status:         ItemStatusSuccess,
		QuantityBefore: before,
		QuantityAfter:  after,
	}, nil
}

// processItem deducts one line item, skipping lines already deducted
func (s *InventoryService) processItem(ctx context.Context, item *models.OrderItem) ItemResult {
	result := ItemResult{
		ProductID: item.ProductID,
		Size:      item.Size,
		Color:     item.VariantColor(),
		Quantity:  item.Quantity,
	}

	if item.InventoryUpdated {
		result.Status = ItemStatusSkipped
		return result
	}

	before, after, err := s.productRepo.DeductVariant(ctx, item.ProductID, item.Size, result.Color, item.Quantity)

	if err != nil {
		result.Status = ItemStatusError
		result.Error = err.Error()
		s.logger.Error("Failed to deduct item stock",
			"error", err,
			"orderID", item.OrderID,
			"productID", item.ProductID,
			"size", item.Size,
			"color", result.Color)
		return result
	}

	result.Status = ItemStatusSuccess
	result.QuantityBefore = before
	result.QuantityAfter = after

	if err := s.orderRepo.MarkItemInventoryUpdated(ctx, item.ID); err != nil {
		// stock is already deducted; log and report the line as updated
		s.logger.Error("Failed to mark item as deducted", "error", err, "itemID", item.ID)
	}

	return result
}
