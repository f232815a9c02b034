package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/internal/repository"
	apperrors "github.com/aezzeldin/storefront-api/pkg/errors"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

// CommissionPaymentPending is the initial payout state of a commission
const CommissionPaymentPending = "pending"

// CreateOrderItemRequest is one line of an order submission
type CreateOrderItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Price     decimal.Decimal `json:"price" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	Size      string          `json:"size" validate:"required"`
	Color     *string         `json:"color"`
}

// CreateOrderRequest is the payload for creating an order
type CreateOrderRequest struct {
	CustomerName          string                   `json:"customer_name" validate:"required"`
	CustomerEmail         string                   `json:"customer_email" validate:"required,email"`
	CustomerPhone         string                   `json:"customer_phone" validate:"required"`
	CustomerAddress       string                   `json:"customer_address"`
	ShippingCost          decimal.Decimal          `json:"shipping_cost"`
	PaymentMethod         string                   `json:"payment_method" validate:"required,oneof=cashOnDelivery instaPay"`
	TransactionScreenshot *string                  `json:"transaction_screenshot"`
	CouponCode            *string                  `json:"coupon_code"`
	Items                 []CreateOrderItemRequest `json:"products" validate:"required,min=1,dive"`
}

// UpdateOrderRequest is the payload for patching an order
type UpdateOrderRequest struct {
	Status             *string `json:"status" validate:"omitempty,oneof=pending processing shipped delivered cancelled"`
	InventoryProcessed *bool   `json:"inventory_processed"`
}

// RedeemCouponRequest re-announces a coupon redemption for an existing order
type RedeemCouponRequest struct {
	Code    string `json:"code" validate:"required"`
	OrderID string `json:"order_id" validate:"required"`
}

// UpdateOrderItemRequest patches one field of a line item identified by
// product, size and optionally color.
type UpdateOrderItemRequest struct {
	ProductID string      `json:"product_id" validate:"required"`
	Size      string      `json:"size" validate:"required"`
	Color     *string     `json:"color"`
	Field     string      `json:"field" validate:"required"`
	Value     interface{} `json:"value" validate:"required"`
}

// OrderStore is the order persistence surface the service needs
type OrderStore interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CreateInTx(tx *sql.Tx, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetAll(ctx context.Context, limit, offset int) ([]*models.Order, error)
	Patch(ctx context.Context, id string, status *string, inventoryProcessed *bool) error
	UpdateStatusInTx(tx *sql.Tx, id, status string) error
	PatchItem(ctx context.Context, orderID, productID, size string, color *string, field string, value interface{}) error
	Count(ctx context.Context) (int, error)
}

// PromoUsage guards promo redemption counting
type PromoUsage interface {
	IncrementUsageInTx(tx *sql.Tx, id string) error
}

// AmbassadorLedger credits orders against ambassador counters
type AmbassadorLedger interface {
	ApplyOrderInTx(tx *sql.Tx, ambassadorID string, saleAmount, commission decimal.Decimal) error
}

// OutboxWriter records events in the same transaction as the change, or
// standalone when the event is the only write.
type OutboxWriter interface {
	CreateInTx(tx *sql.Tx, message *models.OutboxMessage) error
	Create(ctx context.Context, message *models.OutboxMessage) error
}

// OrderService owns order intake: validation, coupon application, commission
// crediting and the outbox events that fan the order out.
type OrderService struct {
	orderRepo      OrderStore
	promoRepo      PromoUsage
	ambassadorRepo AmbassadorLedger
	outboxRepo     OutboxWriter
	couponService  *CouponService
	policyCache    PolicyCacheStore
	validate       *validator.Validate
	logger         logger.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(
	orderRepo OrderStore,
	promoRepo PromoUsage,
	ambassadorRepo AmbassadorLedger,
	outboxRepo OutboxWriter,
	couponService *CouponService,
	policyCache PolicyCacheStore,
	logger logger.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:      orderRepo,
		promoRepo:      promoRepo,
		ambassadorRepo: ambassadorRepo,
		outboxRepo:     outboxRepo,
		couponService:  couponService,
		policyCache:    policyCache,
		validate:       validator.New(),
		logger:         logger,
	}
}

// CreateOrder validates and persists a new order. The order row, its items,
// any ledger credit, any promo usage increment and the outbox events all
// commit in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	order := models.NewOrder(
		req.CustomerName,
		req.CustomerEmail,
		req.CustomerPhone,
		req.CustomerAddress,
		models.PaymentMethod(req.PaymentMethod),
	)
	order.TransactionScreenshot = req.TransactionScreenshot
	order.ShippingCost = req.ShippingCost.Round(2)

	for _, item := range req.Items {
		order.Items = append(order.Items, &models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Size:      item.Size,
			Color:     item.Color,
		})
	}

	order.Subtotal = order.ItemsSubtotal().Round(2)

	var discount *models.Discount

	if req.CouponCode != nil && *req.CouponCode != "" {
		applied, err := s.applyCoupon(ctx, order, *req.CouponCode)

		if err != nil {
			return nil, err
		}

		discount = applied
	}

	order.TotalAmount = order.Subtotal.Sub(order.DiscountAmount).Add(order.ShippingCost)

	tx, err := s.orderRepo.BeginTx(ctx)

	if err != nil {
		return nil, apperrors.NewInternalError("failed to start transaction")
	}
	defer tx.Rollback()

	if err := s.orderRepo.CreateInTx(tx, order); err != nil {
		s.logger.Error("Failed to create order", "error", err, "orderID", order.ID)
		return nil, apperrors.NewInternalError("failed to create order")
	}

	if discount != nil {
		if err := s.settleDiscountInTx(ctx, tx, order, discount); err != nil {
			return nil, err
		}
	}

	if err := s.writeCreationEventsInTx(tx, order, discount); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit order transaction", "error", err, "orderID", order.ID)
		return nil, apperrors.NewInternalError("failed to create order")
	}

	s.logger.Info("Order created",
		"orderID", order.ID,
		"total", order.TotalAmount,
		"couponCode", derefString(order.CouponCode),
		"items", len(order.Items))

	return order, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, id)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", id))
		}
		return nil, apperrors.NewInternalError("failed to get order")
	}

	return order, nil
}

// ListOrders retrieves orders newest first, with the total count for paging
func (s *OrderService) ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.orderRepo.GetAll(ctx, limit, offset)

	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to list orders")
	}

	count, err := s.orderRepo.Count(ctx)

	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to count orders")
	}

	return orders, count, nil
}

// RedeemCoupon records a redemption event for an already-created order and
// queues it for delivery to the admin service. The event is durable locally
// before any remote call happens; delivery failures never surface here.
func (s *OrderService) RedeemCoupon(ctx context.Context, req *RedeemCouponRequest) (*models.OutboxMessage, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	order, err := s.orderRepo.GetByID(ctx, req.OrderID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", req.OrderID))
		}
		return nil, apperrors.NewInternalError("failed to get order")
	}

	code := NormalizeCode(req.Code)

	var ambassadorID string
	if order.Ambassador != nil {
		ambassadorID = order.Ambassador.AmbassadorID
	}

	event, err := models.NewRedemptionRecordedEvent(order, code, ambassadorID)

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build redemption event")
	}

	if err := s.outboxRepo.Create(ctx, event); err != nil {
		s.logger.Error("Failed to queue redemption event", "error", err, "orderID", order.ID, "code", code)
		return nil, apperrors.NewInternalError("failed to record redemption")
	}

	s.logger.Info("Redemption queued for delivery", "orderID", order.ID, "code", code)

	return event, nil
}

// UpdateOrder patches an order's status and/or inventory flag. A status
// change also records an order_status_changed event.
func (s *OrderService) UpdateOrder(ctx context.Context, id string, req *UpdateOrderRequest) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	if req.Status == nil && req.InventoryProcessed == nil {
		return nil, apperrors.NewValidationError("no updatable fields provided")
	}

	order, err := s.GetOrder(ctx, id)

	if err != nil {
		return nil, err
	}

	if req.Status != nil && *req.Status != order.Status {
		if err := s.changeStatus(ctx, order, *req.Status); err != nil {
			return nil, err
		}
	}

	if req.InventoryProcessed != nil {
		if err := s.orderRepo.Patch(ctx, id, nil, req.InventoryProcessed); err != nil {
			return nil, apperrors.NewInternalError("failed to update order")
		}
	}

	return s.GetOrder(ctx, id)
}

// UpdateOrderItem patches a single field of a line item
func (s *OrderService) UpdateOrderItem(ctx context.Context, orderID string, req *UpdateOrderItemRequest) (*models.Order, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	err := s.orderRepo.PatchItem(ctx, orderID, req.ProductID, req.Size, req.Color, req.Field, req.Value)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("order item not found")
		}
		if errors.Is(err, repository.ErrDatabase) {
			return nil, apperrors.NewValidationError(err.Error())
		}
		return nil, apperrors.NewInternalError("failed to update order item")
	}

	return s.GetOrder(ctx, orderID)
}

func (s *OrderService) validateCreateRequest(req *CreateOrderRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return validationError(err)
	}

	if req.PaymentMethod == string(models.PaymentInstaPay) {
		if req.TransactionScreenshot == nil || *req.TransactionScreenshot == "" {
			return apperrors.NewValidationError("instaPay orders require a transaction screenshot")
		}
	}

	for _, item := range req.Items {
		if item.Price.IsNegative() {
			return apperrors.NewValidationError(fmt.Sprintf("product %s has a negative price", item.ProductID))
		}
	}

	return nil
}

// applyCoupon validates the code against the current subtotal and stamps the
// discount, coupon code and any ambassador snapshot onto the order.
func (s *OrderService) applyCoupon(ctx context.Context, order *models.Order, code string) (*models.Discount, error) {
	result, err := s.couponService.Validate(ctx, code, &order.Subtotal)

	if err != nil {
		return nil, err
	}

	if !result.Valid {
		return nil, apperrors.NewValidationError("coupon code rejected").WithDetails(result.Reason)
	}

	discount := result.Discount
	normalized := NormalizeCode(code)
	order.CouponCode = &normalized
	order.DiscountAmount = discount.AmountFor(order.Subtotal)

	if discount.IsAmbassador {
		commission := CalculateCommission(order.Subtotal, order.DiscountAmount, discount.CommissionRate)

		order.Ambassador = &models.AmbassadorSnapshot{
			AmbassadorID:   discount.AmbassadorID,
			ReferralCode:   derefString(discount.ReferralCode),
			CouponCode:     normalized,
			CommissionRate: discount.CommissionRate,
			Commission:     commission,
			PaymentStatus:  CommissionPaymentPending,
		}
	}

	return discount, nil
}

// settleDiscountInTx performs the policy-side bookkeeping of a redeemed
// discount: the guarded promo usage increment, or the ambassador ledger
// credit. Both writes re-check effectiveness at the row level, so a policy
// that changed underneath a cached validation is rejected here rather than
// redeemed.
func (s *OrderService) settleDiscountInTx(ctx context.Context, tx *sql.Tx, order *models.Order, discount *models.Discount) error {
	if discount.IsAmbassador {
		snap := order.Ambassador

		base := CommissionBase(order.Subtotal, order.DiscountAmount)
		if err := s.ambassadorRepo.ApplyOrderInTx(tx, snap.AmbassadorID, base, snap.Commission); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// ambassador lost approved status after the policy was cached
				return s.rejectStalePolicy(ctx, discount.Code)
			}
			s.logger.Error("Failed to credit ambassador ledger", "error", err, "ambassadorID", snap.AmbassadorID)
			return apperrors.NewInternalError("failed to credit ambassador")
		}

		return nil
	}

	err := s.promoRepo.IncrementUsageInTx(tx, discount.PolicyID)

	if err != nil {
		if errors.Is(err, repository.ErrNotRedeemable) {
			return s.rejectStalePolicy(ctx, discount.Code)
		}
		s.logger.Error("Failed to increment promo usage", "error", err, "promoID", discount.PolicyID)
		return apperrors.NewInternalError("failed to record coupon usage")
	}

	return nil
}

// rejectStalePolicy handles a guarded write that found its policy no longer
// effective even though validation passed, which happens when a cached policy
// outlives a change in the database. The cache entry is dropped and the code
// re-validated against the database for the exact rejection reason.
func (s *OrderService) rejectStalePolicy(ctx context.Context, code string) error {
	if s.policyCache != nil {
		s.policyCache.Invalidate(ctx, code)
	}

	reason := ReasonLimitReached

	if s.couponService != nil {
		if result, err := s.couponService.Validate(ctx, code, nil); err == nil && !result.Valid {
			reason = result.Reason
		}
	}

	return apperrors.NewValidationError("coupon code rejected").WithDetails(reason)
}

func (s *OrderService) writeCreationEventsInTx(tx *sql.Tx, order *models.Order, discount *models.Discount) error {
	events := make([]*models.OutboxMessage, 0, 3)

	created, err := models.NewOrderCreatedEvent(order)

	if err != nil {
		return apperrors.NewInternalError("failed to build order event")
	}
	events = append(events, created)

	if discount != nil && discount.IsAmbassador {
		snap := order.Ambassador

		redemption, err := models.NewRedemptionRecordedEvent(order, snap.CouponCode, snap.AmbassadorID)
		if err != nil {
			return apperrors.NewInternalError("failed to build redemption event")
		}
		events = append(events, redemption)

		stats, err := models.NewAmbassadorStatsUpdatedEvent(
			snap.AmbassadorID,
			order.ID,
			snap.Commission,
			CommissionBase(order.Subtotal, order.DiscountAmount),
		)
		if err != nil {
			return apperrors.NewInternalError("failed to build stats event")
		}
		events = append(events, stats)
	}

	for _, event := range events {
		if err := s.outboxRepo.CreateInTx(tx, event); err != nil {
			s.logger.Error("Failed to write outbox message", "error", err, "orderID", order.ID)
			return apperrors.NewInternalError("failed to record order events")
		}
	}

	return nil
}

func (s *OrderService) changeStatus(ctx context.Context, order *models.Order, newStatus string) error {
	tx, err := s.orderRepo.BeginTx(ctx)

	if err != nil {
		return apperrors.NewInternalError("failed to start transaction")
	}
	defer tx.Rollback()

	oldStatus := order.Status

	if err := s.orderRepo.UpdateStatusInTx(tx, order.ID, newStatus); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFoundError(fmt.Sprintf("order %s not found", order.ID))
		}
		return apperrors.NewInternalError("failed to update order status")
	}

	order.Status = newStatus
	event, err := models.NewOrderStatusChangedEvent(order, oldStatus)

	if err != nil {
		return apperrors.NewInternalError("failed to build status event")
	}

	if err := s.outboxRepo.CreateInTx(tx, event); err != nil {
		return apperrors.NewInternalError("failed to record status event")
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to update order status")
	}

	s.logger.Info("Order status changed", "orderID", order.ID, "from", oldStatus, "to", newStatus)
	return nil
}

// validationError converts validator errors into a 400 with field details
func validationError(err error) error {
	appErr := apperrors.NewValidationError("invalid request")

	var fieldErrors validator.ValidationErrors

	if errors.As(err, &fieldErrors) {
		for _, fe := range fieldErrors {
			appErr = appErr.WithDetails(fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
	}

	return appErr
}
