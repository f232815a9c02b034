package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/internal/repository"
	apperrors "github.com/aezzeldin/storefront-api/pkg/errors"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

type fakePromoUsage struct {
	err   error
	calls int
}

func (f *fakePromoUsage) IncrementUsageInTx(tx *sql.Tx, id string) error {
	f.calls++
	return f.err
}

type fakeAmbassadorLedger struct {
	err error
}

func (f *fakeAmbassadorLedger) ApplyOrderInTx(tx *sql.Tx, ambassadorID string, saleAmount, commission decimal.Decimal) error {
	return f.err
}

func newTestOrderService(couponSvc *CouponService) *OrderService {
	if couponSvc == nil {
		couponSvc = newTestCouponService(nil, nil)
	}

	return NewOrderService(nil, nil, nil, nil, couponSvc, nil, logger.NewLogger("error"))
}

func validCreateRequest() *CreateOrderRequest {
	return &CreateOrderRequest{
		CustomerName:  "Nour Hassan",
		CustomerEmail: "nour@example.com",
		CustomerPhone: "+201001234567",
		PaymentMethod: string(models.PaymentCashOnDelivery),
		ShippingCost:  decimal.NewFromInt(20),
		Items: []CreateOrderItemRequest{
			{ProductID: "prod_1", Name: "Tee", Price: decimal.NewFromInt(100), Quantity: 2, Size: "M"},
		},
	}
}

func TestValidateCreateRequest(t *testing.T) {
	svc := newTestOrderService(nil)

	cases := []struct {
		name   string
		mutate func(*CreateOrderRequest)
	}{
		{"missing name", func(r *CreateOrderRequest) { r.CustomerName = "" }},
		{"bad email", func(r *CreateOrderRequest) { r.CustomerEmail = "not-an-email" }},
		{"no items", func(r *CreateOrderRequest) { r.Items = nil }},
		{"zero quantity", func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }},
		{"missing size", func(r *CreateOrderRequest) { r.Items[0].Size = "" }},
		{"unknown payment method", func(r *CreateOrderRequest) { r.PaymentMethod = "bitcoin" }},
		{"negative price", func(r *CreateOrderRequest) { r.Items[0].Price = decimal.NewFromInt(-5) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(req)

			err := svc.validateCreateRequest(req)

			if err == nil {
				t.Fatal("expected validation error")
			}

			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) || appErr.StatusCode != 400 {
				t.Fatalf("expected 400 validation error, got %v", err)
			}
		})
	}

	if err := svc.validateCreateRequest(validCreateRequest()); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
}

func TestInstaPayRequiresScreenshot(t *testing.T) {
	svc := newTestOrderService(nil)

	req := validCreateRequest()
	req.PaymentMethod = string(models.PaymentInstaPay)

	if err := svc.validateCreateRequest(req); err == nil {
		t.Fatal("expected instaPay order without screenshot to be rejected")
	}

	screenshot := "https://cdn.example.com/receipts/abc.png"
	req.TransactionScreenshot = &screenshot

	if err := svc.validateCreateRequest(req); err != nil {
		t.Fatalf("instaPay order with screenshot rejected: %v", err)
	}
}

func TestApplyCouponStampsAmbassadorSnapshot(t *testing.T) {
	discountPct := decimal.NewFromInt(10)
	ambassador := &models.Ambassador{
		ID:              "amb_1",
		Status:          string(models.AmbassadorStatusApproved),
		CouponCode:      strPtr("RANIA20"),
		CommissionRate:  decimal.NewFromInt(50),
		DiscountPercent: &discountPct,
	}
	couponSvc := newTestCouponService(nil, map[string]*models.Ambassador{"RANIA20": ambassador})
	svc := newTestOrderService(couponSvc)

	order := models.NewOrder("Nour", "nour@example.com", "+20100", "", models.PaymentCashOnDelivery)
	order.Subtotal = decimal.NewFromInt(200)
	order.ShippingCost = decimal.NewFromInt(20)

	discount, err := svc.applyCoupon(context.Background(), order, "rania20")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !discount.IsAmbassador {
		t.Fatal("expected ambassador discount")
	}

	// 10% of 200 = 20 discount
	if !order.DiscountAmount.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected discount 20, got %s", order.DiscountAmount)
	}

	snap := order.Ambassador
	if snap == nil {
		t.Fatal("expected ambassador snapshot on order")
	}
	if snap.AmbassadorID != "amb_1" {
		t.Fatalf("expected amb_1, got %q", snap.AmbassadorID)
	}

	// commission: (200 - 20) * 50% = 90, shipping excluded
	if !snap.Commission.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected commission 90, got %s", snap.Commission)
	}
	if snap.PaymentStatus != CommissionPaymentPending {
		t.Fatalf("expected pending payment status, got %q", snap.PaymentStatus)
	}
	if order.CouponCode == nil || *order.CouponCode != "RANIA20" {
		t.Fatalf("expected normalized coupon code RANIA20, got %v", order.CouponCode)
	}
}

func TestApplyCouponRejectedCode(t *testing.T) {
	svc := newTestOrderService(nil)

	order := models.NewOrder("Nour", "nour@example.com", "+20100", "", models.PaymentCashOnDelivery)
	order.Subtotal = decimal.NewFromInt(100)

	_, err := svc.applyCoupon(context.Background(), order, "UNKNOWN")

	if err == nil {
		t.Fatal("expected rejection for unknown code")
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.StatusCode != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
	if len(appErr.Details) == 0 || appErr.Details[0] != ReasonNotFound {
		t.Fatalf("expected rejection reason in details, got %v", appErr.Details)
	}
}

func TestApplyCouponFixedDiscountCappedAtSubtotal(t *testing.T) {
	promo := &models.PromoCode{
		ID:           "pc_1",
		Code:         "FLAT50",
		DiscountType: string(models.DiscountFixed),
		Value:        decimal.NewFromInt(50),
		IsActive:     true,
	}
	couponSvc := newTestCouponService(map[string]*models.PromoCode{"FLAT50": promo}, nil)
	svc := newTestOrderService(couponSvc)

	order := models.NewOrder("Nour", "nour@example.com", "+20100", "", models.PaymentCashOnDelivery)
	order.Subtotal = decimal.NewFromInt(30)

	if _, err := svc.applyCoupon(context.Background(), order, "FLAT50"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !order.DiscountAmount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected discount capped at 30, got %s", order.DiscountAmount)
	}
}

func TestSettleDiscountStaleCachedPromo(t *testing.T) {
	// the cached policy passed validation, but the row was deactivated in the
	// meantime; the guarded increment refuses and the exact reason comes from
	// re-validating against the database
	promo := &models.PromoCode{
		ID:           "pc_1",
		Code:         "SAVE10",
		DiscountType: "percentage",
		Value:        decimal.NewFromInt(10),
		IsActive:     false,
	}
	policyCache := newFakePolicyCache()
	policyCache.Set(context.Background(), "SAVE10", &models.Discount{PolicyID: "pc_1", Code: "SAVE10"})

	couponSvc := NewCouponService(
		&fakePromoRepo{promos: map[string]*models.PromoCode{"SAVE10": promo}},
		&fakeAmbassadorRepo{},
		policyCache,
		logger.NewLogger("error"),
	)
	usage := &fakePromoUsage{err: repository.ErrNotRedeemable}
	svc := NewOrderService(nil, usage, nil, nil, couponSvc, policyCache, logger.NewLogger("error"))

	order := models.NewOrder("Nour", "nour@example.com", "+20100", "", models.PaymentCashOnDelivery)
	discount := &models.Discount{PolicyID: "pc_1", Code: "SAVE10"}

	err := svc.settleDiscountInTx(context.Background(), nil, order, discount)

	if err == nil {
		t.Fatal("expected stale policy to be rejected")
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.StatusCode != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
	if len(appErr.Details) == 0 || appErr.Details[0] != ReasonInactive {
		t.Fatalf("expected reason %q from re-validation, got %v", ReasonInactive, appErr.Details)
	}
	if len(policyCache.invalidated) == 0 || policyCache.invalidated[0] != "SAVE10" {
		t.Fatalf("expected cached policy SAVE10 to be invalidated, got %v", policyCache.invalidated)
	}
	if usage.calls != 1 {
		t.Fatalf("expected one increment attempt, got %d", usage.calls)
	}
}

func TestSettleDiscountAmbassadorNoLongerApproved(t *testing.T) {
	policyCache := newFakePolicyCache()
	policyCache.Set(context.Background(), "RANIA20", &models.Discount{
		PolicyID:     "amb_1",
		Code:         "RANIA20",
		IsAmbassador: true,
		AmbassadorID: "amb_1",
	})

	// no repo resolves the code anymore, matching a rejected ambassador
	couponSvc := NewCouponService(&fakePromoRepo{}, &fakeAmbassadorRepo{}, policyCache, logger.NewLogger("error"))
	ledger := &fakeAmbassadorLedger{err: repository.ErrNotFound}
	svc := NewOrderService(nil, nil, ledger, nil, couponSvc, policyCache, logger.NewLogger("error"))

	order := models.NewOrder("Nour", "nour@example.com", "+20100", "", models.PaymentCashOnDelivery)
	order.Subtotal = decimal.NewFromInt(200)
	order.DiscountAmount = decimal.NewFromInt(20)
	order.Ambassador = &models.AmbassadorSnapshot{
		AmbassadorID: "amb_1",
		CouponCode:   "RANIA20",
		Commission:   decimal.NewFromInt(90),
	}
	discount := &models.Discount{
		PolicyID:     "amb_1",
		Code:         "RANIA20",
		IsAmbassador: true,
		AmbassadorID: "amb_1",
	}

	err := svc.settleDiscountInTx(context.Background(), nil, order, discount)

	if err == nil {
		t.Fatal("expected rejected ambassador to fail the settlement")
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.StatusCode != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
	if len(appErr.Details) == 0 || appErr.Details[0] != ReasonNotFound {
		t.Fatalf("expected reason %q, got %v", ReasonNotFound, appErr.Details)
	}
	if len(policyCache.invalidated) == 0 || policyCache.invalidated[0] != "RANIA20" {
		t.Fatalf("expected cached policy RANIA20 to be invalidated, got %v", policyCache.invalidated)
	}
}

func TestSettleDiscountPromoSuccess(t *testing.T) {
	usage := &fakePromoUsage{}
	svc := NewOrderService(nil, usage, nil, nil, newTestCouponService(nil, nil), nil, logger.NewLogger("error"))

	order := models.NewOrder("Nour", "nour@example.com", "+20100", "", models.PaymentCashOnDelivery)
	discount := &models.Discount{PolicyID: "pc_1", Code: "SAVE10"}

	if err := svc.settleDiscountInTx(context.Background(), nil, order, discount); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usage.calls != 1 {
		t.Fatalf("expected one increment, got %d", usage.calls)
	}
}

func TestNewOrderPaymentVerifiedDefaults(t *testing.T) {
	cod := models.NewOrder("A", "a@b.c", "1", "", models.PaymentCashOnDelivery)

	if cod.PaymentVerified != nil {
		t.Fatal("cash on delivery order should have nil payment_verified")
	}

	insta := models.NewOrder("A", "a@b.c", "1", "", models.PaymentInstaPay)

	if insta.PaymentVerified == nil || *insta.PaymentVerified {
		t.Fatal("instaPay order should start with payment_verified=false")
	}
}
