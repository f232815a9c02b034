package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/internal/repository"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

type fakePromoRepo struct {
	promos map[string]*models.PromoCode
}

func (f *fakePromoRepo) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	promo, ok := f.promos[NormalizeCode(code)]

	if !ok {
		return nil, repository.ErrNotFound
	}

	return promo, nil
}

type fakeAmbassadorRepo struct {
	byCoupon   map[string]*models.Ambassador
	byReferral map[string]*models.Ambassador
}

func (f *fakeAmbassadorRepo) GetApprovedByCouponCode(ctx context.Context, code string) (*models.Ambassador, error) {
	ambassador, ok := f.byCoupon[NormalizeCode(code)]

	if !ok {
		return nil, repository.ErrNotFound
	}

	return ambassador, nil
}

func (f *fakeAmbassadorRepo) GetApprovedByReferralCode(ctx context.Context, code string) (*models.Ambassador, error) {
	ambassador, ok := f.byReferral[NormalizeCode(code)]

	if !ok {
		return nil, repository.ErrNotFound
	}

	return ambassador, nil
}

// fakePolicyCache is an in-memory PolicyCacheStore
type fakePolicyCache struct {
	store       map[string]*models.Discount
	invalidated []string
}

func newFakePolicyCache() *fakePolicyCache {
	return &fakePolicyCache{store: make(map[string]*models.Discount)}
}

func (f *fakePolicyCache) Get(ctx context.Context, code string) (*models.Discount, error) {
	discount, ok := f.store[code]

	if !ok {
		return nil, repository.ErrNotFound
	}

	return discount, nil
}

func (f *fakePolicyCache) Set(ctx context.Context, code string, discount *models.Discount) {
	f.store[code] = discount
}

func (f *fakePolicyCache) Invalidate(ctx context.Context, code string) {
	f.invalidated = append(f.invalidated, code)
	delete(f.store, code)
}

func newTestCouponService(promos map[string]*models.PromoCode, ambassadors map[string]*models.Ambassador) *CouponService {
	return NewCouponService(
		&fakePromoRepo{promos: promos},
		&fakeAmbassadorRepo{byCoupon: ambassadors},
		nil,
		logger.NewLogger("error"),
	)
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func strPtr(s string) *string { return &s }

func TestValidateUnknownCode(t *testing.T) {
	svc := newTestCouponService(nil, nil)

	result, err := svc.Validate(context.Background(), "NOPE", nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Fatal("expected invalid result")
	}
	if result.Reason != ReasonNotFound {
		t.Fatalf("expected reason %q, got %q", ReasonNotFound, result.Reason)
	}
}

func TestValidatePromoRejectionReasons(t *testing.T) {
	now := time.Now().UTC()

	cases := []struct {
		name   string
		promo  *models.PromoCode
		reason string
	}{
		{
			name: "inactive",
			promo: &models.PromoCode{
				Code: "SAVE10", DiscountType: "percentage",
				Value: decimal.NewFromInt(10), IsActive: false,
			},
			reason: ReasonInactive,
		},
		{
			name: "not yet active",
			promo: &models.PromoCode{
				Code: "SAVE10", DiscountType: "percentage",
				Value: decimal.NewFromInt(10), IsActive: true,
				StartDate: timePtr(now.Add(24 * time.Hour)),
			},
			reason: ReasonNotYetActive,
		},
		{
			name: "expired",
			promo: &models.PromoCode{
				Code: "SAVE10", DiscountType: "percentage",
				Value: decimal.NewFromInt(10), IsActive: true,
				EndDate: timePtr(now.Add(-24 * time.Hour)),
			},
			reason: ReasonExpired,
		},
		{
			name: "limit reached",
			promo: &models.PromoCode{
				Code: "SAVE10", DiscountType: "percentage",
				Value: decimal.NewFromInt(10), IsActive: true,
				MaxUses: intPtr(5), UsedCount: 5,
			},
			reason: ReasonLimitReached,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestCouponService(map[string]*models.PromoCode{"SAVE10": tc.promo}, nil)

			result, err := svc.Validate(context.Background(), "SAVE10", nil)

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Valid {
				t.Fatal("expected invalid result")
			}
			if result.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, result.Reason)
			}
		})
	}
}

func TestValidateCodeIsCaseInsensitive(t *testing.T) {
	promo := &models.PromoCode{
		ID:           "pc_1",
		Code:         "SAVE10",
		DiscountType: "percentage",
		Value:        decimal.NewFromInt(10),
		IsActive:     true,
	}
	svc := newTestCouponService(map[string]*models.PromoCode{"SAVE10": promo}, nil)

	for _, code := range []string{"SAVE10", "save10", "Save10", "  save10  "} {
		result, err := svc.Validate(context.Background(), code, nil)

		if err != nil {
			t.Fatalf("Validate(%q) error: %v", code, err)
		}
		if !result.Valid {
			t.Fatalf("Validate(%q) expected valid, got reason %q", code, result.Reason)
		}
	}
}

func TestValidateMinPurchase(t *testing.T) {
	promo := &models.PromoCode{
		Code:         "BIG",
		DiscountType: "fixed",
		Value:        decimal.NewFromInt(50),
		MinPurchase:  decimal.NewFromInt(200),
		IsActive:     true,
	}
	svc := newTestCouponService(map[string]*models.PromoCode{"BIG": promo}, nil)

	small := decimal.NewFromInt(100)
	result, err := svc.Validate(context.Background(), "BIG", &small)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid || result.Reason != ReasonMinPurchase {
		t.Fatalf("expected min purchase rejection, got valid=%v reason=%q", result.Valid, result.Reason)
	}

	big := decimal.NewFromInt(300)
	result, err = svc.Validate(context.Background(), "BIG", &big)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid above min purchase, got reason %q", result.Reason)
	}
}

func TestValidateAmbassadorCouponFallback(t *testing.T) {
	discountPct := decimal.NewFromInt(15)
	ambassador := &models.Ambassador{
		ID:              "amb_1",
		Status:          string(models.AmbassadorStatusApproved),
		CouponCode:      strPtr("RANIA20"),
		ReferralCode:    strPtr("ref-rania"),
		CommissionRate:  decimal.NewFromInt(50),
		DiscountPercent: &discountPct,
	}
	svc := newTestCouponService(nil, map[string]*models.Ambassador{"RANIA20": ambassador})

	result, err := svc.Validate(context.Background(), "rania20", nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid result, got reason %q", result.Reason)
	}

	d := result.Discount
	if !d.IsAmbassador {
		t.Fatal("expected ambassador discount")
	}
	if d.AmbassadorID != "amb_1" {
		t.Fatalf("expected ambassador amb_1, got %q", d.AmbassadorID)
	}
	if !d.Value.Equal(discountPct) {
		t.Fatalf("expected discount value 15, got %s", d.Value)
	}
	if !d.CommissionRate.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected commission rate 50, got %s", d.CommissionRate)
	}
}

func TestValidateAmbassadorReferralFallback(t *testing.T) {
	ambassador := &models.Ambassador{
		ID:             "amb_1",
		Status:         string(models.AmbassadorStatusApproved),
		CouponCode:     strPtr("RANIA20"),
		ReferralCode:   strPtr("REF-RANIA"),
		CommissionRate: decimal.NewFromInt(50),
	}
	svc := NewCouponService(
		&fakePromoRepo{},
		&fakeAmbassadorRepo{byReferral: map[string]*models.Ambassador{"REF-RANIA": ambassador}},
		nil,
		logger.NewLogger("error"),
	)

	result, err := svc.Validate(context.Background(), "ref-rania", nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected referral code to resolve, got reason %q", result.Reason)
	}
	if !result.Discount.IsAmbassador || result.Discount.AmbassadorID != "amb_1" {
		t.Fatalf("expected ambassador amb_1 behind referral code, got %+v", result.Discount)
	}
}

func TestValidateServesCachedPolicy(t *testing.T) {
	policyCache := newFakePolicyCache()
	policyCache.Set(context.Background(), "CACHED", &models.Discount{
		PolicyID: "pc_cached",
		Type:     "fixed",
		Value:    decimal.NewFromInt(5),
		Code:     "CACHED",
	})

	// no repo knows the code, so a valid result can only come from the cache
	svc := NewCouponService(&fakePromoRepo{}, &fakeAmbassadorRepo{}, policyCache, logger.NewLogger("error"))

	result, err := svc.Validate(context.Background(), "cached", nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected cached policy to validate, got reason %q", result.Reason)
	}
	if result.Discount.PolicyID != "pc_cached" {
		t.Fatalf("expected cached policy pc_cached, got %q", result.Discount.PolicyID)
	}
}

func TestValidateCachesResolvedPolicy(t *testing.T) {
	promo := &models.PromoCode{
		ID:           "pc_1",
		Code:         "SAVE10",
		DiscountType: "percentage",
		Value:        decimal.NewFromInt(10),
		IsActive:     true,
	}
	policyCache := newFakePolicyCache()
	svc := NewCouponService(
		&fakePromoRepo{promos: map[string]*models.PromoCode{"SAVE10": promo}},
		&fakeAmbassadorRepo{},
		policyCache,
		logger.NewLogger("error"),
	)

	if _, err := svc.Validate(context.Background(), "save10", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cached, ok := policyCache.store["SAVE10"]
	if !ok {
		t.Fatal("expected resolved policy to be cached under the normalized code")
	}
	if cached.PolicyID != "pc_1" {
		t.Fatalf("expected cached policy pc_1, got %q", cached.PolicyID)
	}
}

func TestPromoShadowsAmbassadorCoupon(t *testing.T) {
	promo := &models.PromoCode{
		ID:           "pc_1",
		Code:         "SHARED",
		DiscountType: "fixed",
		Value:        decimal.NewFromInt(5),
		IsActive:     true,
	}
	ambassador := &models.Ambassador{
		ID:             "amb_1",
		Status:         string(models.AmbassadorStatusApproved),
		CouponCode:     strPtr("SHARED"),
		CommissionRate: decimal.NewFromInt(50),
	}
	svc := newTestCouponService(
		map[string]*models.PromoCode{"SHARED": promo},
		map[string]*models.Ambassador{"SHARED": ambassador},
	)

	result, err := svc.Validate(context.Background(), "SHARED", nil)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Valid {
		t.Fatalf("expected valid, got reason %q", result.Reason)
	}
	if result.Discount.IsAmbassador {
		t.Fatal("promo code should win over ambassador coupon for the same code")
	}
}

func TestAmbassadorDiscountPercentFromProfile(t *testing.T) {
	svc := newTestCouponService(nil, nil)

	cases := []struct {
		name     string
		profile  models.JSONMap
		expected string
	}{
		{"known key", models.JSONMap{"discountPercentage": float64(25)}, "25"},
		{"string value", models.JSONMap{"discountValue": "12.5"}, "12.5"},
		{"fuzzy key", models.JSONMap{"customerDiscountPct": float64(8)}, "8"},
		{"no attribute falls back", models.JSONMap{"tier": "gold"}, "10"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ambassador := &models.Ambassador{ID: "amb_1", AdminProfile: tc.profile}

			got := svc.ambassadorDiscountPercent(ambassador)

			if !got.Equal(decimal.RequireFromString(tc.expected)) {
				t.Fatalf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestAmbassadorDiscountPercentColumnWins(t *testing.T) {
	svc := newTestCouponService(nil, nil)
	column := decimal.NewFromInt(30)
	ambassador := &models.Ambassador{
		ID:              "amb_1",
		DiscountPercent: &column,
		AdminProfile:    models.JSONMap{"discountPercentage": float64(5)},
	}

	got := svc.ambassadorDiscountPercent(ambassador)

	if !got.Equal(column) {
		t.Fatalf("expected column value 30 to win, got %s", got)
	}
}
