package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/internal/repository"
	apperrors "github.com/aezzeldin/storefront-api/pkg/errors"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

// Rejection reasons returned by Validate. Clients branch on these, so they
// are part of the API contract.
const (
	ReasonNotFound     = "not_found"
	ReasonInactive     = "inactive"
	ReasonNotYetActive = "not_yet_active"
	ReasonExpired      = "expired"
	ReasonLimitReached = "limit_reached"
	ReasonMinPurchase  = "min_purchase_not_met"
)

// defaultAmbassadorDiscount is applied when an ambassador record carries no
// usable discount attribute anywhere.
var defaultAmbassadorDiscount = decimal.NewFromInt(10)

// ValidationResult is the outcome of validating a discount code
type ValidationResult struct {
	Valid    bool             `json:"valid"`
	Reason   string           `json:"reason,omitempty"`
	Discount *models.Discount `json:"discount,omitempty"`
}

// PromoLookup is the promo-code persistence surface the validator needs
type PromoLookup interface {
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
}

// AmbassadorLookup is the ambassador persistence surface the validator needs
type AmbassadorLookup interface {
	GetApprovedByCouponCode(ctx context.Context, code string) (*models.Ambassador, error)
	GetApprovedByReferralCode(ctx context.Context, code string) (*models.Ambassador, error)
}

// PolicyCacheStore is the resolved-policy cache surface, keyed by normalized
// code. Get returns an error on a miss; Set and Invalidate never fail loudly.
type PolicyCacheStore interface {
	Get(ctx context.Context, code string) (*models.Discount, error)
	Set(ctx context.Context, code string, discount *models.Discount)
	Invalidate(ctx context.Context, code string)
}

// CouponService validates discount codes against the promo-code namespace
// first, then falls back to approved ambassadors' personal coupon and
// referral codes.
type CouponService struct {
	promoRepo      PromoLookup
	ambassadorRepo AmbassadorLookup
	policyCache    PolicyCacheStore
	logger         logger.Logger
	now            func() time.Time
}

// NewCouponService creates a new CouponService. policyCache may be nil, in
// which case every validation hits the database.
func NewCouponService(promoRepo PromoLookup, ambassadorRepo AmbassadorLookup, policyCache PolicyCacheStore, logger logger.Logger) *CouponService {
	return &CouponService{
		promoRepo:      promoRepo,
		ambassadorRepo: ambassadorRepo,
		policyCache:    policyCache,
		logger:         logger,
		now:            time.Now,
	}
}

// NormalizeCode canonicalizes a discount code for lookups and caching
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate resolves a code to a discount policy or a rejection reason.
// Promo codes shadow ambassador coupon codes when both exist.
func (s *CouponService) Validate(ctx context.Context, code string, subtotal *decimal.Decimal) (*ValidationResult, error) {
	normalized := NormalizeCode(code)

	if normalized == "" {
		return &ValidationResult{Valid: false, Reason: ReasonNotFound}, nil
	}

	discount, result, err := s.resolve(ctx, normalized)

	if err != nil {
		return nil, err
	}

	if result != nil {
		return result, nil
	}

	if subtotal != nil && subtotal.LessThan(discount.MinPurchase) {
		return &ValidationResult{Valid: false, Reason: ReasonMinPurchase, Discount: discount}, nil
	}

	return &ValidationResult{Valid: true, Discount: discount}, nil
}

// resolve finds the policy behind a normalized code. It returns either a
// policy or a terminal rejection result.
func (s *CouponService) resolve(ctx context.Context, normalized string) (*models.Discount, *ValidationResult, error) {
	if s.policyCache != nil {
		if cached, err := s.policyCache.Get(ctx, normalized); err == nil {
			return cached, nil, nil
		}
	}

	promo, err := s.promoRepo.GetByCode(ctx, normalized)

	if err == nil {
		if result := checkPromoEffective(promo, s.now()); result != nil {
			return nil, result, nil
		}

		discount := promoDiscount(promo)
		s.cachePolicy(ctx, normalized, discount)
		return discount, nil, nil
	}

	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Failed to look up promo code", "error", err, "code", normalized)
		return nil, nil, apperrors.NewInternalError("failed to look up promo code")
	}

	ambassador, err := s.ambassadorRepo.GetApprovedByCouponCode(ctx, normalized)

	if errors.Is(err, repository.ErrNotFound) {
		ambassador, err = s.ambassadorRepo.GetApprovedByReferralCode(ctx, normalized)
	}

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ValidationResult{Valid: false, Reason: ReasonNotFound}, nil
		}
		s.logger.Error("Failed to look up ambassador code", "error", err, "code", normalized)
		return nil, nil, apperrors.NewInternalError("failed to look up ambassador code")
	}

	discount := s.ambassadorDiscount(ambassador)
	s.cachePolicy(ctx, normalized, discount)
	return discount, nil, nil
}

func (s *CouponService) cachePolicy(ctx context.Context, normalized string, discount *models.Discount) {
	if s.policyCache != nil {
		s.policyCache.Set(ctx, normalized, discount)
	}
}

// checkPromoEffective returns a rejection result when the promo is not
// currently usable, nil when it is.
func checkPromoEffective(promo *models.PromoCode, now time.Time) *ValidationResult {
	if !promo.IsActive {
		return &ValidationResult{Valid: false, Reason: ReasonInactive}
	}

	if promo.StartDate != nil && now.Before(*promo.StartDate) {
		return &ValidationResult{Valid: false, Reason: ReasonNotYetActive}
	}

	if promo.EndDate != nil && now.After(*promo.EndDate) {
		return &ValidationResult{Valid: false, Reason: ReasonExpired}
	}

	if promo.MaxUses != nil && promo.UsedCount >= *promo.MaxUses {
		return &ValidationResult{Valid: false, Reason: ReasonLimitReached}
	}

	return nil
}

func promoDiscount(promo *models.PromoCode) *models.Discount {
	return &models.Discount{
		PolicyID:     promo.ID,
		Type:         promo.DiscountType,
		Value:        promo.Value,
		MinPurchase:  promo.MinPurchase,
		Code:         promo.Code,
		ReferralCode: promo.ReferralCode,
	}
}

func (s *CouponService) ambassadorDiscount(ambassador *models.Ambassador) *models.Discount {
	discount := &models.Discount{
		PolicyID:       ambassador.ID,
		Type:           string(models.DiscountPercentage),
		Value:          s.ambassadorDiscountPercent(ambassador),
		Code:           NormalizeCode(derefString(ambassador.CouponCode)),
		IsAmbassador:   true,
		AmbassadorID:   ambassador.ID,
		CommissionRate: ambassador.CommissionRate,
	}

	if ambassador.ReferralCode != nil {
		discount.ReferralCode = ambassador.ReferralCode
	}

	return discount
}

// ambassadorDiscountPercent digs an ambassador's customer-facing discount
// out of whatever shape the admin system stored it in. The dedicated column
// wins; otherwise the synced profile blob is scanned for known keys, then
// for anything that looks like a discount attribute.
func (s *CouponService) ambassadorDiscountPercent(ambassador *models.Ambassador) decimal.Decimal {
	if ambassador.DiscountPercent != nil {
		return *ambassador.DiscountPercent
	}

	for _, key := range []string{"discountPercentage", "discountValue", "discount"} {
		if value, ok := numericProfileValue(ambassador.AdminProfile, key); ok {
			return value
		}
	}

	for key := range ambassador.AdminProfile {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "discount") || strings.Contains(lower, "percent") {
			if value, ok := numericProfileValue(ambassador.AdminProfile, key); ok {
				return value
			}
		}
	}

	s.logger.Warn("Ambassador has no discount attribute, using default",
		"ambassadorID", ambassador.ID,
		"default", defaultAmbassadorDiscount)
	return defaultAmbassadorDiscount
}

func numericProfileValue(profile models.JSONMap, key string) (decimal.Decimal, bool) {
	raw, ok := profile[key]

	if !ok {
		return decimal.Zero, false
	}

	switch v := raw.(type) {
	case float64:
		if v > 0 {
			return decimal.NewFromFloat(v), true
		}
	case string:
		if parsed, err := decimal.NewFromString(v); err == nil && parsed.IsPositive() {
			return parsed, true
		}
	}

	return decimal.Zero, false
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
