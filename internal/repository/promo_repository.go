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

// ErrNotRedeemable is returned when a guarded usage increment finds the code
// no longer effective: inactive, outside its validity window, or at its
// usage cap.
var ErrNotRedeemable = errors.New("promo code is not redeemable")

// PromoRepository handles database operations for promo codes
type PromoRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewPromoRepository creates a new PromoRepository
func NewPromoRepository(db *database.Database, logger logger.Logger) *PromoRepository {
	return &PromoRepository{
		db:     db,
		logger: logger,
	}
}

// GetByCode retrieves a promo code by code, case-insensitively. Inactive
// codes are still returned so callers can report a precise rejection reason.
func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	query := `
		SELECT id, code, discount_type, value, min_purchase, max_uses, used_count,
		       start_date, end_date, is_active, referral_code, created_at
		FROM promo_codes
		WHERE UPPER(code) = UPPER($1)
	`

	var promo models.PromoCode
	err := r.db.DB.GetContext(ctx, &promo, query, code)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get promo code", "error", err, "code", code)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &promo, nil
}

// IncrementUsageInTx increments used_count, guarded by the code's full
// effectiveness conditions so a stale cached policy can pass validation but
// never redeem. An unlimited code (max_uses IS NULL) has no usage guard.
func (r *PromoRepository) IncrementUsageInTx(tx *sql.Tx, id string) error {
	query := `
		UPDATE promo_codes
		SET used_count = used_count + 1
		WHERE id = $1
		  AND is_active
		  AND (start_date IS NULL OR start_date <= NOW())
		  AND (end_date IS NULL OR end_date >= NOW())
		  AND (max_uses IS NULL OR used_count < max_uses)
	`

	result, err := tx.Exec(query, id)

	if err != nil {
		return fmt.Errorf("failed to increment promo usage in transaction: %w", err)
	}

	rows, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rows == 0 {
		return ErrNotRedeemable
	}

	return nil
}
