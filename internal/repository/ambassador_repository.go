package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aezzeldin/storefront-api/internal/database"
	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

// AmbassadorRepository handles database operations for ambassadors
type AmbassadorRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewAmbassadorRepository creates a new AmbassadorRepository
func NewAmbassadorRepository(db *database.Database, logger logger.Logger) *AmbassadorRepository {
	return &AmbassadorRepository{
		db:     db,
		logger: logger,
	}
}

const ambassadorColumns = `
	id, email, name, status, referral_code, coupon_code, commission_rate,
	discount_percent, admin_profile, referrals, orders, conversions,
	sales, earnings, payments_pending, payments_paid, created_at, updated_at
`

// GetApprovedByCouponCode retrieves an approved ambassador whose personal
// coupon code matches, case-insensitively.
func (r *AmbassadorRepository) GetApprovedByCouponCode(ctx context.Context, code string) (*models.Ambassador, error) {
	query := `
		SELECT ` + ambassadorColumns + `
		FROM ambassadors
		WHERE UPPER(coupon_code) = UPPER($1) AND status = $2
	`

	var ambassador models.Ambassador
	err := r.db.DB.GetContext(ctx, &ambassador, query, code, models.AmbassadorStatusApproved)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get ambassador by coupon code", "error", err, "code", code)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &ambassador, nil
}

// GetApprovedByReferralCode retrieves an approved ambassador whose referral
// code matches, case-insensitively.
func (r *AmbassadorRepository) GetApprovedByReferralCode(ctx context.Context, code string) (*models.Ambassador, error) {
	query := `
		SELECT ` + ambassadorColumns + `
		FROM ambassadors
		WHERE UPPER(referral_code) = UPPER($1) AND status = $2
	`

	var ambassador models.Ambassador
	err := r.db.DB.GetContext(ctx, &ambassador, query, code, models.AmbassadorStatusApproved)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get ambassador by referral code", "error", err, "code", code)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &ambassador, nil
}

// ApplyOrderInTx credits an order against an ambassador's running ledger
// using server-side increments, so concurrent orders never overwrite each
// other's counters. Only approved ambassadors earn; a since-rejected one
// yields ErrNotFound.
func (r *AmbassadorRepository) ApplyOrderInTx(tx *sql.Tx, ambassadorID string, saleAmount, commission decimal.Decimal) error {
	query := `
		UPDATE ambassadors
		SET orders = orders + 1,
		    sales = sales + $1,
		    earnings = earnings + $2,
		    payments_pending = payments_pending + $2,
		    updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	result, err := tx.Exec(query, saleAmount, commission, ambassadorID, models.AmbassadorStatusApproved)

	if err != nil {
		return fmt.Errorf("failed to apply order to ambassador ledger in transaction: %w", err)
	}

	return checkRowsAffected(result)
}
