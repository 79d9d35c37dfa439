package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/pkg/errors"
)

type couponRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCouponRepository creates a new coupon repository
func NewCouponRepository(db *sql.DB, logger *zap.Logger) *couponRepository {
	return &couponRepository{
		db:     db,
		logger: logger,
	}
}

func (r *couponRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	query := `
		SELECT id, code, active, discount_type, discount_value, max_uses, uses_count,
		       apply_to_order_bumps, starts_at, expires_at
		FROM coupons
		WHERE id = $1
	`

	var coupon domain.Coupon
	var maxUses sql.NullInt32
	var startsAt, expiresAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&coupon.ID,
		&coupon.Code,
		&coupon.Active,
		&coupon.DiscountType,
		&coupon.DiscountValue,
		&maxUses,
		&coupon.UsesCount,
		&coupon.ApplyToOrderBumps,
		&startsAt,
		&expiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "coupon", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get coupon", zap.Error(err))
		return nil, err
	}

	if maxUses.Valid {
		n := int(maxUses.Int32)
		coupon.MaxUses = &n
	}
	if startsAt.Valid {
		coupon.StartsAt = &startsAt.Time
	}
	if expiresAt.Valid {
		coupon.ExpiresAt = &expiresAt.Time
	}

	return &coupon, nil
}

func (r *couponRepository) IsLinkedToProduct(ctx context.Context, couponID, productID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM coupon_products WHERE coupon_id = $1 AND product_id = $2)`

	var linked bool
	if err := r.db.QueryRowContext(ctx, query, couponID, productID).Scan(&linked); err != nil {
		r.logger.Error("Failed to check coupon product link", zap.Error(err))
		return false, err
	}
	return linked, nil
}

// IncrementUses is a single conditional write, so two redemptions racing
// for the last use cannot both succeed.
func (r *couponRepository) IncrementUses(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE coupons
		SET uses_count = uses_count + 1
		WHERE id = $1 AND (max_uses IS NULL OR uses_count < max_uses)
	`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to increment coupon uses", zap.Error(err))
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
