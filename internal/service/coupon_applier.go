package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/internal/repository"
	"github.com/risecheckout/orderengine/pkg/errors"
)

// AppliedCoupon is a coupon that passed every read-side check
type AppliedCoupon struct {
	Coupon        *domain.Coupon
	DiscountCents int64
}

type couponApplier struct {
	coupons repository.CouponRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewCouponApplier creates a coupon applier
func NewCouponApplier(coupons repository.CouponRepository, logger *zap.Logger) *couponApplier {
	return &couponApplier{
		coupons: coupons,
		logger:  logger,
		now:     time.Now,
	}
}

// Evaluate checks the coupon and computes its discount without consuming a use.
// mainCents is the main product price, totalCents includes the bumps.
// The use limit is left to Redeem. Every rejection is a *errors.CouponInvalid.
func (a *couponApplier) Evaluate(ctx context.Context, couponID, productID uuid.UUID, mainCents, totalCents int64) (*AppliedCoupon, error) {
	applied, err := a.Quote(ctx, couponID, productID, mainCents, totalCents)
	if err != nil {
		return nil, err
	}
	if err := a.CheckWindow(applied.Coupon); err != nil {
		return nil, err
	}
	return applied, nil
}

// Quote prices an active coupon linked to the product, ignoring its validity
// window and use count.
func (a *couponApplier) Quote(ctx context.Context, couponID, productID uuid.UUID, mainCents, totalCents int64) (*AppliedCoupon, error) {
	coupon, err := a.coupons.GetByID(ctx, couponID)
	if err != nil {
		if isNotFound(err) {
			return nil, &errors.CouponInvalid{Reason: "not found"}
		}
		return nil, &errors.CouponInvalid{Reason: "lookup failed: " + err.Error()}
	}

	if !coupon.Active {
		return nil, &errors.CouponInvalid{Reason: "inactive"}
	}

	linked, err := a.coupons.IsLinkedToProduct(ctx, coupon.ID, productID)
	if err != nil {
		return nil, &errors.CouponInvalid{Reason: "link lookup failed: " + err.Error()}
	}
	if !linked {
		return nil, &errors.CouponInvalid{Reason: "not valid for this product"}
	}

	base := mainCents
	if coupon.ApplyToOrderBumps {
		base = totalCents
	}

	discount := computeDiscount(coupon, base)
	if discount <= 0 {
		return nil, &errors.CouponInvalid{Reason: "no discount applies"}
	}

	return &AppliedCoupon{Coupon: coupon, DiscountCents: discount}, nil
}

// CheckWindow rejects a coupon outside its optional start/expiry window
func (a *couponApplier) CheckWindow(coupon *domain.Coupon) error {
	now := a.now()
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return &errors.CouponInvalid{Reason: "not started"}
	}
	if coupon.ExpiresAt != nil && now.After(*coupon.ExpiresAt) {
		return &errors.CouponInvalid{Reason: "expired"}
	}
	return nil
}

// Redeem consumes one use with a single conditional write. It fails with
// *errors.CouponInvalid when a concurrent redemption took the last use.
func (a *couponApplier) Redeem(ctx context.Context, applied *AppliedCoupon) error {
	ok, err := a.coupons.IncrementUses(ctx, applied.Coupon.ID)
	if err != nil {
		return &errors.CouponInvalid{Reason: "redeem failed: " + err.Error()}
	}
	if !ok {
		return &errors.CouponInvalid{Reason: "usage limit reached"}
	}

	a.logger.Info("Coupon redeemed",
		zap.String("coupon_id", applied.Coupon.ID.String()),
		zap.String("code", applied.Coupon.Code),
		zap.Int64("discount_cents", applied.DiscountCents),
	)
	return nil
}

// computeDiscount never returns more than base. Fixed values are in major units.
func computeDiscount(c *domain.Coupon, base int64) int64 {
	if base <= 0 || !c.DiscountValue.IsPositive() {
		return 0
	}

	var discount int64
	switch c.DiscountType {
	case domain.DiscountTypePercentage:
		discount = domain.RoundCents(decimal.NewFromInt(base).Mul(c.DiscountValue).Div(decimal.NewFromInt(100)))
	case domain.DiscountTypeFixed:
		discount = domain.ToCents(c.DiscountValue)
	default:
		return 0
	}

	if discount > base {
		discount = base
	}
	return discount
}
