package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/config"
	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/pkg/errors"
)

const (
	// commissionCeiling caps every commission rate regardless of configuration
	commissionCeiling = 90
	// fallbackCommissionRate applies when neither the affiliate nor the program sets a rate
	fallbackCommissionRate = 50
)

// EngineConfig holds the money rules of the engine
type EngineConfig struct {
	PlatformFeePercent decimal.Decimal
	MaxCommissionRate  int
	IdempotencyWindow  time.Duration
	OwnerVendorID      *uuid.UUID
}

// DefaultEngineConfig returns a 4% fee, a 90% commission ceiling and a 5 minute window
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PlatformFeePercent: decimal.RequireFromString("0.04"),
		MaxCommissionRate:  commissionCeiling,
		IdempotencyWindow:  5 * time.Minute,
	}
}

// EngineConfigFromConfig maps loaded configuration onto the engine
func EngineConfigFromConfig(cfg config.FeeConfig) (EngineConfig, error) {
	ec := EngineConfig{
		PlatformFeePercent: cfg.PlatformFeePercent,
		MaxCommissionRate:  cfg.MaxCommissionRate,
		IdempotencyWindow:  cfg.IdempotencyWindow,
	}
	if cfg.OwnerVendorID != "" {
		id, err := uuid.Parse(cfg.OwnerVendorID)
		if err != nil {
			return EngineConfig{}, &errors.ValidationError{Field: "PLATFORM_OWNER_VENDOR_ID", Message: err.Error()}
		}
		ec.OwnerVendorID = &id
	}
	return ec, nil
}

// SplitInput is everything the split depends on. Affiliate is the record the
// affiliate code resolved to, or nil.
type SplitInput struct {
	GrossCents    int64
	DiscountCents int64
	Items         []*domain.OrderItem
	Vendor        *domain.Vendor
	ProductID     uuid.UUID
	Settings      domain.AffiliateSettings
	Affiliate     *domain.Affiliate
	CustomerEmail string
	Gateway       domain.Gateway
}

type splitEngine struct {
	cfg    EngineConfig
	logger *zap.Logger
}

// NewSplitEngine creates the split engine
func NewSplitEngine(cfg EngineConfig, logger *zap.Logger) *splitEngine {
	if cfg.MaxCommissionRate <= 0 || cfg.MaxCommissionRate > commissionCeiling {
		cfg.MaxCommissionRate = commissionCeiling
	}
	return &splitEngine{
		cfg:    cfg,
		logger: logger,
	}
}

// IsOwner reports whether the vendor is the platform's own account
func (e *splitEngine) IsOwner(v *domain.Vendor) bool {
	if v == nil {
		return false
	}
	if e.cfg.OwnerVendorID != nil && v.ID == *e.cfg.OwnerVendorID {
		return true
	}
	return v.Role == domain.VendorRoleOwner
}

// FeePercent returns the vendor override when set, else the platform default
func (e *splitEngine) FeePercent(v *domain.Vendor) decimal.Decimal {
	if v != nil && v.CustomFeePercent != nil && !v.CustomFeePercent.IsNegative() && v.CustomFeePercent.LessThan(decimal.NewFromInt(1)) {
		return *v.CustomFeePercent
	}
	return e.cfg.PlatformFeePercent
}

// EligibleAffiliate returns the affiliate when it may earn commission on this
// order, otherwise a *errors.AffiliateIneligible describing why not.
func (e *splitEngine) EligibleAffiliate(in SplitInput) (*domain.Affiliate, error) {
	a := in.Affiliate
	if a == nil {
		return nil, &errors.AffiliateIneligible{Reason: "no affiliate"}
	}
	if !in.Settings.Enabled {
		return nil, &errors.AffiliateIneligible{Reason: "affiliate program disabled"}
	}
	if a.Status != domain.AffiliateStatusActive {
		return nil, &errors.AffiliateIneligible{Reason: "affiliation is " + string(a.Status)}
	}
	if a.ProductID != in.ProductID {
		return nil, &errors.AffiliateIneligible{Reason: "affiliation belongs to another product"}
	}
	if sameEmail(a.Email, in.CustomerEmail) {
		return nil, &errors.AffiliateIneligible{Reason: "self referral"}
	}
	return a, nil
}

// Compute splits the gross amount between platform, affiliate and vendor.
// It performs no I/O.
func (e *splitEngine) Compute(in SplitInput) domain.SplitResult {
	gross := in.GrossCents
	if gross < 0 {
		gross = 0
	}

	res := domain.SplitResult{
		GrossCents: gross,
		IsOwner:    e.IsOwner(in.Vendor),
	}

	var affiliate *domain.Affiliate
	if in.Affiliate != nil {
		a, err := e.EligibleAffiliate(in)
		if err != nil {
			e.logger.Warn("Affiliate not credited",
				zap.String("affiliate_id", in.Affiliate.ID.String()),
				zap.String("customer", maskEmail(in.CustomerEmail)),
				zap.Error(err),
			)
		}
		affiliate = a
	}

	if res.IsOwner && affiliate == nil {
		res.VendorNetCents = gross
		return res
	}

	fee := domain.RoundCents(decimal.NewFromInt(gross).Mul(e.FeePercent(in.Vendor)))
	if fee > gross {
		fee = gross
	}
	res.PlatformFeeCents = fee
	net := gross - fee
	res.VendorNetCents = net

	if affiliate == nil || gross == 0 {
		return res
	}

	rate := e.commissionRate(affiliate, in.Settings)
	commissionable := commissionableCents(in.Items, in.DiscountCents, in.Settings.CommissionOnOrderBump)
	if commissionable > gross {
		commissionable = gross
	}

	// single rounding: net * (commissionable / gross) * rate / 100
	commission := domain.RoundCents(
		decimal.NewFromInt(net).
			Mul(decimal.NewFromInt(commissionable)).
			Mul(decimal.NewFromInt(int64(rate))).
			Div(decimal.NewFromInt(gross * 100)),
	)
	if commission > net {
		commission = net
	}

	affiliateID := affiliate.ID
	res.AffiliateID = &affiliateID
	res.AffiliateCommissionCents = commission
	res.VendorNetCents = net - commission
	res.AffiliateWalletID = affiliate.WalletFor(in.Gateway)

	if res.AffiliateWalletID == nil && commission > 0 {
		e.logger.Warn("Affiliate has no payout account for gateway, split rule omitted",
			zap.String("affiliate_id", affiliate.ID.String()),
			zap.String("gateway", string(in.Gateway)),
			zap.Int64("commission_cents", commission),
		)
	}
	return res
}

func (e *splitEngine) commissionRate(a *domain.Affiliate, s domain.AffiliateSettings) int {
	rate := fallbackCommissionRate
	switch {
	case a.CommissionRate != nil:
		rate = *a.CommissionRate
	case s.DefaultRate != nil:
		rate = *s.DefaultRate
	}
	if rate < 0 {
		rate = 0
	}
	if rate > e.cfg.MaxCommissionRate {
		rate = e.cfg.MaxCommissionRate
	}
	return rate
}

// commissionableCents sums the items the program pays commission on, minus
// that subtotal's proportional share of the discount
func commissionableCents(items []*domain.OrderItem, discountCents int64, onBumps bool) int64 {
	var subtotal, eligible int64
	for _, item := range items {
		subtotal += item.AmountCents
		if !item.IsBump || onBumps {
			eligible += item.AmountCents
		}
	}

	if discountCents > 0 && subtotal > 0 {
		share := domain.RoundCents(
			decimal.NewFromInt(eligible).Mul(decimal.NewFromInt(discountCents)).Div(decimal.NewFromInt(subtotal)),
		)
		eligible -= share
	}
	if eligible < 0 {
		return 0
	}
	return eligible
}

func sameEmail(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// maskEmail keeps the first two characters and the domain
func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***"
	}
	local := email[:at]
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***" + email[at:]
}
