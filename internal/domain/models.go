package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable item. Price is stored in major units (reais).
type Product struct {
	ID                uuid.UUID
	VendorID          uuid.UUID
	Name              string
	Price             decimal.Decimal
	AffiliateSettings AffiliateSettings
}

// AffiliateSettings configures the affiliate program of a product
type AffiliateSettings struct {
	Enabled               bool `json:"enabled"`
	DefaultRate           *int `json:"defaultRate,omitempty"`
	CommissionOnOrderBump bool `json:"commissionOnOrderBump"`
	RequireApproval       bool `json:"requireApproval"`
}

// Offer is a priced variant of a product. PriceCents is already in minor units.
type Offer struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	Name       string
	PriceCents int64
}

// OrderBump is an add-on offered on a checkout
type OrderBump struct {
	ID              uuid.UUID
	CheckoutID      uuid.UUID
	ProductID       *uuid.UUID
	OfferID         *uuid.UUID
	Active          bool
	DiscountEnabled bool
	DiscountPrice   *decimal.Decimal
}

// Vendor owns products and receives the net of each sale
type Vendor struct {
	ID                 uuid.UUID
	Role               VendorRole
	CustomFeePercent   *decimal.Decimal
	AsaasWalletID      *string
	StripeAccountID    *string
	PushinPayAccountID *string
}

// Affiliate is a user promoting a product for a commission
type Affiliate struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	ProductID          uuid.UUID
	Code               string
	Email              string
	CommissionRate     *int
	Status             AffiliateStatus
	AsaasWalletID      *string
	StripeAccountID    *string
	PushinPayAccountID *string
	TotalSales         int
	TotalSalesCents    int64
}

// WalletFor returns the payout identifier the affiliate configured for a gateway
func (a *Affiliate) WalletFor(g Gateway) *string {
	var id *string
	switch g {
	case GatewayAsaas:
		id = a.AsaasWalletID
	case GatewayStripe:
		id = a.StripeAccountID
	case GatewayPushinPay:
		id = a.PushinPayAccountID
	}
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return id
}

// Coupon is a discount code scoped to one or more products
type Coupon struct {
	ID                uuid.UUID
	Code              string
	Active            bool
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MaxUses           *int
	UsesCount         int
	ApplyToOrderBumps bool
	StartsAt          *time.Time
	ExpiresAt         *time.Time
}

// Order is the aggregate root of a checkout submission
type Order struct {
	ID                     uuid.UUID
	VendorID               uuid.UUID
	ProductID              uuid.UUID
	OfferID                *uuid.UUID
	CheckoutID             *uuid.UUID
	AmountCents            int64
	DiscountAmountCents    int64
	CouponCode             *string
	AffiliateID            *uuid.UUID
	CommissionCents        int64
	PlatformFeeCents       int64
	Status                 OrderStatus
	Gateway                Gateway
	PaymentMethod          PaymentMethod
	AccessToken            string
	IdempotencyKey         string
	CustomerName           string
	CustomerEmail          string
	CustomerPhoneEncrypted *string
	CustomerCPFEncrypted   *string
	PIIEncrypted           bool
	CustomerIP             string
	GatewayChargeID        *string
	PixQRCode              *string
	PixQRCodeText          *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// OrderItem is one cart line. Created once, never mutated.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	AmountCents int64
	Quantity    int
	IsBump      bool
	CreatedAt   time.Time
}

// SplitResult is how the proceeds of one order are divided
type SplitResult struct {
	GrossCents               int64
	PlatformFeeCents         int64
	AffiliateID              *uuid.UUID
	AffiliateWalletID        *string
	AffiliateCommissionCents int64
	VendorNetCents           int64
	IsOwner                  bool
}

// OutboxEvent is a lifecycle event waiting to be published
type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   EventType
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
