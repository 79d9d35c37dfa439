package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/internal/gateway"
)

// CreateOrderRequest is the cart submitted by the checkout page
type CreateOrderRequest struct {
	ProductID     string               `json:"product_id" binding:"required"`
	OfferID       *string              `json:"offer_id,omitempty"`
	CheckoutID    *string              `json:"checkout_id,omitempty"`
	CustomerName  string               `json:"customer_name" binding:"required"`
	CustomerEmail string               `json:"customer_email" binding:"required,email"`
	CustomerPhone *string              `json:"customer_phone,omitempty"`
	CustomerCPF   *string              `json:"customer_cpf,omitempty"`
	OrderBumpIDs  []string             `json:"order_bump_ids,omitempty"`
	Gateway       domain.Gateway       `json:"gateway" binding:"required"`
	PaymentMethod domain.PaymentMethod `json:"payment_method" binding:"required"`
	CouponID      *string              `json:"coupon_id,omitempty"`
	AffiliateCode *string              `json:"affiliate_code,omitempty"`

	// CustomerIP is filled from the connection, never from the body
	CustomerIP string `json:"-"`
}

type SplitData struct {
	PlatformFeeCents         int64   `json:"platformFeeCents"`
	AffiliateWalletID        *string `json:"affiliateWalletId"`
	AffiliateCommissionCents int64   `json:"affiliateCommissionCents"`
}

// CreateOrderResult reports whether an order exists. Charge and ChargeError
// describe the gateway step, which may fail independently.
type CreateOrderResult struct {
	OrderID     uuid.UUID
	AmountCents int64
	AccessToken string
	Split       SplitData
	Duplicate   bool
	Charge      *gateway.ChargeResult
	ChargeError error
}

type OrderItemView struct {
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	AmountCents int64     `json:"amount_cents"`
	Quantity    int       `json:"quantity"`
	IsBump      bool      `json:"is_bump"`
}

// OrderView is the customer-facing order. It carries no PII.
type OrderView struct {
	ID                  uuid.UUID            `json:"id"`
	Status              domain.OrderStatus   `json:"status"`
	AmountCents         int64                `json:"amount_cents"`
	DiscountAmountCents int64                `json:"discount_amount_cents"`
	CouponCode          *string              `json:"coupon_code,omitempty"`
	Gateway             domain.Gateway       `json:"gateway"`
	PaymentMethod       domain.PaymentMethod `json:"payment_method"`
	PixQRCode           *string              `json:"pix_qr_code,omitempty"`
	PixQRCodeText       *string              `json:"pix_qr_code_text,omitempty"`
	Items               []OrderItemView      `json:"items"`
	CreatedAt           time.Time            `json:"created_at"`
}
