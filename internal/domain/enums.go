package domain

// OrderStatus represents the status of a checkout order
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusPaid     OrderStatus = "paid"
	OrderStatusExpired  OrderStatus = "expired"
	OrderStatusRefunded OrderStatus = "refunded"
)

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending,
		OrderStatusPaid,
		OrderStatusExpired,
		OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a status transition is valid
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return newStatus == OrderStatusPaid ||
			newStatus == OrderStatusExpired ||
			newStatus == OrderStatusRefunded
	case OrderStatusPaid:
		return newStatus == OrderStatusRefunded
	case OrderStatusExpired, OrderStatusRefunded:
		return false // Terminal states
	default:
		return false
	}
}

// Gateway identifies a payment provider
type Gateway string

const (
	GatewayAsaas     Gateway = "asaas"
	GatewayStripe    Gateway = "stripe"
	GatewayPushinPay Gateway = "pushinpay"
)

func (g Gateway) IsValid() bool {
	switch g {
	case GatewayAsaas, GatewayStripe, GatewayPushinPay:
		return true
	default:
		return false
	}
}

// PaymentMethod is how the customer pays
type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "pix"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
)

func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodPix || m == PaymentMethodCreditCard
}

// AffiliateStatus is the state of an affiliation request
type AffiliateStatus string

const (
	AffiliateStatusPending  AffiliateStatus = "pending"
	AffiliateStatusActive   AffiliateStatus = "active"
	AffiliateStatusRejected AffiliateStatus = "rejected"
)

// DiscountType selects how a coupon value is interpreted
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// VendorRole distinguishes the platform owner from regular vendors
type VendorRole string

const (
	VendorRoleOwner  VendorRole = "owner"
	VendorRoleVendor VendorRole = "vendor"
)

// EventType is a lifecycle event consumed by webhook delivery
type EventType string

const (
	EventPixGenerated     EventType = "pix_generated"
	EventPurchaseApproved EventType = "purchase_approved"
)
