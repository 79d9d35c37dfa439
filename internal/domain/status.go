package domain

import "strings"

// MapAsaasStatus converts an Asaas payment status to an order status.
// Unknown statuses keep the order pending.
func MapAsaasStatus(status string) OrderStatus {
	switch strings.ToUpper(status) {
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH":
		return OrderStatusPaid
	case "OVERDUE":
		return OrderStatusExpired
	case "REFUNDED":
		return OrderStatusRefunded
	default:
		return OrderStatusPending
	}
}

// MapStripeStatus converts a PaymentIntent status to an order status
func MapStripeStatus(status string) OrderStatus {
	switch status {
	case "succeeded":
		return OrderStatusPaid
	case "canceled":
		return OrderStatusExpired
	default:
		return OrderStatusPending
	}
}

// MapPushinPayStatus converts a PushinPay PIX status to an order status
func MapPushinPayStatus(status string) OrderStatus {
	switch strings.ToLower(status) {
	case "paid":
		return OrderStatusPaid
	case "expired", "canceled":
		return OrderStatusExpired
	case "refunded":
		return OrderStatusRefunded
	default:
		return OrderStatusPending
	}
}

// MapGatewayStatus dispatches to the gateway specific mapping
func MapGatewayStatus(g Gateway, status string) OrderStatus {
	switch g {
	case GatewayAsaas:
		return MapAsaasStatus(status)
	case GatewayStripe:
		return MapStripeStatus(status)
	case GatewayPushinPay:
		return MapPushinPayStatus(status)
	default:
		return OrderStatusPending
	}
}
