package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusPaid))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusExpired))
	assert.True(t, OrderStatusPending.CanTransitionTo(OrderStatusRefunded))
	assert.True(t, OrderStatusPaid.CanTransitionTo(OrderStatusRefunded))

	assert.False(t, OrderStatusPaid.CanTransitionTo(OrderStatusPending))
	assert.False(t, OrderStatusExpired.CanTransitionTo(OrderStatusPaid))
	assert.False(t, OrderStatusRefunded.CanTransitionTo(OrderStatusPaid))
	assert.False(t, OrderStatus("bogus").CanTransitionTo(OrderStatusPaid))
}

func TestMapAsaasStatus(t *testing.T) {
	cases := map[string]OrderStatus{
		"PENDING":          OrderStatusPending,
		"RECEIVED":         OrderStatusPaid,
		"CONFIRMED":        OrderStatusPaid,
		"RECEIVED_IN_CASH": OrderStatusPaid,
		"OVERDUE":          OrderStatusExpired,
		"REFUNDED":         OrderStatusRefunded,
		"AWAITING_RISK":    OrderStatusPending,
	}
	for in, want := range cases {
		assert.Equal(t, want, MapAsaasStatus(in), in)
	}
}

func TestMapGatewayStatus(t *testing.T) {
	assert.Equal(t, OrderStatusPaid, MapGatewayStatus(GatewayStripe, "succeeded"))
	assert.Equal(t, OrderStatusPending, MapGatewayStatus(GatewayStripe, "requires_action"))
	assert.Equal(t, OrderStatusPaid, MapGatewayStatus(GatewayPushinPay, "paid"))
	assert.Equal(t, OrderStatusPending, MapGatewayStatus(GatewayPushinPay, "created"))
	assert.Equal(t, OrderStatusPending, MapGatewayStatus(Gateway("unknown"), "paid"))
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(9990), ToCents(decimal.RequireFromString("99.90")))
	assert.Equal(t, int64(1), ToCents(decimal.RequireFromString("0.005")))
	assert.Equal(t, int64(0), ToCents(decimal.RequireFromString("0.004")))
	assert.Equal(t, "197.5", FromCents(19750).String())
}

func TestAffiliate_WalletFor(t *testing.T) {
	wallet := "wal_123"
	blank := "  "
	a := &Affiliate{AsaasWalletID: &wallet, StripeAccountID: &blank}

	assert.Equal(t, &wallet, a.WalletFor(GatewayAsaas))
	assert.Nil(t, a.WalletFor(GatewayStripe))
	assert.Nil(t, a.WalletFor(GatewayPushinPay))
}
