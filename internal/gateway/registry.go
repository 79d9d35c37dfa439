package gateway

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/config"
	"github.com/risecheckout/orderengine/internal/domain"
)

// Registry holds one adapter per configured gateway
type Registry struct {
	adapters map[domain.Gateway]ChargeAdapter
}

func NewRegistry(adapters ...ChargeAdapter) *Registry {
	r := &Registry{adapters: make(map[domain.Gateway]ChargeAdapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Gateway()] = a
	}
	return r
}

// NewRegistryFromConfig builds adapters for every gateway that has credentials
func NewRegistryFromConfig(cfg config.GatewaysConfig, logger *zap.Logger) *Registry {
	var adapters []ChargeAdapter
	if cfg.Asaas.APIKey != "" {
		adapters = append(adapters, NewAsaasAdapter(cfg.Asaas.APIKey, AsaasBaseURL(cfg.Asaas.Environment), cfg.Timeout, logger))
	}
	if cfg.Stripe.SecretKey != "" {
		adapters = append(adapters, NewStripeAdapter(cfg.Stripe.SecretKey, StripeBaseURL, cfg.Timeout, logger))
	}
	if cfg.PushinPay.Token != "" {
		adapters = append(adapters, NewPushinPayAdapter(
			cfg.PushinPay.Token,
			PushinPayBaseURL(cfg.PushinPay.Environment),
			cfg.PushinPay.PlatformAccountID,
			cfg.PushinPay.WebhookURL,
			cfg.Timeout,
			logger,
		))
	}
	if len(adapters) == 0 {
		logger.Warn("No payment gateway credentials configured")
	}
	return NewRegistry(adapters...)
}

func (r *Registry) Get(g domain.Gateway) (ChargeAdapter, error) {
	a, ok := r.adapters[g]
	if !ok {
		return nil, fmt.Errorf("gateway %q is not configured", g)
	}
	return a, nil
}

// SupportsMethod reports whether a gateway can charge with a payment method
func SupportsMethod(g domain.Gateway, m domain.PaymentMethod) bool {
	if g == domain.GatewayPushinPay {
		return m == domain.PaymentMethodPix
	}
	return g.IsValid() && m.IsValid()
}
