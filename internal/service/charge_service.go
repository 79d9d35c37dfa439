package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/internal/gateway"
	"github.com/risecheckout/orderengine/internal/repository"
	"github.com/risecheckout/orderengine/pkg/errors"
)

// AdapterSource resolves the adapter of a gateway
type AdapterSource interface {
	Get(g domain.Gateway) (gateway.ChargeAdapter, error)
}

type chargeService struct {
	adapters   AdapterSource
	orders     repository.OrderRepository
	postCommit *postCommit
	logger     *zap.Logger
}

// NewChargeService creates the gateway charge builder
func NewChargeService(adapters AdapterSource, orders repository.OrderRepository, postCommit *postCommit, logger *zap.Logger) *chargeService {
	return &chargeService{
		adapters:   adapters,
		orders:     orders,
		postCommit: postCommit,
		logger:     logger,
	}
}

// Charge builds the gateway split and creates the charge. Failures never touch
// the stored order beyond the charge columns, so it stays pending and retryable.
func (s *chargeService) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	order := req.Order

	adapter, err := s.adapters.Get(order.Gateway)
	if err != nil {
		return nil, &errors.GatewayError{Gateway: order.Gateway, Message: "gateway unavailable", Err: err}
	}

	payload, err := adapter.BuildSplit(req)
	if err != nil {
		s.logger.Error("Failed to build gateway split",
			zap.String("order_id", order.ID.String()),
			zap.String("gateway", string(order.Gateway)),
			zap.Error(err),
		)
		return nil, err
	}

	result, err := adapter.CreateCharge(ctx, req, payload)
	if err != nil {
		s.logger.Error("Failed to create gateway charge",
			zap.String("order_id", order.ID.String()),
			zap.String("gateway", string(order.Gateway)),
			zap.Error(err),
		)
		return nil, err
	}

	status := order.Status
	if result.Status != status && status.CanTransitionTo(result.Status) {
		status = result.Status
	}
	if err := s.orders.UpdateCharge(ctx, order.ID, result.ChargeID, status); err != nil {
		// the charge exists at the gateway; the webhook layer reconciles by charge id
		s.logger.Error("Failed to store gateway charge id",
			zap.String("order_id", order.ID.String()),
			zap.String("charge_id", result.ChargeID),
			zap.Error(err),
		)
	} else {
		order.GatewayChargeID = &result.ChargeID
		order.Status = status
	}

	if order.PaymentMethod == domain.PaymentMethodPix {
		s.attachPixQRCode(ctx, adapter, order, result)
	}

	switch {
	case order.Status == domain.OrderStatusPaid:
		s.postCommit.TriggerEvent(ctx, domain.EventPurchaseApproved, order)
	case order.PaymentMethod == domain.PaymentMethodPix && result.PixQRCodeText != "":
		s.postCommit.TriggerEvent(ctx, domain.EventPixGenerated, order)
	}

	return result, nil
}

// attachPixQRCode is best effort. The charge stands without a QR code.
func (s *chargeService) attachPixQRCode(ctx context.Context, adapter gateway.ChargeAdapter, order *domain.Order, result *gateway.ChargeResult) {
	if result.PixQRCodeText == "" {
		fetcher, ok := adapter.(gateway.PixQRCodeFetcher)
		if !ok {
			s.logger.Warn("Gateway returned no PIX QR code", zap.String("order_id", order.ID.String()))
			return
		}
		image, text, err := fetcher.FetchPixQRCode(ctx, result.ChargeID)
		if err != nil {
			s.logger.Warn("Failed to fetch PIX QR code, continuing without it",
				zap.String("order_id", order.ID.String()),
				zap.String("charge_id", result.ChargeID),
				zap.Error(err),
			)
			return
		}
		result.PixQRCode = image
		result.PixQRCodeText = text
	}

	if err := s.orders.UpdatePixQRCode(ctx, order.ID, result.PixQRCode, result.PixQRCodeText); err != nil {
		s.logger.Warn("Failed to store PIX QR code",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}
	order.PixQRCode = &result.PixQRCode
	order.PixQRCodeText = &result.PixQRCodeText
}
