package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/internal/repository"
)

const postCommitTimeout = 10 * time.Second

// LifecycleEvent is the outbox payload for downstream webhooks
type LifecycleEvent struct {
	EventID       string               `json:"event_id"`
	Event         domain.EventType     `json:"event"`
	OrderID       string               `json:"order_id"`
	VendorID      string               `json:"vendor_id"`
	ProductID     string               `json:"product_id"`
	Status        domain.OrderStatus   `json:"status"`
	AmountCents   int64                `json:"amount_cents"`
	Gateway       domain.Gateway       `json:"gateway"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	ChargeID      string               `json:"charge_id,omitempty"`
	PixQRCodeText string               `json:"pix_qr_code_text,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

type postCommit struct {
	affiliates repository.AffiliateRepository
	outbox     repository.OutboxRepository
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewPostCommit creates the dispatcher for effects that run after an order is stored
func NewPostCommit(affiliates repository.AffiliateRepository, outbox repository.OutboxRepository, logger *zap.Logger) *postCommit {
	return &postCommit{
		affiliates: affiliates,
		outbox:     outbox,
		logger:     logger,
	}
}

// Dispatch runs task in the background. Errors and panics are logged and
// never reach the caller. The task outlives the request context.
func (p *postCommit) Dispatch(ctx context.Context, name string, task func(ctx context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Post-commit task panicked", zap.String("task", name), zap.Any("panic", r))
			}
		}()

		taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCommitTimeout)
		defer cancel()

		if err := task(taskCtx); err != nil {
			p.logger.Warn("Post-commit task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// Wait blocks until every dispatched task finished
func (p *postCommit) Wait() {
	p.wg.Wait()
}

// RecordAffiliateSale bumps the affiliate's sales counters
func (p *postCommit) RecordAffiliateSale(ctx context.Context, affiliateID uuid.UUID, amountCents int64) {
	p.Dispatch(ctx, "affiliate_sales", func(ctx context.Context) error {
		return p.incrementAffiliateSales(ctx, affiliateID, amountCents)
	})
}

func (p *postCommit) incrementAffiliateSales(ctx context.Context, affiliateID uuid.UUID, amountCents int64) error {
	err := p.affiliates.IncrementSales(ctx, affiliateID, amountCents)
	if err == nil {
		return nil
	}

	// read-modify-write can lose updates when two sales land at once
	p.logger.Warn("Atomic affiliate increment failed, falling back to read-modify-write",
		zap.String("affiliate_id", affiliateID.String()),
		zap.Error(err),
	)

	affiliate, getErr := p.affiliates.GetByID(ctx, affiliateID)
	if getErr != nil {
		return fmt.Errorf("load affiliate for stats: %w", getErr)
	}
	return p.affiliates.UpdateSalesTotals(ctx, affiliateID, affiliate.TotalSales+1, affiliate.TotalSalesCents+amountCents)
}

// TriggerEvent stores a lifecycle event in the outbox for the publisher
func (p *postCommit) TriggerEvent(ctx context.Context, eventType domain.EventType, order *domain.Order) {
	event := LifecycleEvent{
		EventID:       ulid.Make().String(),
		Event:         eventType,
		OrderID:       order.ID.String(),
		VendorID:      order.VendorID.String(),
		ProductID:     order.ProductID.String(),
		Status:        order.Status,
		AmountCents:   order.AmountCents,
		Gateway:       order.Gateway,
		PaymentMethod: order.PaymentMethod,
		OccurredAt:    time.Now().UTC(),
	}
	if order.GatewayChargeID != nil {
		event.ChargeID = *order.GatewayChargeID
	}
	if order.PixQRCodeText != nil {
		event.PixQRCodeText = *order.PixQRCodeText
	}

	p.Dispatch(ctx, string(eventType), func(ctx context.Context) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		return p.outbox.Enqueue(ctx, &domain.OutboxEvent{
			ID:          event.EventID,
			AggregateID: event.OrderID,
			EventType:   eventType,
			Payload:     payload,
			CreatedAt:   event.OccurredAt,
		})
	})
}
