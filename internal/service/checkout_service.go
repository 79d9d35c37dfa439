package service

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/internal/gateway"
	"github.com/risecheckout/orderengine/internal/repository"
	"github.com/risecheckout/orderengine/pkg/errors"
)

type checkoutService struct {
	repos      *repository.Repositories
	bumps      *bumpResolver
	coupons    *couponApplier
	splits     *splitEngine
	persister  *orderPersister
	charges    *chargeService
	postCommit *postCommit
	logger     *zap.Logger
}

// NewCheckoutService wires the order pipeline
func NewCheckoutService(
	repos *repository.Repositories,
	adapters AdapterSource,
	encryptor Encryptor,
	cfg EngineConfig,
	logger *zap.Logger,
) *checkoutService {
	pc := NewPostCommit(repos.Affiliate, repos.Outbox, logger)
	return &checkoutService{
		repos:      repos,
		bumps:      NewBumpResolver(repos.Catalog, logger),
		coupons:    NewCouponApplier(repos.Coupon, logger),
		splits:     NewSplitEngine(cfg, logger),
		persister:  NewOrderPersister(repos.Order, encryptor, cfg.IdempotencyWindow, logger),
		charges:    NewChargeService(adapters, repos.Order, pc, logger),
		postCommit: pc,
		logger:     logger,
	}
}

// cartIDs are the parsed identifiers of a CreateOrderRequest
type cartIDs struct {
	product  uuid.UUID
	offer    *uuid.UUID
	checkout *uuid.UUID
	coupon   *uuid.UUID
	bumps    []uuid.UUID
}

// CreateOrder turns a cart into a pending order and charges it. A returned
// error means no order was created; a gateway failure is reported in the
// result instead, with the order left pending.
func (s *checkoutService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	ids, err := validateRequest(&req)
	if err != nil {
		return nil, err
	}

	cart, err := s.bumps.Resolve(ctx, ids.product, ids.offer, ids.checkout, ids.bumps)
	if err != nil {
		return nil, err
	}

	// quoted keeps the coupon's price even when it can no longer be used, so a
	// resubmission after the first order took the last use still matches it.
	var quoted, applied *AppliedCoupon
	if ids.coupon != nil {
		quoted, err = s.coupons.Quote(ctx, *ids.coupon, cart.Product.ID, cart.MainCents, cart.GrossCents)
		if err == nil {
			err = s.coupons.CheckWindow(quoted.Coupon)
		}
		if err != nil {
			s.logger.Warn("Coupon not applied", zap.String("coupon_id", ids.coupon.String()), zap.Error(err))
		} else {
			applied = quoted
		}
	}

	keyID := cart.Product.ID
	if cart.Offer != nil {
		keyID = cart.Offer.ID
	}

	amount := amountAfter(cart.GrossCents, applied)
	key := IdempotencyKey(req.CustomerEmail, keyID, amount)
	if dup, err := s.findDuplicate(ctx, key); err != nil || dup != nil {
		return dup, err
	}
	if applied == nil && quoted != nil {
		discounted := IdempotencyKey(req.CustomerEmail, keyID, amountAfter(cart.GrossCents, quoted))
		if dup, err := s.findDuplicate(ctx, discounted); err != nil || dup != nil {
			return dup, err
		}
	}

	vendor, err := s.repos.Vendor.GetByID(ctx, cart.Product.VendorID)
	if err != nil {
		s.logger.Error("Failed to load vendor", zap.String("vendor_id", cart.Product.VendorID.String()), zap.Error(err))
		return nil, err
	}

	affiliate := s.lookupAffiliate(ctx, req.AffiliateCode, cart.Product.ID)

	sealed, err := s.persister.Seal(req.CustomerPhone, req.CustomerCPF)
	if err != nil {
		s.logger.Error("Failed to encrypt customer data", zap.Error(err))
		return nil, err
	}

	if applied != nil {
		if err := s.coupons.Redeem(ctx, applied); err != nil {
			s.logger.Warn("Coupon redemption lost, continuing without discount",
				zap.String("coupon_id", applied.Coupon.ID.String()),
				zap.Error(err),
			)
			applied = nil
			amount = amountAfter(cart.GrossCents, nil)
			key = IdempotencyKey(req.CustomerEmail, keyID, amount)
			if dup, err := s.findDuplicate(ctx, key); err != nil || dup != nil {
				return dup, err
			}
		}
	}

	var discount int64
	if applied != nil {
		discount = applied.DiscountCents
	}

	split := s.splits.Compute(SplitInput{
		GrossCents:    amount,
		DiscountCents: discount,
		Items:         cart.Items,
		Vendor:        vendor,
		ProductID:     cart.Product.ID,
		Settings:      cart.Product.AffiliateSettings,
		Affiliate:     affiliate,
		CustomerEmail: req.CustomerEmail,
		Gateway:       req.Gateway,
	})

	order := &domain.Order{
		VendorID:            vendor.ID,
		ProductID:           cart.Product.ID,
		OfferID:             ids.offer,
		CheckoutID:          ids.checkout,
		AmountCents:         amount,
		DiscountAmountCents: discount,
		AffiliateID:         split.AffiliateID,
		CommissionCents:     split.AffiliateCommissionCents,
		PlatformFeeCents:    split.PlatformFeeCents,
		Gateway:             req.Gateway,
		PaymentMethod:       req.PaymentMethod,
		IdempotencyKey:      key,
		CustomerName:        strings.TrimSpace(req.CustomerName),
		CustomerEmail:       strings.TrimSpace(req.CustomerEmail),
		CustomerIP:          req.CustomerIP,
	}
	if applied != nil {
		order.CouponCode = &applied.Coupon.Code
	}

	if err := s.persister.Insert(ctx, order, cart.Items, sealed); err != nil {
		s.logger.Error("Failed to create order", zap.Error(err))
		return nil, err
	}

	if split.AffiliateID != nil {
		s.postCommit.RecordAffiliateSale(ctx, *split.AffiliateID, amount)
	}

	result := &CreateOrderResult{
		OrderID:     order.ID,
		AmountCents: order.AmountCents,
		AccessToken: order.AccessToken,
		Split: SplitData{
			PlatformFeeCents:         split.PlatformFeeCents,
			AffiliateWalletID:        split.AffiliateWalletID,
			AffiliateCommissionCents: split.AffiliateCommissionCents,
		},
	}

	charge, err := s.charges.Charge(ctx, gateway.ChargeRequest{
		Order:  order,
		Split:  split,
		Vendor: vendor,
		Customer: gateway.Customer{
			Name:  order.CustomerName,
			Email: order.CustomerEmail,
			Phone: req.CustomerPhone,
			CPF:   req.CustomerCPF,
		},
	})
	if err != nil {
		result.ChargeError = err
	} else {
		result.Charge = charge
	}

	return result, nil
}

// GetOrder returns the order when token matches its access token
func (s *checkoutService) GetOrder(ctx context.Context, orderID uuid.UUID, token string) (*OrderView, error) {
	order, err := s.authorizedOrder(ctx, orderID, token)
	if err != nil {
		return nil, err
	}

	items, err := s.repos.Order.GetItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	view := &OrderView{
		ID:                  order.ID,
		Status:              order.Status,
		AmountCents:         order.AmountCents,
		DiscountAmountCents: order.DiscountAmountCents,
		CouponCode:          order.CouponCode,
		Gateway:             order.Gateway,
		PaymentMethod:       order.PaymentMethod,
		PixQRCode:           order.PixQRCode,
		PixQRCodeText:       order.PixQRCodeText,
		Items:               make([]OrderItemView, 0, len(items)),
		CreatedAt:           order.CreatedAt,
	}
	for _, item := range items {
		view.Items = append(view.Items, OrderItemView{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			AmountCents: item.AmountCents,
			Quantity:    item.Quantity,
			IsBump:      item.IsBump,
		})
	}
	return view, nil
}

// RetryCharge runs the charge step again for a pending order. The split is
// recomputed from the stored order and current configuration.
func (s *checkoutService) RetryCharge(ctx context.Context, orderID uuid.UUID, token string) (*gateway.ChargeResult, error) {
	order, err := s.authorizedOrder(ctx, orderID, token)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return nil, &errors.ErrInvalidStateTransition{From: order.Status, To: domain.OrderStatusPending}
	}

	items, err := s.repos.Order.GetItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	vendor, err := s.repos.Vendor.GetByID(ctx, order.VendorID)
	if err != nil {
		return nil, err
	}
	product, err := s.repos.Catalog.GetProduct(ctx, order.ProductID)
	if err != nil {
		return nil, err
	}

	var affiliate *domain.Affiliate
	if order.AffiliateID != nil {
		affiliate, err = s.repos.Affiliate.GetByID(ctx, *order.AffiliateID)
		if err != nil {
			s.logger.Warn("Affiliate of order not found, retrying without commission",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
			affiliate = nil
		}
	}

	split := s.splits.Compute(SplitInput{
		GrossCents:    order.AmountCents,
		DiscountCents: order.DiscountAmountCents,
		Items:         items,
		Vendor:        vendor,
		ProductID:     order.ProductID,
		Settings:      product.AffiliateSettings,
		Affiliate:     affiliate,
		CustomerEmail: order.CustomerEmail,
		Gateway:       order.Gateway,
	})
	if split.AffiliateCommissionCents != order.CommissionCents || split.PlatformFeeCents != order.PlatformFeeCents {
		s.logger.Warn("Recomputed split differs from stored order",
			zap.String("order_id", order.ID.String()),
			zap.Int64("stored_commission_cents", order.CommissionCents),
			zap.Int64("commission_cents", split.AffiliateCommissionCents),
			zap.Int64("stored_fee_cents", order.PlatformFeeCents),
			zap.Int64("fee_cents", split.PlatformFeeCents),
		)
	}

	phone, cpf, err := s.persister.Open(order)
	if err != nil {
		return nil, err
	}

	return s.charges.Charge(ctx, gateway.ChargeRequest{
		Order:  order,
		Split:  split,
		Vendor: vendor,
		Customer: gateway.Customer{
			Name:  order.CustomerName,
			Email: order.CustomerEmail,
			Phone: phone,
			CPF:   cpf,
		},
	})
}

// Wait drains post-commit work, used on shutdown
func (s *checkoutService) Wait() {
	s.postCommit.Wait()
}

func (s *checkoutService) authorizedOrder(ctx context.Context, orderID uuid.UUID, token string) (*domain.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(order.AccessToken)) != 1 {
		return nil, &errors.ErrUnauthorized{Message: "invalid access token"}
	}
	return order, nil
}

func (s *checkoutService) lookupAffiliate(ctx context.Context, code *string, productID uuid.UUID) *domain.Affiliate {
	if code == nil || strings.TrimSpace(*code) == "" {
		return nil
	}
	affiliate, err := s.repos.Affiliate.GetByCode(ctx, strings.TrimSpace(*code), productID)
	if err != nil {
		s.logger.Warn("Affiliate code not resolved",
			zap.String("affiliate_code", *code),
			zap.Error(err),
		)
		return nil
	}
	return affiliate
}

func validateRequest(req *CreateOrderRequest) (*cartIDs, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	if req.CustomerName == "" {
		return nil, &errors.ValidationError{Field: "customer_name", Message: "is required"}
	}
	if !strings.Contains(req.CustomerEmail, "@") {
		return nil, &errors.ValidationError{Field: "customer_email", Message: "is invalid"}
	}
	if !req.Gateway.IsValid() {
		return nil, &errors.ValidationError{Field: "gateway", Message: "unsupported gateway"}
	}
	if !req.PaymentMethod.IsValid() {
		return nil, &errors.ValidationError{Field: "payment_method", Message: "must be pix or credit_card"}
	}
	if !gateway.SupportsMethod(req.Gateway, req.PaymentMethod) {
		return nil, &errors.ValidationError{Field: "payment_method", Message: "not supported by " + string(req.Gateway)}
	}

	ids := &cartIDs{}
	var err error
	if ids.product, err = parseID("product_id", req.ProductID); err != nil {
		return nil, err
	}
	if ids.offer, err = parseOptionalID("offer_id", req.OfferID); err != nil {
		return nil, err
	}
	if ids.checkout, err = parseOptionalID("checkout_id", req.CheckoutID); err != nil {
		return nil, err
	}
	if ids.coupon, err = parseOptionalID("coupon_id", req.CouponID); err != nil {
		return nil, err
	}
	for _, raw := range req.OrderBumpIDs {
		id, err := parseID("order_bump_ids", raw)
		if err != nil {
			return nil, err
		}
		ids.bumps = append(ids.bumps, id)
	}
	return ids, nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, &errors.ValidationError{Field: field, Message: "must be a valid id"}
	}
	return id, nil
}

func parseOptionalID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := parseID(field, *raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func amountAfter(gross int64, applied *AppliedCoupon) int64 {
	amount := gross
	if applied != nil {
		amount -= applied.DiscountCents
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// findDuplicate returns the prior result for key, or nil when there is none
func (s *checkoutService) findDuplicate(ctx context.Context, key string) (*CreateOrderResult, error) {
	dup, err := s.persister.FindDuplicate(ctx, key)
	if err != nil || dup == nil {
		return nil, err
	}
	return duplicateResult(dup), nil
}

// duplicateResult replays a prior order, including its charge when one was created
func duplicateResult(order *domain.Order) *CreateOrderResult {
	result := &CreateOrderResult{
		OrderID:     order.ID,
		AmountCents: order.AmountCents,
		AccessToken: order.AccessToken,
		Split: SplitData{
			PlatformFeeCents:         order.PlatformFeeCents,
			AffiliateCommissionCents: order.CommissionCents,
		},
		Duplicate: true,
	}
	if order.GatewayChargeID != nil {
		result.Charge = &gateway.ChargeResult{
			Gateway:       order.Gateway,
			ChargeID:      *order.GatewayChargeID,
			Status:        order.Status,
			PixQRCode:     deref(order.PixQRCode),
			PixQRCodeText: deref(order.PixQRCodeText),
		}
	}
	return result
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
