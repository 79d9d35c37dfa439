package service

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/internal/repository"
	"github.com/risecheckout/orderengine/pkg/errors"
)

// ResolvedCart is the priced cart before any discount
type ResolvedCart struct {
	Product *domain.Product
	Offer   *domain.Offer
	Items   []*domain.OrderItem
	// MainCents is the price of the main product line only
	MainCents  int64
	GrossCents int64
}

type bumpResolver struct {
	catalog repository.CatalogRepository
	logger  *zap.Logger
}

// NewBumpResolver creates a resolver that prices the main product and its order bumps
func NewBumpResolver(catalog repository.CatalogRepository, logger *zap.Logger) *bumpResolver {
	return &bumpResolver{
		catalog: catalog,
		logger:  logger,
	}
}

// Resolve prices the main product and every requested bump. Any bump id that
// is unknown, inactive or belongs to another checkout rejects the whole cart.
func (r *bumpResolver) Resolve(ctx context.Context, productID uuid.UUID, offerID, checkoutID *uuid.UUID, bumpIDs []uuid.UUID) (*ResolvedCart, error) {
	product, err := r.catalog.GetProduct(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return nil, &errors.ValidationError{Field: "product_id", Message: "product not found"}
		}
		return nil, err
	}

	cart := &ResolvedCart{Product: product}
	mainCents := domain.ToCents(product.Price)

	if offerID != nil {
		offer, err := r.catalog.GetOffer(ctx, *offerID)
		if err != nil {
			if isNotFound(err) {
				return nil, &errors.ValidationError{Field: "offer_id", Message: "offer not found"}
			}
			return nil, err
		}
		if offer.ProductID != product.ID {
			return nil, &errors.ValidationError{Field: "offer_id", Message: "offer does not belong to product"}
		}
		cart.Offer = offer
		mainCents = offer.PriceCents
	}

	cart.MainCents = mainCents
	cart.Items = append(cart.Items, &domain.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		AmountCents: mainCents,
		Quantity:    1,
	})

	bumpItems, err := r.resolveBumps(ctx, checkoutID, bumpIDs)
	if err != nil {
		return nil, err
	}
	cart.Items = append(cart.Items, bumpItems...)

	for _, item := range cart.Items {
		cart.GrossCents += item.AmountCents
	}
	return cart, nil
}

func (r *bumpResolver) resolveBumps(ctx context.Context, checkoutID *uuid.UUID, bumpIDs []uuid.UUID) ([]*domain.OrderItem, error) {
	ids := uniqueIDs(bumpIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	if checkoutID == nil {
		return nil, &errors.ValidationError{Field: "checkout_id", Message: "required when order bumps are selected"}
	}

	bumps, err := r.catalog.GetBumpsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*domain.OrderBump, len(bumps))
	for _, b := range bumps {
		byID[b.ID] = b
	}

	// validate everything before pricing anything
	for _, id := range ids {
		b, ok := byID[id]
		if !ok || !b.Active || b.CheckoutID != *checkoutID {
			return nil, &errors.ValidationError{Field: "order_bump_ids", Message: "invalid order bump " + id.String()}
		}
	}

	items := make([]*domain.OrderItem, 0, len(ids))
	for _, id := range ids {
		item, err := r.priceBump(ctx, byID[id])
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

// priceBump returns nil when the bump's product cannot be resolved
func (r *bumpResolver) priceBump(ctx context.Context, bump *domain.OrderBump) (*domain.OrderItem, error) {
	var offer *domain.Offer
	if bump.OfferID != nil {
		o, err := r.catalog.GetOffer(ctx, *bump.OfferID)
		switch {
		case err == nil:
			offer = o
		case isNotFound(err):
			r.logger.Warn("Order bump offer not found, using product price",
				zap.String("bump_id", bump.ID.String()),
				zap.String("offer_id", bump.OfferID.String()),
			)
		default:
			return nil, err
		}
	}

	productID := bump.ProductID
	if productID == nil && offer != nil {
		productID = &offer.ProductID
	}
	if productID == nil {
		r.logger.Warn("Order bump has no product, dropping it", zap.String("bump_id", bump.ID.String()))
		return nil, nil
	}

	product, err := r.catalog.GetProduct(ctx, *productID)
	if err != nil {
		if isNotFound(err) {
			r.logger.Warn("Order bump product not found, dropping it",
				zap.String("bump_id", bump.ID.String()),
				zap.String("product_id", productID.String()),
			)
			return nil, nil
		}
		return nil, err
	}

	price := domain.ToCents(product.Price)
	if offer != nil {
		price = offer.PriceCents
	}
	if bump.DiscountEnabled && bump.DiscountPrice != nil && bump.DiscountPrice.IsPositive() {
		price = domain.ToCents(*bump.DiscountPrice)
	}

	return &domain.OrderItem{
		ProductID:   product.ID,
		ProductName: product.Name,
		AmountCents: price,
		Quantity:    1,
		IsBump:      true,
	}, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func isNotFound(err error) bool {
	var nf *errors.ErrNotFound
	return stderrors.As(err, &nf)
}
