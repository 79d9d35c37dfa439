package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/pkg/errors"
)

type catalogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sql.DB, logger *zap.Logger) *catalogRepository {
	return &catalogRepository{
		db:     db,
		logger: logger,
	}
}

func (r *catalogRepository) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT id, vendor_id, name, price, affiliate_settings
		FROM products
		WHERE id = $1
	`

	var product domain.Product
	var settings []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.VendorID,
		&product.Name,
		&product.Price,
		&settings,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get product", zap.Error(err))
		return nil, err
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &product.AffiliateSettings); err != nil {
			return nil, fmt.Errorf("unmarshal affiliate settings: %w", err)
		}
	}

	return &product, nil
}

func (r *catalogRepository) GetOffer(ctx context.Context, id uuid.UUID) (*domain.Offer, error) {
	query := `
		SELECT id, product_id, name, price_cents
		FROM offers
		WHERE id = $1
	`

	var offer domain.Offer
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&offer.ID,
		&offer.ProductID,
		&offer.Name,
		&offer.PriceCents,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "offer", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get offer", zap.Error(err))
		return nil, err
	}

	return &offer, nil
}

// GetBumpsByIDs returns the bumps that exist, in no particular order.
// Callers compare against the requested ids to detect missing ones.
func (r *catalogRepository) GetBumpsByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.OrderBump, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, checkout_id, product_id, offer_id, active, discount_enabled, discount_price
		FROM order_bumps
		WHERE id = ANY($1)
	`

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx, query, pq.Array(strIDs))
	if err != nil {
		r.logger.Error("Failed to query order bumps", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var bumps []*domain.OrderBump
	for rows.Next() {
		var bump domain.OrderBump
		var productID, offerID uuid.NullUUID
		var discountPrice decimal.NullDecimal

		if err := rows.Scan(
			&bump.ID,
			&bump.CheckoutID,
			&productID,
			&offerID,
			&bump.Active,
			&bump.DiscountEnabled,
			&discountPrice,
		); err != nil {
			return nil, fmt.Errorf("scan order bump: %w", err)
		}

		if productID.Valid {
			bump.ProductID = &productID.UUID
		}
		if offerID.Valid {
			bump.OfferID = &offerID.UUID
		}
		if discountPrice.Valid {
			bump.DiscountPrice = &discountPrice.Decimal
		}
		bumps = append(bumps, &bump)
	}

	return bumps, rows.Err()
}
