package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/pkg/errors"
)

type vendorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *sql.DB, logger *zap.Logger) *vendorRepository {
	return &vendorRepository{
		db:     db,
		logger: logger,
	}
}

func (r *vendorRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vendor, error) {
	query := `
		SELECT id, role, custom_fee_percent, asaas_wallet_id, stripe_account_id, pushinpay_account_id
		FROM vendors
		WHERE id = $1
	`

	var vendor domain.Vendor
	var feePercent decimal.NullDecimal
	var asaasWallet, stripeAccount, pushinPayAccount sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&vendor.ID,
		&vendor.Role,
		&feePercent,
		&asaasWallet,
		&stripeAccount,
		&pushinPayAccount,
	)
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "vendor", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get vendor", zap.Error(err))
		return nil, err
	}

	if feePercent.Valid {
		vendor.CustomFeePercent = &feePercent.Decimal
	}
	vendor.AsaasWalletID = nullString(asaasWallet)
	vendor.StripeAccountID = nullString(stripeAccount)
	vendor.PushinPayAccountID = nullString(pushinPayAccount)

	return &vendor, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
