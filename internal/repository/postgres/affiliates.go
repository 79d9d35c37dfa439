package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/pkg/errors"
)

type affiliateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAffiliateRepository creates a new affiliate repository
func NewAffiliateRepository(db *sql.DB, logger *zap.Logger) *affiliateRepository {
	return &affiliateRepository{
		db:     db,
		logger: logger,
	}
}

const affiliateColumns = `
	a.id, a.user_id, a.product_id, a.affiliate_code, u.email, a.commission_rate, a.status,
	a.asaas_wallet_id, a.stripe_account_id, a.pushinpay_account_id, a.total_sales, a.total_sales_cents
`

func (r *affiliateRepository) GetByCode(ctx context.Context, code string, productID uuid.UUID) (*domain.Affiliate, error) {
	query := `
		SELECT ` + affiliateColumns + `
		FROM affiliates a
		JOIN users u ON u.id = a.user_id
		WHERE a.affiliate_code = $1 AND a.product_id = $2
	`

	affiliate, err := scanAffiliate(r.db.QueryRowContext(ctx, query, code, productID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "affiliate", ID: code}
	}
	if err != nil {
		r.logger.Error("Failed to get affiliate by code", zap.Error(err))
		return nil, err
	}
	return affiliate, nil
}

func (r *affiliateRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Affiliate, error) {
	query := `
		SELECT ` + affiliateColumns + `
		FROM affiliates a
		JOIN users u ON u.id = a.user_id
		WHERE a.id = $1
	`

	affiliate, err := scanAffiliate(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "affiliate", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get affiliate by ID", zap.Error(err))
		return nil, err
	}
	return affiliate, nil
}

func (r *affiliateRepository) IncrementSales(ctx context.Context, id uuid.UUID, amountCents int64) error {
	query := `
		UPDATE affiliates
		SET total_sales = total_sales + 1, total_sales_cents = total_sales_cents + $2
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id, amountCents)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "affiliate", ID: id.String()}
	}
	return nil
}

func (r *affiliateRepository) UpdateSalesTotals(ctx context.Context, id uuid.UUID, totalSales int, totalSalesCents int64) error {
	query := `
		UPDATE affiliates
		SET total_sales = $2, total_sales_cents = $3
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, totalSales, totalSalesCents)
	if err != nil {
		r.logger.Error("Failed to update affiliate sales totals", zap.Error(err))
		return err
	}
	return nil
}

func scanAffiliate(row *sql.Row) (*domain.Affiliate, error) {
	var a domain.Affiliate
	var rate sql.NullInt32
	var asaasWallet, stripeAccount, pushinPayAccount sql.NullString

	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.ProductID,
		&a.Code,
		&a.Email,
		&rate,
		&a.Status,
		&asaasWallet,
		&stripeAccount,
		&pushinPayAccount,
		&a.TotalSales,
		&a.TotalSalesCents,
	)
	if err != nil {
		return nil, err
	}

	if rate.Valid {
		n := int(rate.Int32)
		a.CommissionRate = &n
	}
	a.AsaasWalletID = nullString(asaasWallet)
	a.StripeAccountID = nullString(stripeAccount)
	a.PushinPayAccountID = nullString(pushinPayAccount)

	return &a, nil
}
