package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/pkg/errors"
)

type orderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
	}
}

const orderColumns = `
	id, vendor_id, product_id, offer_id, checkout_id, amount_cents, discount_amount_cents,
	coupon_code, affiliate_id, commission_cents, platform_fee_cents, status, gateway,
	payment_method, access_token, idempotency_key, customer_name, customer_email,
	customer_phone, customer_cpf, pii_encrypted, customer_ip, gateway_charge_id,
	pix_qr_code, pix_qr_code_text, created_at, updated_at
`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order, items []*domain.OrderItem) error {
	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = order.CreatedAt

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order transaction: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		        $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`

	_, err = tx.ExecContext(ctx, orderQuery,
		order.ID,
		order.VendorID,
		order.ProductID,
		nullUUID(order.OfferID),
		nullUUID(order.CheckoutID),
		order.AmountCents,
		order.DiscountAmountCents,
		order.CouponCode,
		nullUUID(order.AffiliateID),
		order.CommissionCents,
		order.PlatformFeeCents,
		order.Status,
		order.Gateway,
		order.PaymentMethod,
		order.AccessToken,
		order.IdempotencyKey,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhoneEncrypted,
		order.CustomerCPFEncrypted,
		order.PIIEncrypted,
		order.CustomerIP,
		order.GatewayChargeID,
		order.PixQRCode,
		order.PixQRCodeText,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert order", zap.Error(err))
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, product_name, amount_cents, quantity, is_bump, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, item := range items {
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.OrderID = order.ID
		item.CreatedAt = order.CreatedAt

		if _, err := tx.ExecContext(ctx, itemQuery,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.AmountCents,
			item.Quantity,
			item.IsBump,
			item.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to insert order item", zap.Error(err))
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get order by ID", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetItems(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, amount_cents, quantity, is_bump, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY is_bump, created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to query order items", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var items []*domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.AmountCents,
			&item.Quantity,
			&item.IsBump,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// FindByIdempotencyKey returns the newest order with key created after since, or nil
func (r *orderRepository) FindByIdempotencyKey(ctx context.Context, key string, since time.Time) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE idempotency_key = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, key, since))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to look up order by idempotency key", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) UpdateCharge(ctx context.Context, id uuid.UUID, chargeID string, status domain.OrderStatus) error {
	query := `
		UPDATE orders
		SET gateway_charge_id = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, chargeID, status); err != nil {
		r.logger.Error("Failed to update order charge", zap.Error(err))
		return err
	}
	return nil
}

func (r *orderRepository) UpdatePixQRCode(ctx context.Context, id uuid.UUID, qrCode, qrCodeText string) error {
	query := `
		UPDATE orders
		SET pix_qr_code = $2, pix_qr_code_text = $3, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, qrCode, qrCodeText); err != nil {
		r.logger.Error("Failed to update order PIX QR code", zap.Error(err))
		return err
	}
	return nil
}

func (r *orderRepository) ListPlaintextPII(ctx context.Context, limit int) ([]*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE pii_encrypted = FALSE
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list plaintext orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (r *orderRepository) UpdateEncryptedPII(ctx context.Context, id uuid.UUID, phone, cpf *string) error {
	query := `
		UPDATE orders
		SET customer_phone = $2, customer_cpf = $3, pii_encrypted = TRUE, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, phone, cpf); err != nil {
		r.logger.Error("Failed to store encrypted PII", zap.Error(err))
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var offerID, checkoutID, affiliateID uuid.NullUUID
	var couponCode, phone, cpf, customerIP, chargeID, qrCode, qrText sql.NullString

	err := row.Scan(
		&o.ID,
		&o.VendorID,
		&o.ProductID,
		&offerID,
		&checkoutID,
		&o.AmountCents,
		&o.DiscountAmountCents,
		&couponCode,
		&affiliateID,
		&o.CommissionCents,
		&o.PlatformFeeCents,
		&o.Status,
		&o.Gateway,
		&o.PaymentMethod,
		&o.AccessToken,
		&o.IdempotencyKey,
		&o.CustomerName,
		&o.CustomerEmail,
		&phone,
		&cpf,
		&o.PIIEncrypted,
		&customerIP,
		&chargeID,
		&qrCode,
		&qrText,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if offerID.Valid {
		o.OfferID = &offerID.UUID
	}
	if checkoutID.Valid {
		o.CheckoutID = &checkoutID.UUID
	}
	if affiliateID.Valid {
		o.AffiliateID = &affiliateID.UUID
	}
	o.CouponCode = nullString(couponCode)
	o.CustomerPhoneEncrypted = nullString(phone)
	o.CustomerCPFEncrypted = nullString(cpf)
	o.CustomerIP = customerIP.String
	o.GatewayChargeID = nullString(chargeID)
	o.PixQRCode = nullString(qrCode)
	o.PixQRCodeText = nullString(qrText)

	return &o, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
