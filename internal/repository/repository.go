package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/risecheckout/orderengine/internal/domain"
)

// CatalogRepository reads products, offers and order bumps
type CatalogRepository interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetOffer(ctx context.Context, id uuid.UUID) (*domain.Offer, error)
	GetBumpsByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.OrderBump, error)
}

type VendorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Vendor, error)
}

type CouponRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error)
	IsLinkedToProduct(ctx context.Context, couponID, productID uuid.UUID) (bool, error)
	// IncrementUses consumes one use if the coupon is under its limit.
	// It reports false when the limit was already reached.
	IncrementUses(ctx context.Context, id uuid.UUID) (bool, error)
}

type AffiliateRepository interface {
	GetByCode(ctx context.Context, code string, productID uuid.UUID) (*domain.Affiliate, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Affiliate, error)
	IncrementSales(ctx context.Context, id uuid.UUID, amountCents int64) error
	UpdateSalesTotals(ctx context.Context, id uuid.UUID, totalSales int, totalSalesCents int64) error
}

type OrderRepository interface {
	// Create inserts the order and its items in one transaction
	Create(ctx context.Context, order *domain.Order, items []*domain.OrderItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetItems(ctx context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error)
	FindByIdempotencyKey(ctx context.Context, key string, since time.Time) (*domain.Order, error)
	UpdateCharge(ctx context.Context, id uuid.UUID, chargeID string, status domain.OrderStatus) error
	UpdatePixQRCode(ctx context.Context, id uuid.UUID, qrCode, qrCodeText string) error
	ListPlaintextPII(ctx context.Context, limit int) ([]*domain.Order, error)
	UpdateEncryptedPII(ctx context.Context, id uuid.UUID, phone, cpf *string) error
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, event *domain.OutboxEvent) error
	GetUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id string) error
}

// Repositories groups every storage dependency of the engine
type Repositories struct {
	Catalog   CatalogRepository
	Vendor    VendorRepository
	Coupon    CouponRepository
	Affiliate AffiliateRepository
	Order     OrderRepository
	Outbox    OutboxRepository
}
