package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/internal/gateway"
	"github.com/risecheckout/orderengine/internal/repository"
	"github.com/risecheckout/orderengine/pkg/errors"
)

type fakeCatalog struct {
	products map[uuid.UUID]*domain.Product
	offers   map[uuid.UUID]*domain.Offer
	bumps    map[uuid.UUID]*domain.OrderBump
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[uuid.UUID]*domain.Product{},
		offers:   map[uuid.UUID]*domain.Offer{},
		bumps:    map[uuid.UUID]*domain.OrderBump{},
	}
}

func (f *fakeCatalog) GetProduct(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id.String()}
	}
	return p, nil
}

func (f *fakeCatalog) GetOffer(_ context.Context, id uuid.UUID) (*domain.Offer, error) {
	o, ok := f.offers[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "offer", ID: id.String()}
	}
	return o, nil
}

func (f *fakeCatalog) GetBumpsByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.OrderBump, error) {
	var out []*domain.OrderBump
	for _, id := range ids {
		if b, ok := f.bumps[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeVendors struct {
	vendors map[uuid.UUID]*domain.Vendor
}

func (f *fakeVendors) GetByID(_ context.Context, id uuid.UUID) (*domain.Vendor, error) {
	v, ok := f.vendors[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "vendor", ID: id.String()}
	}
	return v, nil
}

type fakeCoupons struct {
	mu      sync.Mutex
	coupons map[uuid.UUID]*domain.Coupon
	links   map[uuid.UUID]uuid.UUID
	incErr  error
}

func newFakeCoupons() *fakeCoupons {
	return &fakeCoupons{coupons: map[uuid.UUID]*domain.Coupon{}, links: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeCoupons) GetByID(_ context.Context, id uuid.UUID) (*domain.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "coupon", ID: id.String()}
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCoupons) IsLinkedToProduct(_ context.Context, couponID, productID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links[couponID] == productID, nil
}

func (f *fakeCoupons) IncrementUses(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incErr != nil {
		return false, f.incErr
	}
	c := f.coupons[id]
	if c.MaxUses != nil && c.UsesCount >= *c.MaxUses {
		return false, nil
	}
	c.UsesCount++
	return true, nil
}

func (f *fakeCoupons) uses(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coupons[id].UsesCount
}

type fakeAffiliates struct {
	mu           sync.Mutex
	affiliates   map[uuid.UUID]*domain.Affiliate
	incrementErr error
	updates      int
}

func newFakeAffiliates() *fakeAffiliates {
	return &fakeAffiliates{affiliates: map[uuid.UUID]*domain.Affiliate{}}
}

func (f *fakeAffiliates) GetByCode(_ context.Context, code string, productID uuid.UUID) (*domain.Affiliate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.affiliates {
		if a.Code == code && a.ProductID == productID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "affiliate", ID: code}
}

func (f *fakeAffiliates) GetByID(_ context.Context, id uuid.UUID) (*domain.Affiliate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.affiliates[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "affiliate", ID: id.String()}
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAffiliates) IncrementSales(_ context.Context, id uuid.UUID, amountCents int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	a := f.affiliates[id]
	a.TotalSales++
	a.TotalSalesCents += amountCents
	return nil
}

func (f *fakeAffiliates) UpdateSalesTotals(_ context.Context, id uuid.UUID, totalSales int, totalSalesCents int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.affiliates[id]
	a.TotalSales = totalSales
	a.TotalSalesCents = totalSalesCents
	f.updates++
	return nil
}

func (f *fakeAffiliates) totals(id uuid.UUID) (int, int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.affiliates[id]
	return a.TotalSales, a.TotalSalesCents
}

type fakeOrders struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	items     map[uuid.UUID][]*domain.OrderItem
	createErr error
	creates   int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[uuid.UUID]*domain.Order{}, items: map[uuid.UUID][]*domain.OrderItem{}}
}

func (f *fakeOrders) Create(_ context.Context, order *domain.Order, items []*domain.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.creates++
	cp := *order
	f.orders[order.ID] = &cp
	for _, it := range items {
		it.OrderID = order.ID
	}
	f.items[order.ID] = items
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) GetItems(_ context.Context, orderID uuid.UUID) ([]*domain.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[orderID], nil
}

func (f *fakeOrders) FindByIdempotencyKey(_ context.Context, key string, since time.Time) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.IdempotencyKey == key && !o.CreatedAt.Before(since) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOrders) UpdateCharge(_ context.Context, id uuid.UUID, chargeID string, status domain.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.orders[id]
	o.GatewayChargeID = &chargeID
	o.Status = status
	return nil
}

func (f *fakeOrders) UpdatePixQRCode(_ context.Context, id uuid.UUID, qrCode, qrCodeText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.orders[id]
	o.PixQRCode = &qrCode
	o.PixQRCodeText = &qrCodeText
	return nil
}

func (f *fakeOrders) ListPlaintextPII(_ context.Context, _ int) ([]*domain.Order, error) {
	return nil, nil
}

func (f *fakeOrders) UpdateEncryptedPII(_ context.Context, _ uuid.UUID, _, _ *string) error {
	return nil
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent
}

func (f *fakeOutbox) Enqueue(_ context.Context, event *domain.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) GetUnprocessed(_ context.Context, _ int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkProcessed(_ context.Context, _ string) error { return nil }

func (f *fakeOutbox) types() []domain.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.EventType
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

// fakeEncryptor prefixes values so tests can see they passed through it
type fakeEncryptor struct {
	err error
}

func (f *fakeEncryptor) EncryptOptional(v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	out := "sealed:" + *v
	return &out, nil
}

func (f *fakeEncryptor) Decrypt(v string) (string, error) {
	if len(v) < 7 || v[:7] != "sealed:" {
		return "", fmt.Errorf("not sealed")
	}
	return v[7:], nil
}

type fakeAdapter struct {
	mu       sync.Mutex
	gw       domain.Gateway
	result   *gateway.ChargeResult
	err      error
	requests []gateway.ChargeRequest
}

func (f *fakeAdapter) Gateway() domain.Gateway { return f.gw }

func (f *fakeAdapter) BuildSplit(req gateway.ChargeRequest) (gateway.SplitPayload, error) {
	return gateway.AsaasSplit{}, nil
}

func (f *fakeAdapter) CreateCharge(_ context.Context, req gateway.ChargeRequest, _ gateway.SplitPayload) (*gateway.ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.result
	return &cp, nil
}

func (f *fakeAdapter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type testEnv struct {
	catalog    *fakeCatalog
	vendors    *fakeVendors
	coupons    *fakeCoupons
	affiliates *fakeAffiliates
	orders     *fakeOrders
	outbox     *fakeOutbox
	encryptor  *fakeEncryptor
	adapter    *fakeAdapter
	repos      *repository.Repositories

	vendor  *domain.Vendor
	product *domain.Product
	offer   *domain.Offer
}

func newTestEnv() *testEnv {
	env := &testEnv{
		catalog:    newFakeCatalog(),
		vendors:    &fakeVendors{vendors: map[uuid.UUID]*domain.Vendor{}},
		coupons:    newFakeCoupons(),
		affiliates: newFakeAffiliates(),
		orders:     newFakeOrders(),
		outbox:     &fakeOutbox{},
		encryptor:  &fakeEncryptor{},
		adapter: &fakeAdapter{
			gw:     domain.GatewayAsaas,
			result: &gateway.ChargeResult{Gateway: domain.GatewayAsaas, ChargeID: "pay_1", RawStatus: "PENDING", Status: domain.OrderStatusPending, PixQRCode: "img", PixQRCodeText: "000201"},
		},
	}
	env.repos = &repository.Repositories{
		Catalog:   env.catalog,
		Vendor:    env.vendors,
		Coupon:    env.coupons,
		Affiliate: env.affiliates,
		Order:     env.orders,
		Outbox:    env.outbox,
	}

	wallet := "wallet-vendor"
	env.vendor = &domain.Vendor{ID: uuid.New(), Role: domain.VendorRoleVendor, AsaasWalletID: &wallet}
	env.vendors.vendors[env.vendor.ID] = env.vendor

	rate := 50
	env.product = &domain.Product{
		ID:       uuid.New(),
		VendorID: env.vendor.ID,
		Name:     "Course",
		Price:    mustDecimal("100.00"),
		AffiliateSettings: domain.AffiliateSettings{
			Enabled:     true,
			DefaultRate: &rate,
		},
	}
	env.catalog.products[env.product.ID] = env.product

	env.offer = &domain.Offer{ID: uuid.New(), ProductID: env.product.ID, Name: "Launch", PriceCents: 10000}
	env.catalog.offers[env.offer.ID] = env.offer
	return env
}

func (e *testEnv) addAffiliate(code, email string, rate *int) *domain.Affiliate {
	wallet := "wallet-" + code
	a := &domain.Affiliate{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		ProductID:      e.product.ID,
		Code:           code,
		Email:          email,
		CommissionRate: rate,
		Status:         domain.AffiliateStatusActive,
		AsaasWalletID:  &wallet,
	}
	e.affiliates.affiliates[a.ID] = a
	return a
}

func (e *testEnv) service() *checkoutService {
	return NewCheckoutService(e.repos, gateway.NewRegistry(e.adapter), e.encryptor, DefaultEngineConfig(), testLogger())
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr[T any](v T) *T {
	return &v
}
