package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/internal/repository"
	"github.com/risecheckout/orderengine/pkg/errors"
)

const accessTokenBytes = 32

// Encryptor seals and opens customer PII
type Encryptor interface {
	EncryptOptional(value *string) (*string, error)
	Decrypt(value string) (string, error)
}

// SealedCustomer holds the encrypted PII fields of an order
type SealedCustomer struct {
	Phone *string
	CPF   *string
}

type orderPersister struct {
	orders    repository.OrderRepository
	encryptor Encryptor
	window    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderPersister creates the order persister. window bounds duplicate detection.
func NewOrderPersister(orders repository.OrderRepository, encryptor Encryptor, window time.Duration, logger *zap.Logger) *orderPersister {
	return &orderPersister{
		orders:    orders,
		encryptor: encryptor,
		window:    window,
		logger:    logger,
		now:       time.Now,
	}
}

// IdempotencyKey derives the duplicate-submission key of a cart
func IdempotencyKey(email string, offerOrProductID uuid.UUID, amountCents int64) string {
	raw := fmt.Sprintf("%s|%s|%d", strings.ToLower(strings.TrimSpace(email)), offerOrProductID, amountCents)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// FindDuplicate returns an order with the same key created inside the window, or nil
func (p *orderPersister) FindDuplicate(ctx context.Context, key string) (*domain.Order, error) {
	existing, err := p.orders.FindByIdempotencyKey(ctx, key, p.now().Add(-p.window))
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	if existing != nil {
		p.logger.Info("Duplicate order submission",
			zap.String("order_id", existing.ID.String()),
			zap.String("idempotency_key", key),
		)
	}
	return existing, nil
}

// Seal encrypts phone and tax id. There is no plaintext fallback.
func (p *orderPersister) Seal(phone, cpf *string) (*SealedCustomer, error) {
	encPhone, err := p.encryptor.EncryptOptional(phone)
	if err != nil {
		return nil, asEncryptionFailure(err)
	}
	encCPF, err := p.encryptor.EncryptOptional(cpf)
	if err != nil {
		return nil, asEncryptionFailure(err)
	}
	return &SealedCustomer{Phone: encPhone, CPF: encCPF}, nil
}

// Open decrypts the PII fields of a stored order
func (p *orderPersister) Open(order *domain.Order) (phone, cpf *string, err error) {
	open := func(v *string) (*string, error) {
		if v == nil {
			return nil, nil
		}
		if !order.PIIEncrypted {
			return v, nil
		}
		plain, err := p.encryptor.Decrypt(*v)
		if err != nil {
			return nil, asEncryptionFailure(err)
		}
		return &plain, nil
	}

	if phone, err = open(order.CustomerPhoneEncrypted); err != nil {
		return nil, nil, err
	}
	if cpf, err = open(order.CustomerCPFEncrypted); err != nil {
		return nil, nil, err
	}
	return phone, cpf, nil
}

// Insert writes a pending order and its items. It assigns the id and access token.
func (p *orderPersister) Insert(ctx context.Context, order *domain.Order, items []*domain.OrderItem, sealed *SealedCustomer) error {
	token, err := newAccessToken()
	if err != nil {
		return fmt.Errorf("generate access token: %w", err)
	}

	order.ID = uuid.New()
	order.Status = domain.OrderStatusPending
	order.AccessToken = token
	order.CustomerPhoneEncrypted = sealed.Phone
	order.CustomerCPFEncrypted = sealed.CPF
	order.PIIEncrypted = true
	order.CreatedAt = p.now()

	if err := p.orders.Create(ctx, order, items); err != nil {
		return err
	}

	p.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.Int64("amount_cents", order.AmountCents),
		zap.Int("items", len(items)),
		zap.String("gateway", string(order.Gateway)),
	)
	return nil
}

func newAccessToken() (string, error) {
	b := make([]byte, accessTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func asEncryptionFailure(err error) error {
	if encErr, ok := err.(*errors.EncryptionFailure); ok {
		return encErr
	}
	return &errors.EncryptionFailure{Err: err}
}
