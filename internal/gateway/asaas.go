package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/pkg/errors"
)

const (
	AsaasSandboxURL    = "https://sandbox.asaas.com/api/v3"
	AsaasProductionURL = "https://api.asaas.com/v3"
)

var hundred = decimal.NewFromInt(100)

// AsaasBaseURL picks the API host for an environment name
func AsaasBaseURL(environment string) string {
	if strings.EqualFold(environment, "production") {
		return AsaasProductionURL
	}
	return AsaasSandboxURL
}

type AsaasAdapter struct {
	client *Client
	logger *zap.Logger
	now    func() time.Time
}

// NewAsaasAdapter creates the Asaas adapter
func NewAsaasAdapter(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger) *AsaasAdapter {
	return &AsaasAdapter{
		client: NewClient(domain.GatewayAsaas, baseURL, map[string]string{"access_token": apiKey}, timeout, logger),
		logger: logger,
		now:    time.Now,
	}
}

func (a *AsaasAdapter) Gateway() domain.Gateway { return domain.GatewayAsaas }

// BuildSplit emits at most one rule. The owner account pays the affiliate; a
// regular vendor receives its net and the platform keeps the rest.
func (a *AsaasAdapter) BuildSplit(req ChargeRequest) (SplitPayload, error) {
	split := req.Split
	payload := AsaasSplit{}
	if split.GrossCents <= 0 {
		return payload, nil
	}

	if split.IsOwner {
		if split.AffiliateWalletID != nil && split.AffiliateCommissionCents > 0 {
			payload.Rules = append(payload.Rules, AsaasSplitRule{
				WalletID:        *split.AffiliateWalletID,
				PercentualValue: percentOf(split.AffiliateCommissionCents, split.GrossCents),
			})
		}
		return payload, nil
	}

	var walletID string
	if req.Vendor != nil {
		walletID = strings.TrimSpace(deref(req.Vendor.AsaasWalletID))
	}
	if walletID == "" {
		return nil, &errors.GatewayError{Gateway: domain.GatewayAsaas, Message: "vendor has no asaas wallet configured"}
	}

	if split.AffiliateCommissionCents > 0 {
		a.logger.Warn("Affiliate commission retained by platform for manual payout",
			zap.String("order_id", req.Order.ID.String()),
			zap.Int64("commission_cents", split.AffiliateCommissionCents),
		)
	}

	if split.VendorNetCents > 0 {
		payload.Rules = append(payload.Rules, AsaasSplitRule{
			WalletID:        walletID,
			PercentualValue: percentOf(split.VendorNetCents, split.GrossCents),
		})
	}
	return payload, nil
}

type asaasCustomer struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	CpfCnpj     string `json:"cpfCnpj,omitempty"`
	MobilePhone string `json:"mobilePhone,omitempty"`
}

type asaasCustomerList struct {
	Data []asaasCustomer `json:"data"`
}

type asaasSplitEntry struct {
	WalletID        string  `json:"walletId"`
	PercentualValue float64 `json:"percentualValue"`
}

type asaasPaymentRequest struct {
	Customer          string            `json:"customer"`
	BillingType       string            `json:"billingType"`
	Value             float64           `json:"value"`
	DueDate           string            `json:"dueDate"`
	ExternalReference string            `json:"externalReference"`
	Split             []asaasSplitEntry `json:"split,omitempty"`
}

type asaasPayment struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	InvoiceURL string `json:"invoiceUrl"`
}

type asaasPixQRCode struct {
	EncodedImage string `json:"encodedImage"`
	Payload      string `json:"payload"`
}

func (a *AsaasAdapter) CreateCharge(ctx context.Context, req ChargeRequest, split SplitPayload) (*ChargeResult, error) {
	asaasSplit, ok := split.(AsaasSplit)
	if !ok {
		return nil, wrongPayload(domain.GatewayAsaas, split)
	}

	customerID, err := a.findOrCreateCustomer(ctx, req.Customer)
	if err != nil {
		return nil, err
	}

	body := asaasPaymentRequest{
		Customer:          customerID,
		BillingType:       asaasBillingType(req.Order.PaymentMethod),
		Value:             domain.FromCents(req.Order.AmountCents).InexactFloat64(),
		DueDate:           a.now().AddDate(0, 0, 1).Format("2006-01-02"),
		ExternalReference: req.Order.ID.String(),
	}
	for _, r := range asaasSplit.Rules {
		body.Split = append(body.Split, asaasSplitEntry{
			WalletID:        r.WalletID,
			PercentualValue: r.PercentualValue.InexactFloat64(),
		})
	}

	var payment asaasPayment
	if err := a.client.DoJSON(ctx, http.MethodPost, "/payments", body, &payment); err != nil {
		return nil, err
	}

	a.logger.Info("Asaas payment created",
		zap.String("order_id", req.Order.ID.String()),
		zap.String("payment_id", payment.ID),
		zap.Int("split_rules", len(body.Split)),
	)

	return &ChargeResult{
		Gateway:    domain.GatewayAsaas,
		ChargeID:   payment.ID,
		RawStatus:  payment.Status,
		Status:     domain.MapAsaasStatus(payment.Status),
		InvoiceURL: payment.InvoiceURL,
	}, nil
}

func (a *AsaasAdapter) FetchPixQRCode(ctx context.Context, chargeID string) (string, string, error) {
	var qr asaasPixQRCode
	if err := a.client.DoJSON(ctx, http.MethodGet, "/payments/"+url.PathEscape(chargeID)+"/pixQrCode", nil, &qr); err != nil {
		return "", "", err
	}
	return qr.EncodedImage, qr.Payload, nil
}

func (a *AsaasAdapter) FetchStatus(ctx context.Context, chargeID string) (string, error) {
	var payment asaasPayment
	if err := a.client.DoJSON(ctx, http.MethodGet, "/payments/"+url.PathEscape(chargeID), nil, &payment); err != nil {
		return "", err
	}
	return payment.Status, nil
}

func (a *AsaasAdapter) findOrCreateCustomer(ctx context.Context, c Customer) (string, error) {
	cpf := digitsOnly(deref(c.CPF))

	query := url.Values{}
	if cpf != "" {
		query.Set("cpfCnpj", cpf)
	} else {
		query.Set("email", c.Email)
	}

	var list asaasCustomerList
	if err := a.client.DoJSON(ctx, http.MethodGet, "/customers?"+query.Encode(), nil, &list); err != nil {
		return "", err
	}
	if len(list.Data) > 0 && list.Data[0].ID != "" {
		return list.Data[0].ID, nil
	}

	var created asaasCustomer
	err := a.client.DoJSON(ctx, http.MethodPost, "/customers", asaasCustomer{
		Name:        c.Name,
		Email:       c.Email,
		CpfCnpj:     cpf,
		MobilePhone: digitsOnly(deref(c.Phone)),
	}, &created)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", &errors.GatewayError{Gateway: domain.GatewayAsaas, Message: "customer creation returned no id"}
	}
	return created.ID, nil
}

func asaasBillingType(m domain.PaymentMethod) string {
	if m == domain.PaymentMethodCreditCard {
		return "CREDIT_CARD"
	}
	return "PIX"
}

// percentOf returns part/whole as a percentage rounded to 2 places
func percentOf(part, whole int64) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole)).Round(2)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
