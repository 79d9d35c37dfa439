// Package gateway turns a computed split into each payment provider's native
// split primitive and creates the charge.
package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/risecheckout/orderengine/internal/domain"
)

// Customer is the decrypted buyer data a charge needs
type Customer struct {
	Name  string
	Email string
	Phone *string
	CPF   *string
}

// ChargeRequest carries everything an adapter needs to build a split and a charge
type ChargeRequest struct {
	Order    *domain.Order
	Split    domain.SplitResult
	Vendor   *domain.Vendor
	Customer Customer
}

// SplitPayload is one gateway's split instructions. Each gateway has its own
// concrete type; adapters reject payloads built for another gateway.
type SplitPayload interface {
	Gateway() domain.Gateway
}

// AsaasSplit is binary: at most one explicit payee, the platform keeps the remainder
type AsaasSplit struct {
	Rules []AsaasSplitRule
}

type AsaasSplitRule struct {
	WalletID        string
	PercentualValue decimal.Decimal
}

func (AsaasSplit) Gateway() domain.Gateway { return domain.GatewayAsaas }

// Total returns the percentage assigned to explicit payees
func (s AsaasSplit) Total() decimal.Decimal {
	total := decimal.Zero
	for _, r := range s.Rules {
		total = total.Add(r.PercentualValue)
	}
	return total
}

// StripeSplit is a Connect destination charge. Both fields nil means a plain charge.
type StripeSplit struct {
	DestinationAccount   *string
	ApplicationFeeAmount *int64
}

func (StripeSplit) Gateway() domain.Gateway { return domain.GatewayStripe }

// PushinPaySplit lists fixed cent amounts per receiving account
type PushinPaySplit struct {
	Rules []PushinPaySplitRule
	// DroppedCents is commission that did not fit the split cap and must be paid manually
	DroppedCents int64
}

type PushinPaySplitRule struct {
	Value     int64  `json:"value"`
	AccountID string `json:"account_id"`
}

func (PushinPaySplit) Gateway() domain.Gateway { return domain.GatewayPushinPay }

// ChargeResult is what the provider returned for a created charge
type ChargeResult struct {
	Gateway       domain.Gateway     `json:"gateway"`
	ChargeID      string             `json:"charge_id"`
	RawStatus     string             `json:"gateway_status"`
	Status        domain.OrderStatus `json:"status"`
	PixQRCode     string             `json:"pix_qr_code,omitempty"`
	PixQRCodeText string             `json:"pix_qr_code_text,omitempty"`
	ClientSecret  string             `json:"client_secret,omitempty"`
	InvoiceURL    string             `json:"invoice_url,omitempty"`
}

// ChargeAdapter is implemented once per gateway
type ChargeAdapter interface {
	Gateway() domain.Gateway
	BuildSplit(req ChargeRequest) (SplitPayload, error)
	CreateCharge(ctx context.Context, req ChargeRequest, split SplitPayload) (*ChargeResult, error)
}

// PixQRCodeFetcher is implemented by gateways that return the PIX QR code
// from a separate call after the charge is created
type PixQRCodeFetcher interface {
	FetchPixQRCode(ctx context.Context, chargeID string) (image, text string, err error)
}

// StatusFetcher reads the current provider status of a charge
type StatusFetcher interface {
	FetchStatus(ctx context.Context, chargeID string) (string, error)
}

func wrongPayload(want domain.Gateway, got SplitPayload) error {
	if got == nil {
		return fmt.Errorf("%s adapter: missing split payload", want)
	}
	return fmt.Errorf("%s adapter: got %s split payload", want, got.Gateway())
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
