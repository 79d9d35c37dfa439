package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/pkg/errors"
)

const (
	PushinPaySandboxURL    = "https://api-sandbox.pushinpay.com.br/api"
	PushinPayProductionURL = "https://api.pushinpay.com.br/api"

	// PushinPay refuses split rules that add up to more than half the charge
	pushinPayMaxSplitPercent = 50
)

// PushinPayBaseURL picks the API host for an environment name
func PushinPayBaseURL(environment string) string {
	if strings.EqualFold(environment, "sandbox") {
		return PushinPaySandboxURL
	}
	return PushinPayProductionURL
}

type PushinPayAdapter struct {
	client            *Client
	platformAccountID string
	webhookURL        string
	logger            *zap.Logger
}

// NewPushinPayAdapter creates the PushinPay adapter. platformAccountID receives
// the platform fee of regular vendors.
func NewPushinPayAdapter(token, baseURL, platformAccountID, webhookURL string, timeout time.Duration, logger *zap.Logger) *PushinPayAdapter {
	return &PushinPayAdapter{
		client:            NewClient(domain.GatewayPushinPay, baseURL, map[string]string{"Authorization": "Bearer " + token}, timeout, logger),
		platformAccountID: platformAccountID,
		webhookURL:        webhookURL,
		logger:            logger,
	}
}

func (p *PushinPayAdapter) Gateway() domain.Gateway { return domain.GatewayPushinPay }

// BuildSplit lists the platform fee (regular vendors only) and the affiliate
// commission as fixed cent rules. Rules that would push the total over the
// provider cap are dropped and reported for manual payout.
func (p *PushinPayAdapter) BuildSplit(req ChargeRequest) (SplitPayload, error) {
	if req.Order.PaymentMethod != domain.PaymentMethodPix {
		return nil, &errors.ValidationError{Field: "payment_method", Message: "pushinpay only supports pix"}
	}

	split := req.Split
	payload := PushinPaySplit{}
	limit := split.GrossCents * pushinPayMaxSplitPercent / 100
	var total int64

	add := func(rule PushinPaySplitRule, kind string) bool {
		if total+rule.Value > limit {
			p.logger.Warn("Split rule exceeds PushinPay limit, manual payout needed",
				zap.String("order_id", req.Order.ID.String()),
				zap.String("rule", kind),
				zap.Int64("value_cents", rule.Value),
				zap.Int64("limit_cents", limit),
			)
			return false
		}
		total += rule.Value
		payload.Rules = append(payload.Rules, rule)
		return true
	}

	if !split.IsOwner && split.PlatformFeeCents > 0 {
		if p.platformAccountID == "" {
			p.logger.Warn("PushinPay platform account not configured, platform fee not split",
				zap.String("order_id", req.Order.ID.String()),
			)
		} else {
			add(PushinPaySplitRule{Value: split.PlatformFeeCents, AccountID: p.platformAccountID}, "platform_fee")
		}
	}

	if split.AffiliateWalletID != nil && split.AffiliateCommissionCents > 0 {
		rule := PushinPaySplitRule{Value: split.AffiliateCommissionCents, AccountID: *split.AffiliateWalletID}
		if !add(rule, "affiliate") {
			payload.DroppedCents = split.AffiliateCommissionCents
		}
	}

	return payload, nil
}

type pushinPayCashIn struct {
	Value      int64                `json:"value"`
	WebhookURL string               `json:"webhook_url,omitempty"`
	SplitRules []PushinPaySplitRule `json:"split_rules,omitempty"`
}

type pushinPayTransaction struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Value        int64  `json:"value"`
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
}

func (p *PushinPayAdapter) CreateCharge(ctx context.Context, req ChargeRequest, split SplitPayload) (*ChargeResult, error) {
	pushinSplit, ok := split.(PushinPaySplit)
	if !ok {
		return nil, wrongPayload(domain.GatewayPushinPay, split)
	}

	body := pushinPayCashIn{
		Value:      req.Order.AmountCents,
		WebhookURL: p.webhookURL,
		SplitRules: pushinSplit.Rules,
	}

	var tx pushinPayTransaction
	if err := p.client.DoJSON(ctx, http.MethodPost, "/pix/cashIn", body, &tx); err != nil {
		return nil, err
	}

	p.logger.Info("PushinPay PIX created",
		zap.String("order_id", req.Order.ID.String()),
		zap.String("pix_id", tx.ID),
		zap.Int("split_rules", len(body.SplitRules)),
	)

	return &ChargeResult{
		Gateway:       domain.GatewayPushinPay,
		ChargeID:      tx.ID,
		RawStatus:     tx.Status,
		Status:        domain.MapPushinPayStatus(tx.Status),
		PixQRCode:     tx.QRCodeBase64,
		PixQRCodeText: tx.QRCode,
	}, nil
}

func (p *PushinPayAdapter) FetchStatus(ctx context.Context, chargeID string) (string, error) {
	var tx pushinPayTransaction
	if err := p.client.DoJSON(ctx, http.MethodGet, "/transactions/"+url.PathEscape(chargeID), nil, &tx); err != nil {
		return "", err
	}
	return tx.Status, nil
}
