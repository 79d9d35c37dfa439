package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
)

const StripeBaseURL = "https://api.stripe.com"

// pixExpiresAfter is how long a Stripe PIX code stays payable
const pixExpiresAfter = 3600

type StripeAdapter struct {
	client *Client
	logger *zap.Logger
}

// NewStripeAdapter creates the Stripe adapter
func NewStripeAdapter(secretKey, baseURL string, timeout time.Duration, logger *zap.Logger) *StripeAdapter {
	if baseURL == "" {
		baseURL = StripeBaseURL
	}
	return &StripeAdapter{
		client: NewClient(domain.GatewayStripe, baseURL, map[string]string{"Authorization": "Bearer " + secretKey}, timeout, logger),
		logger: logger,
	}
}

func (s *StripeAdapter) Gateway() domain.Gateway { return domain.GatewayStripe }

// BuildSplit uses a destination charge when the vendor has a connected account.
// The owner receives the full amount with no application fee. A regular vendor
// receives its net; the fee covers platform fee plus any affiliate commission,
// which the platform pays out separately.
func (s *StripeAdapter) BuildSplit(req ChargeRequest) (SplitPayload, error) {
	payload := StripeSplit{}

	var account string
	if req.Vendor != nil {
		account = strings.TrimSpace(deref(req.Vendor.StripeAccountID))
	}
	if account == "" {
		if !req.Split.IsOwner {
			s.logger.Warn("Vendor has no connected Stripe account, charging on platform account",
				zap.String("order_id", req.Order.ID.String()),
			)
		}
		return payload, nil
	}

	payload.DestinationAccount = &account
	if req.Split.IsOwner {
		return payload, nil
	}

	fee := req.Split.GrossCents - req.Split.VendorNetCents
	if fee > 0 {
		payload.ApplicationFeeAmount = &fee
	}
	return payload, nil
}

type stripePaymentIntent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
	NextAction   *struct {
		PixDisplayQRCode *struct {
			Data        string `json:"data"`
			ImageURLPNG string `json:"image_url_png"`
		} `json:"pix_display_qr_code"`
	} `json:"next_action"`
}

func (s *StripeAdapter) CreateCharge(ctx context.Context, req ChargeRequest, split SplitPayload) (*ChargeResult, error) {
	stripeSplit, ok := split.(StripeSplit)
	if !ok {
		return nil, wrongPayload(domain.GatewayStripe, split)
	}

	order := req.Order
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(order.AmountCents, 10))
	form.Set("currency", "brl")
	form.Set("metadata[order_id]", order.ID.String())
	form.Set("metadata[vendor_id]", order.VendorID.String())
	form.Set("description", "Order "+order.ID.String())

	if order.PaymentMethod == domain.PaymentMethodPix {
		form.Set("payment_method_types[]", "pix")
		form.Set("payment_method_options[pix][expires_after_seconds]", strconv.Itoa(pixExpiresAfter))
		form.Set("payment_method_data[type]", "pix")
		form.Set("payment_method_data[billing_details][email]", req.Customer.Email)
		form.Set("payment_method_data[billing_details][name]", req.Customer.Name)
		form.Set("confirm", "true")
	} else {
		form.Set("payment_method_types[]", "card")
	}

	if stripeSplit.DestinationAccount != nil {
		form.Set("transfer_data[destination]", *stripeSplit.DestinationAccount)
		form.Set("transfer_group", order.ID.String())
	}
	if stripeSplit.ApplicationFeeAmount != nil {
		form.Set("application_fee_amount", strconv.FormatInt(*stripeSplit.ApplicationFeeAmount, 10))
	}

	var intent stripePaymentIntent
	if err := s.client.DoForm(ctx, http.MethodPost, "/v1/payment_intents", form, &intent); err != nil {
		return nil, err
	}

	s.logger.Info("Stripe payment intent created",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_intent_id", intent.ID),
		zap.String("status", intent.Status),
	)

	result := &ChargeResult{
		Gateway:      domain.GatewayStripe,
		ChargeID:     intent.ID,
		RawStatus:    intent.Status,
		Status:       domain.MapStripeStatus(intent.Status),
		ClientSecret: intent.ClientSecret,
	}
	if intent.NextAction != nil && intent.NextAction.PixDisplayQRCode != nil {
		result.PixQRCode = intent.NextAction.PixDisplayQRCode.ImageURLPNG
		result.PixQRCodeText = intent.NextAction.PixDisplayQRCode.Data
	}
	return result, nil
}

func (s *StripeAdapter) FetchStatus(ctx context.Context, chargeID string) (string, error) {
	var intent stripePaymentIntent
	if err := s.client.DoJSON(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(chargeID), nil, &intent); err != nil {
		return "", err
	}
	return intent.Status, nil
}
