package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/domain"
	"github.com/risecheckout/orderengine/pkg/errors"
)

func strPtr(s string) *string { return &s }

func testOrder(method domain.PaymentMethod, amount int64) *domain.Order {
	return &domain.Order{
		ID:            uuid.New(),
		VendorID:      uuid.New(),
		AmountCents:   amount,
		PaymentMethod: method,
		Status:        domain.OrderStatusPending,
	}
}

func vendorSplit() domain.SplitResult {
	return domain.SplitResult{GrossCents: 10000, PlatformFeeCents: 400, VendorNetCents: 9600}
}

func ownerAffiliateSplit() domain.SplitResult {
	return domain.SplitResult{
		GrossCents:               10000,
		PlatformFeeCents:         400,
		AffiliateWalletID:        strPtr("wallet-aff"),
		AffiliateCommissionCents: 6720,
		VendorNetCents:           2880,
		IsOwner:                  true,
	}
}

func TestAsaasBuildSplit_VendorRulePlusRemainderIsWhole(t *testing.T) {
	a := NewAsaasAdapter("key", "http://unused", time.Second, zap.NewNop())

	req := ChargeRequest{
		Order:  testOrder(domain.PaymentMethodPix, 10000),
		Split:  vendorSplit(),
		Vendor: &domain.Vendor{AsaasWalletID: strPtr("wallet-vendor")},
	}
	payload, err := a.BuildSplit(req)
	require.NoError(t, err)

	split := payload.(AsaasSplit)
	require.Len(t, split.Rules, 1)
	assert.Equal(t, "wallet-vendor", split.Rules[0].WalletID)
	assert.True(t, split.Rules[0].PercentualValue.Equal(decimal.NewFromInt(96)))

	remainder := decimal.NewFromInt(100).Sub(split.Total())
	assert.True(t, remainder.Equal(percentOf(req.Split.PlatformFeeCents, req.Split.GrossCents)))
	assert.True(t, split.Total().Add(remainder).Equal(decimal.NewFromInt(100)))
}

func TestAsaasBuildSplit_OwnerWithAffiliateIsSingleRule(t *testing.T) {
	a := NewAsaasAdapter("key", "http://unused", time.Second, zap.NewNop())

	payload, err := a.BuildSplit(ChargeRequest{
		Order:  testOrder(domain.PaymentMethodPix, 10000),
		Split:  ownerAffiliateSplit(),
		Vendor: &domain.Vendor{Role: domain.VendorRoleOwner},
	})
	require.NoError(t, err)

	split := payload.(AsaasSplit)
	require.Len(t, split.Rules, 1)
	assert.Equal(t, "wallet-aff", split.Rules[0].WalletID)
	assert.Equal(t, "67.2", split.Rules[0].PercentualValue.String())
}

func TestAsaasBuildSplit_OwnerWithoutAffiliateHasNoRules(t *testing.T) {
	a := NewAsaasAdapter("key", "http://unused", time.Second, zap.NewNop())

	payload, err := a.BuildSplit(ChargeRequest{
		Order: testOrder(domain.PaymentMethodPix, 10000),
		Split: domain.SplitResult{GrossCents: 10000, VendorNetCents: 10000, IsOwner: true},
	})
	require.NoError(t, err)
	assert.Empty(t, payload.(AsaasSplit).Rules)
}

func TestAsaasBuildSplit_VendorWithoutWallet(t *testing.T) {
	a := NewAsaasAdapter("key", "http://unused", time.Second, zap.NewNop())

	_, err := a.BuildSplit(ChargeRequest{
		Order:  testOrder(domain.PaymentMethodPix, 10000),
		Split:  vendorSplit(),
		Vendor: &domain.Vendor{},
	})
	var gwErr *errors.GatewayError
	assert.ErrorAs(t, err, &gwErr)
}

func TestAsaasCreateCharge_CreatesCustomerAndPayment(t *testing.T) {
	var paymentBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/customers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("access_token"))
		if r.Method == http.MethodGet {
			assert.Equal(t, "12345678909", r.URL.Query().Get("cpfCnpj"))
			w.Write([]byte(`{"data":[]}`))
			return
		}
		w.Write([]byte(`{"id":"cus_1"}`))
	})
	mux.HandleFunc("/payments", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&paymentBody))
		w.Write([]byte(`{"id":"pay_1","status":"PENDING","invoiceUrl":"https://asaas/i/1"}`))
	})
	mux.HandleFunc("/payments/pay_1/pixQrCode", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"encodedImage":"img","payload":"000201"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewAsaasAdapter("key", srv.URL, time.Second, zap.NewNop())
	order := testOrder(domain.PaymentMethodPix, 10000)
	req := ChargeRequest{
		Order:    order,
		Split:    vendorSplit(),
		Vendor:   &domain.Vendor{AsaasWalletID: strPtr("wallet-vendor")},
		Customer: Customer{Name: "Maria", Email: "maria@example.com", CPF: strPtr("123.456.789-09")},
	}

	payload, err := a.BuildSplit(req)
	require.NoError(t, err)
	result, err := a.CreateCharge(context.Background(), req, payload)
	require.NoError(t, err)

	assert.Equal(t, "pay_1", result.ChargeID)
	assert.Equal(t, domain.OrderStatusPending, result.Status)
	assert.Equal(t, "cus_1", paymentBody["customer"])
	assert.Equal(t, "PIX", paymentBody["billingType"])
	assert.Equal(t, 100.0, paymentBody["value"])
	assert.Equal(t, order.ID.String(), paymentBody["externalReference"])

	splits := paymentBody["split"].([]any)
	require.Len(t, splits, 1)
	assert.Equal(t, 96.0, splits[0].(map[string]any)["percentualValue"])

	img, text, err := a.FetchPixQRCode(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, "img", img)
	assert.Equal(t, "000201", text)
}

func TestAsaasCreateCharge_RejectsForeignPayload(t *testing.T) {
	a := NewAsaasAdapter("key", "http://unused", time.Second, zap.NewNop())
	_, err := a.CreateCharge(context.Background(), ChargeRequest{Order: testOrder(domain.PaymentMethodPix, 100)}, StripeSplit{})
	assert.Error(t, err)
}

func TestStripeBuildSplit(t *testing.T) {
	s := NewStripeAdapter("sk_test", "http://unused", time.Second, zap.NewNop())

	t.Run("vendor pays platform fee and commission", func(t *testing.T) {
		split := domain.SplitResult{GrossCents: 10000, PlatformFeeCents: 400, AffiliateCommissionCents: 1000, VendorNetCents: 8600}
		payload, err := s.BuildSplit(ChargeRequest{
			Order:  testOrder(domain.PaymentMethodCreditCard, 10000),
			Split:  split,
			Vendor: &domain.Vendor{StripeAccountID: strPtr("acct_vendor")},
		})
		require.NoError(t, err)
		ps := payload.(StripeSplit)
		require.NotNil(t, ps.ApplicationFeeAmount)
		assert.Equal(t, int64(1400), *ps.ApplicationFeeAmount)
		assert.Equal(t, "acct_vendor", *ps.DestinationAccount)
	})

	t.Run("owner skips application fee", func(t *testing.T) {
		payload, err := s.BuildSplit(ChargeRequest{
			Order:  testOrder(domain.PaymentMethodCreditCard, 10000),
			Split:  ownerAffiliateSplit(),
			Vendor: &domain.Vendor{StripeAccountID: strPtr("acct_owner")},
		})
		require.NoError(t, err)
		ps := payload.(StripeSplit)
		assert.Nil(t, ps.ApplicationFeeAmount)
		assert.Equal(t, "acct_owner", *ps.DestinationAccount)
	})

	t.Run("no connected account", func(t *testing.T) {
		payload, err := s.BuildSplit(ChargeRequest{
			Order:  testOrder(domain.PaymentMethodCreditCard, 10000),
			Split:  vendorSplit(),
			Vendor: &domain.Vendor{},
		})
		require.NoError(t, err)
		assert.Nil(t, payload.(StripeSplit).DestinationAccount)
	})
}

func TestStripeCreateCharge_PixReturnsQRCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "10000", r.PostForm.Get("amount"))
		assert.Equal(t, "brl", r.PostForm.Get("currency"))
		assert.Equal(t, "pix", r.PostForm.Get("payment_method_types[]"))
		assert.Equal(t, "acct_vendor", r.PostForm.Get("transfer_data[destination]"))
		assert.Equal(t, "400", r.PostForm.Get("application_fee_amount"))
		w.Write([]byte(`{"id":"pi_1","status":"requires_action","client_secret":"cs",
			"next_action":{"pix_display_qr_code":{"data":"000201","image_url_png":"https://qr.png"}}}`))
	}))
	defer srv.Close()

	s := NewStripeAdapter("sk_test", srv.URL, time.Second, zap.NewNop())
	req := ChargeRequest{
		Order:    testOrder(domain.PaymentMethodPix, 10000),
		Split:    vendorSplit(),
		Vendor:   &domain.Vendor{StripeAccountID: strPtr("acct_vendor")},
		Customer: Customer{Name: "Maria", Email: "maria@example.com"},
	}
	payload, err := s.BuildSplit(req)
	require.NoError(t, err)

	result, err := s.CreateCharge(context.Background(), req, payload)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", result.ChargeID)
	assert.Equal(t, domain.OrderStatusPending, result.Status)
	assert.Equal(t, "000201", result.PixQRCodeText)
	assert.Equal(t, "https://qr.png", result.PixQRCode)
}

func TestPushinPayBuildSplit_CapsAtHalf(t *testing.T) {
	p := NewPushinPayAdapter("tok", "http://unused", "acct_platform", "", time.Second, zap.NewNop())

	split := domain.SplitResult{
		GrossCents:               1000,
		PlatformFeeCents:         40,
		AffiliateWalletID:        strPtr("acct_aff"),
		AffiliateCommissionCents: 600,
		VendorNetCents:           360,
	}
	payload, err := p.BuildSplit(ChargeRequest{Order: testOrder(domain.PaymentMethodPix, 1000), Split: split})
	require.NoError(t, err)

	ps := payload.(PushinPaySplit)
	require.Len(t, ps.Rules, 1)
	assert.Equal(t, PushinPaySplitRule{Value: 40, AccountID: "acct_platform"}, ps.Rules[0])
	assert.Equal(t, int64(600), ps.DroppedCents)
}

func TestPushinPayBuildSplit_OwnerSkipsPlatformFee(t *testing.T) {
	p := NewPushinPayAdapter("tok", "http://unused", "acct_platform", "", time.Second, zap.NewNop())

	split := ownerAffiliateSplit()
	split.AffiliateCommissionCents = 3000
	payload, err := p.BuildSplit(ChargeRequest{Order: testOrder(domain.PaymentMethodPix, 10000), Split: split})
	require.NoError(t, err)

	ps := payload.(PushinPaySplit)
	require.Len(t, ps.Rules, 1)
	assert.Equal(t, "wallet-aff", ps.Rules[0].AccountID)
	assert.Equal(t, int64(3000), ps.Rules[0].Value)
}

func TestPushinPayBuildSplit_RejectsCard(t *testing.T) {
	p := NewPushinPayAdapter("tok", "http://unused", "", "", time.Second, zap.NewNop())
	_, err := p.BuildSplit(ChargeRequest{Order: testOrder(domain.PaymentMethodCreditCard, 1000)})
	var vErr *errors.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestPushinPayCreateCharge(t *testing.T) {
	var body pushinPayCashIn
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pix/cashIn", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"id":"px_1","status":"created","value":10000,"qr_code":"000201","qr_code_base64":"img"}`))
	}))
	defer srv.Close()

	p := NewPushinPayAdapter("tok", srv.URL, "acct_platform", "https://hooks/pushinpay", time.Second, zap.NewNop())
	req := ChargeRequest{Order: testOrder(domain.PaymentMethodPix, 10000), Split: vendorSplit()}
	payload, err := p.BuildSplit(req)
	require.NoError(t, err)

	result, err := p.CreateCharge(context.Background(), req, payload)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), body.Value)
	assert.Equal(t, "https://hooks/pushinpay", body.WebhookURL)
	require.Len(t, body.SplitRules, 1)
	assert.Equal(t, "px_1", result.ChargeID)
	assert.Equal(t, "000201", result.PixQRCodeText)
}

func TestClient_NonSuccessIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"description":"invalid wallet"}]}`))
	}))
	defer srv.Close()

	c := NewClient(domain.GatewayAsaas, srv.URL, nil, time.Second, zap.NewNop())
	err := c.DoJSON(context.Background(), http.MethodPost, "/payments", map[string]string{}, nil)

	var gwErr *errors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Contains(t, gwErr.Message, "invalid wallet")
}

func TestClient_TimeoutIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(domain.GatewayStripe, srv.URL, nil, 50*time.Millisecond, zap.NewNop())
	err := c.DoJSON(context.Background(), http.MethodGet, "/slow", nil, nil)

	var gwErr *errors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, 0, gwErr.StatusCode)
}

func TestSupportsMethod(t *testing.T) {
	assert.True(t, SupportsMethod(domain.GatewayAsaas, domain.PaymentMethodCreditCard))
	assert.True(t, SupportsMethod(domain.GatewayPushinPay, domain.PaymentMethodPix))
	assert.False(t, SupportsMethod(domain.GatewayPushinPay, domain.PaymentMethodCreditCard))
	assert.False(t, SupportsMethod(domain.Gateway("paypal"), domain.PaymentMethodPix))
}

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments/pay_9":
			json.NewEncoder(w).Encode(map[string]string{"id": "pay_9", "status": "RECEIVED"})
		case "/v1/payment_intents/pi_9":
			json.NewEncoder(w).Encode(map[string]string{"id": "pi_9", "status": "succeeded"})
		case "/transactions/px_9":
			json.NewEncoder(w).Encode(map[string]string{"id": "px_9", "status": "expired"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	logger := zap.NewNop()
	fetchers := map[string]StatusFetcher{
		"pay_9": NewAsaasAdapter("key", srv.URL, time.Second, logger),
		"pi_9":  NewStripeAdapter("sk", srv.URL, time.Second, logger),
		"px_9":  NewPushinPayAdapter("tok", srv.URL, "", "", time.Second, logger),
	}
	want := map[string]string{"pay_9": "RECEIVED", "pi_9": "succeeded", "px_9": "expired"}

	for id, f := range fetchers {
		status, err := f.FetchStatus(context.Background(), id)
		require.NoError(t, err, id)
		assert.Equal(t, want[id], status)
	}

	_, err := fetchers["pay_9"].FetchStatus(context.Background(), "missing")
	var gwErr *errors.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
}
