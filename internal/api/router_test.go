package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/config"
	"github.com/risecheckout/orderengine/internal/gateway"
	"github.com/risecheckout/orderengine/internal/ratelimit"
	"github.com/risecheckout/orderengine/internal/service"
)

type stubService struct {
	calls int
}

func (s *stubService) CreateOrder(_ context.Context, _ service.CreateOrderRequest) (*service.CreateOrderResult, error) {
	s.calls++
	return &service.CreateOrderResult{OrderID: uuid.New(), AmountCents: 100, AccessToken: "tok"}, nil
}

func (s *stubService) GetOrder(_ context.Context, id uuid.UUID, _ string) (*service.OrderView, error) {
	return &service.OrderView{ID: id}, nil
}

func (s *stubService) RetryCharge(_ context.Context, _ uuid.UUID, _ string) (*gateway.ChargeResult, error) {
	return &gateway.ChargeResult{ChargeID: "c"}, nil
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, assert.AnError
}

const orderBody = `{"product_id":"6f1c3a52-9a4e-4d2e-8f57-1f0f6b2a8c11","customer_name":"Ana","customer_email":"ana@example.com","gateway":"asaas","payment_method":"pix"}`

func postOrder(r http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/orders", bytes.NewBufferString(orderBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(&config.Config{}, &stubService{}, ratelimit.NewMemoryLimiter(ratelimit.Config{}), zap.NewNop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_RateLimitsOrderCreation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &stubService{}
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{MaxAttempts: 2, Window: time.Minute, Block: 2 * time.Minute})
	r := NewRouter(&config.Config{}, svc, limiter, zap.NewNop())

	assert.Equal(t, http.StatusOK, postOrder(r).Code)
	assert.Equal(t, http.StatusOK, postOrder(r).Code)

	w := postOrder(r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "120", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Equal(t, 2, svc.calls)
}

func TestRouter_LimiterFailureAllows(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &stubService{}
	r := NewRouter(&config.Config{}, svc, failingLimiter{}, zap.NewNop())

	assert.Equal(t, http.StatusOK, postOrder(r).Code)
	assert.Equal(t, 1, svc.calls)
}
