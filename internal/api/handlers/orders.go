package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/gateway"
	"github.com/risecheckout/orderengine/internal/service"
)

// AccessTokenHeader carries the per-order token returned at creation
const AccessTokenHeader = "X-Access-Token"

// OrderService is the checkout pipeline as seen by the HTTP layer
type OrderService interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, token string) (*service.OrderView, error)
	RetryCharge(ctx context.Context, orderID uuid.UUID, token string) (*gateway.ChargeResult, error)
}

// CreateOrderResponse is returned whenever an order exists, including when
// the charge step failed. ChargeError then tells the client to retry the charge.
type CreateOrderResponse struct {
	Success     bool                  `json:"success"`
	OrderID     string                `json:"order_id"`
	AmountCents int64                 `json:"amount_cents"`
	AccessToken string                `json:"access_token"`
	SplitData   service.SplitData     `json:"splitData"`
	Duplicate   bool                  `json:"duplicate,omitempty"`
	Charge      *gateway.ChargeResult `json:"charge,omitempty"`
	ChargeError string                `json:"charge_error,omitempty"`
}

// HandleCreateOrder handles POST /v1/orders
func HandleCreateOrder(svc OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
			return
		}
		req.CustomerIP = c.ClientIP()

		result, err := svc.CreateOrder(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		resp := CreateOrderResponse{
			Success:     true,
			OrderID:     result.OrderID.String(),
			AmountCents: result.AmountCents,
			AccessToken: result.AccessToken,
			SplitData:   result.Split,
			Duplicate:   result.Duplicate,
			Charge:      result.Charge,
		}
		if result.ChargeError != nil {
			logger.Warn("Order created but charge failed",
				zap.String("order_id", resp.OrderID),
				zap.Error(result.ChargeError),
			)
			resp.ChargeError = "payment gateway error"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// HandleGetOrder handles GET /v1/orders/:id
func HandleGetOrder(svc OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid order ID")
			return
		}

		view, err := svc.GetOrder(c.Request.Context(), orderID, c.GetHeader(AccessTokenHeader))
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "order": view})
	}
}

// HandleRetryCharge handles POST /v1/orders/:id/charge
func HandleRetryCharge(svc OrderService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid order ID")
			return
		}

		charge, err := svc.RetryCharge(c.Request.Context(), orderID, c.GetHeader(AccessTokenHeader))
		if err != nil {
			respondError(c, logger, err)
			return
		}

		resp := gin.H{
			"success":   true,
			"charge_id": charge.ChargeID,
			"status":    charge.Status,
		}
		if charge.PixQRCode != "" {
			resp["pix_qr_code"] = charge.PixQRCode
		}
		if charge.PixQRCodeText != "" {
			resp["pix_qr_code_text"] = charge.PixQRCodeText
		}
		if charge.ClientSecret != "" {
			resp["client_secret"] = charge.ClientSecret
		}
		c.JSON(http.StatusOK, resp)
	}
}
