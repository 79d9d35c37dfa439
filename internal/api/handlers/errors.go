package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/risecheckout/orderengine/internal/ratelimit"
	"github.com/risecheckout/orderengine/pkg/errors"
)

// respondError maps the error taxonomy onto HTTP statuses. Internal failures
// are logged and reported without detail.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		validation *errors.ValidationError
		notFound   *errors.ErrNotFound
		unauth     *errors.ErrUnauthorized
		transition *errors.ErrInvalidStateTransition
		limited    *errors.RateLimitExceeded
		gwErr      *errors.GatewayError
		encErr     *errors.EncryptionFailure
	)

	switch {
	case stderrors.As(err, &validation):
		fail(c, http.StatusBadRequest, validation.Error())
	case stderrors.As(err, &notFound):
		fail(c, http.StatusNotFound, notFound.Resource+" not found")
	case stderrors.As(err, &unauth):
		fail(c, http.StatusUnauthorized, "unauthorized")
	case stderrors.As(err, &transition):
		fail(c, http.StatusConflict, "order is "+string(transition.From))
	case stderrors.As(err, &limited):
		c.Header("Retry-After", strconv.Itoa(ratelimit.RetryAfterSeconds(limited.RetryAfter)))
		fail(c, http.StatusTooManyRequests, limited.Error())
	case stderrors.As(err, &gwErr):
		logger.Warn("Gateway charge failed", zap.Error(err))
		fail(c, http.StatusBadGateway, "payment gateway error")
	case stderrors.As(err, &encErr):
		logger.Error("Customer data encryption failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal error")
	default:
		logger.Error("Request failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal error")
	}
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}
