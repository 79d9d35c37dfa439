package errors

import (
	"fmt"
	"time"

	"github.com/risecheckout/orderengine/internal/domain"
)

// ErrNotFound is returned when a resource does not exist
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized is returned when an access token does not match
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	return e.Message
}

// ErrInvalidStateTransition is returned when an order status change is not allowed
type ErrInvalidStateTransition struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// ValidationError rejects the whole cart. Nothing is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RateLimitExceeded is returned before any pipeline stage runs
type RateLimitExceeded struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("too many attempts, retry after %ds", int(e.RetryAfter.Seconds()))
}

// CouponInvalid degrades the cart to no discount
type CouponInvalid struct {
	Reason string
}

func (e *CouponInvalid) Error() string {
	return "coupon invalid: " + e.Reason
}

// AffiliateIneligible degrades the order to no commission
type AffiliateIneligible struct {
	Reason string
}

func (e *AffiliateIneligible) Error() string {
	return "affiliate ineligible: " + e.Reason
}

// EncryptionFailure aborts order creation. PII is never stored in plaintext.
type EncryptionFailure struct {
	Err error
}

func (e *EncryptionFailure) Error() string {
	return fmt.Sprintf("failed to encrypt customer data: %v", e.Err)
}

func (e *EncryptionFailure) Unwrap() error {
	return e.Err
}

// GatewayError is fatal to the charge step only; the order stays pending
type GatewayError struct {
	Gateway    domain.Gateway
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s gateway error (status %d): %s", e.Gateway, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s gateway error: %s: %v", e.Gateway, e.Message, e.Err)
	}
	return fmt.Sprintf("%s gateway error: %s", e.Gateway, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
