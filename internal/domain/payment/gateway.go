package payment

import (
	"context"
	"errors"
)

var (
	// ErrDeclined means the gateway definitively refused the operation.
	ErrDeclined = errors.New("payment declined by gateway")
	// ErrHoldExpired means the authorization can no longer be captured.
	ErrHoldExpired = errors.New("authorization expired")
)

// AuthorizeInput describes a hold to place.
type AuthorizeInput struct {
	IdempotencyKey string
	Amount         int64
	Currency       string
	PayerRef       string
	Metadata       map[string]string
}

// GatewayStatus is the gateway's view of a payment.
type GatewayStatus string

const (
	GatewayStatusHeld     GatewayStatus = "held"
	GatewayStatusCaptured GatewayStatus = "captured"
	GatewayStatusCanceled GatewayStatus = "canceled"
	GatewayStatusFailed   GatewayStatus = "failed"
	GatewayStatusPending  GatewayStatus = "pending"
	GatewayStatusRefunded GatewayStatus = "refunded"
)

// Gateway is the external payment processor. Errors wrapping ErrDeclined or ErrHoldExpired
// are definitive; anything else leaves the outcome unknown.
type Gateway interface {
	Authorize(ctx context.Context, in AuthorizeInput) (gatewayRef string, err error)
	Capture(ctx context.Context, gatewayRef, idempotencyKey string) error
	Release(ctx context.Context, gatewayRef, idempotencyKey string) error
	Refund(ctx context.Context, gatewayRef string, amount int64, idempotencyKey string) error
	Status(ctx context.Context, gatewayRef string) (GatewayStatus, error)
}
