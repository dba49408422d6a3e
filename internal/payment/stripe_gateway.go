package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
)

// StripeGateway places holds as manual-capture PaymentIntents.
type StripeGateway struct {
	api        *client.API
	minorUnits int64
	logger     *zap.Logger
}

// NewStripeGateway creates a gateway for the given secret key. Amounts are whole currency
// units and are multiplied by minorUnits for Stripe.
func NewStripeGateway(secretKey string, minorUnits int64, logger *zap.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	if minorUnits <= 0 {
		minorUnits = 100
	}
	return &StripeGateway{api: api, minorUnits: minorUnits, logger: logger}
}

// Authorize creates and confirms a PaymentIntent with capture_method=manual.
func (g *StripeGateway) Authorize(ctx context.Context, in paymentDomain.AuthorizeInput) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(in.Amount * g.minorUnits),
		Currency:           stripe.String(strings.ToLower(in.Currency)),
		PaymentMethod:      stripe.String(in.PayerRef),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Confirm:            stripe.Bool(true),
	}
	params.Context = ctx
	params.SetIdempotencyKey(in.IdempotencyKey)
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return "", classifyStripeError(err)
	}
	if pi.Status != stripe.PaymentIntentStatusRequiresCapture {
		g.logger.Warn("payment intent not capturable after confirm",
			zap.String("payment_intent", pi.ID), zap.String("status", string(pi.Status)))
		cancelParams := &stripe.PaymentIntentCancelParams{}
		cancelParams.Context = ctx
		if _, cerr := g.api.PaymentIntents.Cancel(pi.ID, cancelParams); cerr != nil {
			g.logger.Error("failed to cancel uncapturable payment intent",
				zap.String("payment_intent", pi.ID), zap.Error(cerr))
		}
		return "", fmt.Errorf("%w: payment intent status %s", paymentDomain.ErrDeclined, pi.Status)
	}
	return pi.ID, nil
}

// Capture captures the full authorized amount.
func (g *StripeGateway) Capture(ctx context.Context, gatewayRef, idempotencyKey string) error {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	if _, err := g.api.PaymentIntents.Capture(gatewayRef, params); err != nil {
		return classifyStripeError(err)
	}
	return nil
}

// Release cancels an uncaptured PaymentIntent.
func (g *StripeGateway) Release(ctx context.Context, gatewayRef, idempotencyKey string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	if _, err := g.api.PaymentIntents.Cancel(gatewayRef, params); err != nil {
		return classifyStripeError(err)
	}
	return nil
}

// Refund refunds amount of a captured PaymentIntent.
func (g *StripeGateway) Refund(ctx context.Context, gatewayRef string, amount int64, idempotencyKey string) error {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(gatewayRef),
		Amount:        stripe.Int64(amount * g.minorUnits),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)
	if _, err := g.api.Refunds.New(params); err != nil {
		return classifyStripeError(err)
	}
	return nil
}

// Status reads the PaymentIntent.
func (g *StripeGateway) Status(ctx context.Context, gatewayRef string) (paymentDomain.GatewayStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(gatewayRef, params)
	if err != nil {
		return "", classifyStripeError(err)
	}
	return mapIntentStatus(pi.Status), nil
}

func mapIntentStatus(s stripe.PaymentIntentStatus) paymentDomain.GatewayStatus {
	switch s {
	case stripe.PaymentIntentStatusRequiresCapture:
		return paymentDomain.GatewayStatusHeld
	case stripe.PaymentIntentStatusSucceeded:
		return paymentDomain.GatewayStatusCaptured
	case stripe.PaymentIntentStatusCanceled:
		return paymentDomain.GatewayStatusCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return paymentDomain.GatewayStatusFailed
	}
	return paymentDomain.GatewayStatusPending
}

// classifyStripeError maps definitive Stripe rejections to ErrDeclined or ErrHoldExpired.
// Network failures, rate limits and 5xx responses stay unclassified, meaning unknown.
func classifyStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}
	if se.Code == stripe.ErrorCodeChargeExpiredForCapture {
		return fmt.Errorf("%w: %s", paymentDomain.ErrHoldExpired, se.Msg)
	}
	if se.Type == stripe.ErrorTypeCard {
		return fmt.Errorf("%w: %s", paymentDomain.ErrDeclined, se.Msg)
	}
	if se.HTTPStatusCode >= http.StatusBadRequest && se.HTTPStatusCode < http.StatusInternalServerError &&
		se.HTTPStatusCode != http.StatusTooManyRequests && se.HTTPStatusCode != http.StatusConflict {
		return fmt.Errorf("%w: %s", paymentDomain.ErrDeclined, se.Msg)
	}
	return err
}
