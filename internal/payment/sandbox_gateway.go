package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
)

// Payer references the sandbox treats specially.
const (
	SandboxDeclinePayer = "pm_sandbox_decline"
	SandboxExpiredPayer = "pm_sandbox_expired"
)

type sandboxIntent struct {
	amount   int64
	status   paymentDomain.GatewayStatus
	refunded int64
	expired  bool
}

// SandboxGateway is an in-process gateway for local development. It honors idempotency keys
// on authorize and never talks to the network.
type SandboxGateway struct {
	mu      sync.Mutex
	intents map[string]*sandboxIntent
	byKey   map[string]string
}

// NewSandboxGateway creates an empty sandbox.
func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		intents: make(map[string]*sandboxIntent),
		byKey:   make(map[string]string),
	}
}

func (g *SandboxGateway) Authorize(ctx context.Context, in paymentDomain.AuthorizeInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if ref, ok := g.byKey[in.IdempotencyKey]; ok {
		return ref, nil
	}
	if strings.HasPrefix(in.PayerRef, SandboxDeclinePayer) {
		return "", fmt.Errorf("%w: sandbox card declined", paymentDomain.ErrDeclined)
	}
	ref := "sbx_" + uuid.NewString()
	g.intents[ref] = &sandboxIntent{
		amount:  in.Amount,
		status:  paymentDomain.GatewayStatusHeld,
		expired: strings.HasPrefix(in.PayerRef, SandboxExpiredPayer),
	}
	g.byKey[in.IdempotencyKey] = ref
	return ref, nil
}

func (g *SandboxGateway) Capture(ctx context.Context, gatewayRef, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, err := g.intent(gatewayRef)
	if err != nil {
		return err
	}
	if it.expired {
		return fmt.Errorf("%w: sandbox authorization expired", paymentDomain.ErrHoldExpired)
	}
	switch it.status {
	case paymentDomain.GatewayStatusCaptured:
		return nil
	case paymentDomain.GatewayStatusHeld:
		it.status = paymentDomain.GatewayStatusCaptured
		return nil
	}
	return fmt.Errorf("%w: intent is %s", paymentDomain.ErrDeclined, it.status)
}

func (g *SandboxGateway) Release(ctx context.Context, gatewayRef, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, err := g.intent(gatewayRef)
	if err != nil {
		return err
	}
	switch it.status {
	case paymentDomain.GatewayStatusCanceled:
		return nil
	case paymentDomain.GatewayStatusHeld:
		it.status = paymentDomain.GatewayStatusCanceled
		return nil
	}
	return fmt.Errorf("%w: intent is %s", paymentDomain.ErrDeclined, it.status)
}

func (g *SandboxGateway) Refund(ctx context.Context, gatewayRef string, amount int64, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, err := g.intent(gatewayRef)
	if err != nil {
		return err
	}
	if it.status != paymentDomain.GatewayStatusCaptured && it.status != paymentDomain.GatewayStatusRefunded {
		return fmt.Errorf("%w: intent is %s", paymentDomain.ErrDeclined, it.status)
	}
	if it.refunded+amount > it.amount {
		return fmt.Errorf("%w: refund exceeds captured amount", paymentDomain.ErrDeclined)
	}
	it.refunded += amount
	if it.refunded == it.amount {
		it.status = paymentDomain.GatewayStatusRefunded
	}
	return nil
}

func (g *SandboxGateway) Status(ctx context.Context, gatewayRef string) (paymentDomain.GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	it, err := g.intent(gatewayRef)
	if err != nil {
		return "", err
	}
	return it.status, nil
}

func (g *SandboxGateway) intent(ref string) (*sandboxIntent, error) {
	it, ok := g.intents[ref]
	if !ok {
		return nil, fmt.Errorf("%w: unknown intent %s", paymentDomain.ErrDeclined, ref)
	}
	return it, nil
}
