package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
	"github.com/vroomshare/service-booking/pkg/domain"
)

// Config holds the coordinator's timeouts.
type Config struct {
	AuthorizeTimeout time.Duration
	CaptureTimeout   time.Duration
	CallTimeout      time.Duration
	// StatusPollInterval is the first backoff interval of ResolveCapture and
	// StatusPollMaxElapsed bounds the whole loop.
	StatusPollInterval   time.Duration
	StatusPollMaxElapsed time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		AuthorizeTimeout:     10 * time.Second,
		CaptureTimeout:       15 * time.Second,
		CallTimeout:          10 * time.Second,
		StatusPollInterval:   500 * time.Millisecond,
		StatusPollMaxElapsed: 30 * time.Second,
	}
}

// AuthorizeRequest describes a hold to place for a booking.
type AuthorizeRequest struct {
	BookingID uuid.UUID
	PayerRef  string
	Amount    int64
	Currency  string
}

// CaptureResolution is the outcome of resolving an uncertain capture.
type CaptureResolution string

const (
	ResolutionCaptured    CaptureResolution = "captured"
	ResolutionFailed      CaptureResolution = "failed"
	ResolutionNotCaptured CaptureResolution = "not_captured"
	ResolutionUnknown     CaptureResolution = "unknown"
)

// BookingLookup reports which booking ids have been persisted.
type BookingLookup interface {
	ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}

// Coordinator wraps a payment gateway. Every handle accepts exactly one terminal operation,
// claimed through an optimistic state update before the gateway is called. Charge-creating
// calls are never retried here.
type Coordinator struct {
	gateway paymentDomain.Gateway
	holds   paymentDomain.HoldRepository
	cfg     Config
	logger  *zap.Logger
}

// NewCoordinator creates a new Coordinator.
func NewCoordinator(
	gateway paymentDomain.Gateway,
	holds paymentDomain.HoldRepository,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	def := DefaultConfig()
	if cfg.AuthorizeTimeout <= 0 {
		cfg.AuthorizeTimeout = def.AuthorizeTimeout
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = def.CaptureTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.StatusPollInterval <= 0 {
		cfg.StatusPollInterval = def.StatusPollInterval
	}
	if cfg.StatusPollMaxElapsed <= 0 {
		cfg.StatusPollMaxElapsed = def.StatusPollMaxElapsed
	}
	return &Coordinator{gateway: gateway, holds: holds, cfg: cfg, logger: logger}
}

// Authorize places a hold. A decline, timeout or any other gateway failure is a decline.
func (c *Coordinator) Authorize(ctx context.Context, req AuthorizeRequest) (*paymentDomain.Hold, error) {
	if req.Amount <= 0 {
		return nil, domain.NewValidationError("authorization amount must be positive")
	}
	if req.PayerRef == "" {
		return nil, domain.NewValidationError("payer reference is required")
	}

	holdID := uuid.New()
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.AuthorizeTimeout)
	defer cancel()

	ref, err := c.gateway.Authorize(callCtx, paymentDomain.AuthorizeInput{
		IdempotencyKey: holdID.String(),
		Amount:         req.Amount,
		Currency:       req.Currency,
		PayerRef:       req.PayerRef,
		Metadata: map[string]string{
			"booking_id": req.BookingID.String(),
			"hold_id":    holdID.String(),
		},
	})
	if err != nil {
		msg := "payment authorization was declined"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "payment authorization timed out"
		}
		c.logger.Warn("authorization failed",
			zap.String("booking_id", req.BookingID.String()),
			zap.Int64("amount", req.Amount),
			zap.Error(err),
		)
		return nil, domain.NewPaymentError(domain.CodePaymentDeclined, msg, err)
	}

	now := time.Now().UTC()
	hold := &paymentDomain.Hold{
		ID:         holdID,
		BookingID:  req.BookingID,
		GatewayRef: ref,
		Amount:     req.Amount,
		Currency:   req.Currency,
		PayerRef:   req.PayerRef,
		State:      paymentDomain.HoldHeld,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.holds.Insert(ctx, hold); err != nil {
		c.cancelUnrecorded(ref, holdID)
		return nil, domain.NewPersistenceError("failed to record payment hold", err)
	}

	c.logger.Info("payment authorized",
		zap.String("booking_id", req.BookingID.String()),
		zap.String("hold_id", holdID.String()),
		zap.Int64("amount", req.Amount),
	)
	return hold, nil
}

// cancelUnrecorded voids a hold that could not be stored. The caller's context may already
// be done, so a fresh one is used.
func (c *Coordinator) cancelUnrecorded(ref string, holdID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
	defer cancel()
	if err := c.gateway.Release(ctx, ref, holdID.String()+":release"); err != nil {
		c.logger.Error("failed to void unrecorded hold; it will expire at the gateway",
			zap.String("hold_id", holdID.String()),
			zap.Error(err),
		)
	}
}

// Capture converts a hold into a charge. A definitive failure returns CaptureFailed; an
// unknown outcome marks the hold capture_unknown and returns PaymentPending.
func (c *Coordinator) Capture(ctx context.Context, holdID uuid.UUID) (*paymentDomain.Hold, error) {
	hold, err := c.claim(ctx, holdID, paymentDomain.HoldCapturing, paymentDomain.HoldHeld)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CaptureTimeout)
	defer cancel()
	gwErr := c.gateway.Capture(callCtx, hold.GatewayRef, holdID.String()+":capture")

	switch {
	case gwErr == nil:
		hold.State = paymentDomain.HoldCaptured
		hold.LastError = ""
		if err := c.finish(ctx, hold, paymentDomain.HoldCapturing); err != nil {
			// The charge exists but is not recorded; the capture poll will pick it up.
			c.logger.Error("captured but failed to record hold state",
				zap.String("hold_id", holdID.String()), zap.Error(err))
			return nil, domain.NewPaymentError(domain.CodePaymentPending, "payment capture is being confirmed", err)
		}
		c.logger.Info("payment captured", zap.String("hold_id", holdID.String()), zap.Int64("amount", hold.Amount))
		return hold, nil

	case errors.Is(gwErr, paymentDomain.ErrDeclined), errors.Is(gwErr, paymentDomain.ErrHoldExpired):
		hold.State = paymentDomain.HoldCaptureFailed
		hold.LastError = gwErr.Error()
		if err := c.finish(ctx, hold, paymentDomain.HoldCapturing); err != nil {
			c.logger.Error("failed to record capture failure", zap.String("hold_id", holdID.String()), zap.Error(err))
		}
		return nil, domain.NewPaymentError(domain.CodeCaptureFailed, "payment capture failed", gwErr)

	default:
		hold.State = paymentDomain.HoldCaptureUnknown
		hold.LastError = gwErr.Error()
		if err := c.finish(ctx, hold, paymentDomain.HoldCapturing); err != nil {
			c.logger.Error("failed to record unknown capture", zap.String("hold_id", holdID.String()), zap.Error(err))
		}
		c.logger.Warn("capture outcome unknown",
			zap.String("hold_id", holdID.String()), zap.Error(gwErr))
		return nil, domain.NewPaymentError(domain.CodePaymentPending, "payment capture is being confirmed", gwErr)
	}
}

// Release cancels a hold without charging. On failure the hold returns to held so the
// release can be retried out of band.
func (c *Coordinator) Release(ctx context.Context, holdID uuid.UUID) (*paymentDomain.Hold, error) {
	hold, err := c.claim(ctx, holdID, paymentDomain.HoldReleasing, paymentDomain.HoldHeld)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	if gwErr := c.gateway.Release(callCtx, hold.GatewayRef, holdID.String()+":release"); gwErr != nil {
		hold.State = paymentDomain.HoldHeld
		hold.LastError = gwErr.Error()
		if err := c.finish(ctx, hold, paymentDomain.HoldReleasing); err != nil {
			c.logger.Error("failed to revert releasing hold", zap.String("hold_id", holdID.String()), zap.Error(err))
		}
		return nil, domain.NewPaymentError(domain.CodeReleaseFailed, "failed to release payment hold", gwErr)
	}

	hold.State = paymentDomain.HoldReleased
	hold.LastError = ""
	if err := c.finish(ctx, hold, paymentDomain.HoldReleasing); err != nil {
		return nil, domain.NewPersistenceError("released but failed to record hold state", err)
	}
	c.logger.Info("payment hold released", zap.String("hold_id", holdID.String()))
	return hold, nil
}

// Refund reverses a captured charge, fully when amount is nil.
func (c *Coordinator) Refund(ctx context.Context, holdID uuid.UUID, amount *int64) (*paymentDomain.Hold, error) {
	current, err := c.holds.FindByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	refundAmount := current.Amount
	if amount != nil {
		refundAmount = *amount
	}
	if refundAmount <= 0 || refundAmount > current.Amount {
		return nil, domain.NewValidationError(fmt.Sprintf("refund amount must be between 1 and %d", current.Amount))
	}

	hold, err := c.claim(ctx, holdID, paymentDomain.HoldRefunding, paymentDomain.HoldCaptured)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	if gwErr := c.gateway.Refund(callCtx, hold.GatewayRef, refundAmount, holdID.String()+":refund"); gwErr != nil {
		hold.State = paymentDomain.HoldCaptured
		hold.LastError = gwErr.Error()
		if err := c.finish(ctx, hold, paymentDomain.HoldRefunding); err != nil {
			c.logger.Error("failed to revert refunding hold", zap.String("hold_id", holdID.String()), zap.Error(err))
		}
		return nil, domain.NewPaymentError(domain.CodeRefundFailed, "failed to refund payment", gwErr)
	}

	hold.RefundedAmount = refundAmount
	hold.LastError = ""
	hold.State = paymentDomain.HoldRefunded
	if refundAmount < hold.Amount {
		hold.State = paymentDomain.HoldPartiallyRefunded
	}
	if err := c.finish(ctx, hold, paymentDomain.HoldRefunding); err != nil {
		return nil, domain.NewPersistenceError("refunded but failed to record hold state", err)
	}
	c.logger.Info("payment refunded",
		zap.String("hold_id", holdID.String()),
		zap.Int64("amount", refundAmount),
		zap.String("state", string(hold.State)),
	)
	return hold, nil
}

// ResolveCapture polls the gateway for a hold whose capture outcome is unknown. The status
// read is retried with exponential backoff; the capture itself is never re-issued.
func (c *Coordinator) ResolveCapture(ctx context.Context, holdID uuid.UUID) (CaptureResolution, error) {
	hold, err := c.holds.FindByID(ctx, holdID)
	if err != nil {
		return ResolutionUnknown, err
	}
	switch hold.State {
	case paymentDomain.HoldCaptured:
		return ResolutionCaptured, nil
	case paymentDomain.HoldCaptureFailed:
		return ResolutionFailed, nil
	case paymentDomain.HoldCaptureUnknown, paymentDomain.HoldCapturing:
	default:
		return ResolutionUnknown, domain.NewInvalidStateError(string(hold.State), string(paymentDomain.HoldCaptured))
	}

	var status paymentDomain.GatewayStatus
	poll := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
		s, err := c.gateway.Status(callCtx, hold.GatewayRef)
		if err != nil {
			return err
		}
		if s == paymentDomain.GatewayStatusPending {
			return errors.New("capture still pending at gateway")
		}
		status = s
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.StatusPollInterval
	eb.MaxElapsedTime = c.cfg.StatusPollMaxElapsed
	notify := func(err error, next time.Duration) {
		c.logger.Debug("capture status not yet known",
			zap.String("hold_id", holdID.String()), zap.Duration("retry_in", next), zap.Error(err))
	}
	if err := backoff.RetryNotify(poll, backoff.WithContext(eb, ctx), notify); err != nil {
		return ResolutionUnknown, nil
	}

	from := hold.State
	var resolution CaptureResolution
	switch status {
	case paymentDomain.GatewayStatusCaptured, paymentDomain.GatewayStatusRefunded:
		hold.State = paymentDomain.HoldCaptured
		resolution = ResolutionCaptured
	case paymentDomain.GatewayStatusHeld:
		hold.State = paymentDomain.HoldHeld
		resolution = ResolutionNotCaptured
	default:
		hold.State = paymentDomain.HoldCaptureFailed
		resolution = ResolutionFailed
	}
	hold.LastError = ""
	if err := c.finish(ctx, hold, from); err != nil {
		return ResolutionUnknown, err
	}
	c.logger.Info("capture resolved", zap.String("hold_id", holdID.String()), zap.String("resolution", string(resolution)))
	return resolution, nil
}

// MarkCaptureOutcome records a capture result reported by a gateway event.
func (c *Coordinator) MarkCaptureOutcome(ctx context.Context, holdID uuid.UUID, succeeded bool, reason string) (CaptureResolution, error) {
	hold, err := c.holds.FindByID(ctx, holdID)
	if err != nil {
		return ResolutionUnknown, err
	}
	switch hold.State {
	case paymentDomain.HoldCaptured:
		return ResolutionCaptured, nil
	case paymentDomain.HoldCaptureFailed:
		return ResolutionFailed, nil
	case paymentDomain.HoldCaptureUnknown, paymentDomain.HoldCapturing:
	default:
		return ResolutionUnknown, domain.NewInvalidStateError(string(hold.State), "capture outcome")
	}

	from := hold.State
	resolution := ResolutionFailed
	hold.State = paymentDomain.HoldCaptureFailed
	hold.LastError = reason
	if succeeded {
		resolution = ResolutionCaptured
		hold.State = paymentDomain.HoldCaptured
		hold.LastError = ""
	}
	if err := c.finish(ctx, hold, from); err != nil {
		return ResolutionUnknown, err
	}
	return resolution, nil
}

// PendingCaptures lists holds whose capture outcome still has to be resolved.
func (c *Coordinator) PendingCaptures(ctx context.Context, olderThan time.Duration, limit int) ([]*paymentDomain.Hold, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	unknown, err := c.holds.FindByState(ctx, paymentDomain.HoldCaptureUnknown, time.Now().UTC(), limit)
	if err != nil {
		return nil, err
	}
	stuck, err := c.holds.FindByState(ctx, paymentDomain.HoldCapturing, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return append(unknown, stuck...), nil
}

// ReleaseOrphans releases held handles older than olderThan whose booking row was never
// written, e.g. because the caller went away between authorize and insert.
func (c *Coordinator) ReleaseOrphans(ctx context.Context, olderThan time.Duration, bookings BookingLookup) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	holds, err := c.holds.FindByState(ctx, paymentDomain.HoldHeld, cutoff, 100)
	if err != nil {
		return 0, fmt.Errorf("failed to list held payments: %w", err)
	}
	if len(holds) == 0 {
		return 0, nil
	}

	ids := make([]uuid.UUID, len(holds))
	for i, h := range holds {
		ids[i] = h.BookingID
	}
	existing, err := bookings.ExistingIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to look up bookings: %w", err)
	}

	released := 0
	for _, h := range holds {
		if existing[h.BookingID] {
			continue
		}
		if _, err := c.Release(ctx, h.ID); err != nil {
			c.logger.Warn("failed to release orphaned hold", zap.String("hold_id", h.ID.String()), zap.Error(err))
			continue
		}
		released++
	}
	return released, nil
}

// FindHold returns a hold by id.
func (c *Coordinator) FindHold(ctx context.Context, holdID uuid.UUID) (*paymentDomain.Hold, error) {
	return c.holds.FindByID(ctx, holdID)
}

// claim moves a hold from one of from into the in-flight state to.
func (c *Coordinator) claim(ctx context.Context, holdID uuid.UUID, to paymentDomain.HoldState, from ...paymentDomain.HoldState) (*paymentDomain.Hold, error) {
	hold, err := c.holds.FindByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, s := range from {
		if hold.State == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, domain.NewInvalidStateError(string(hold.State), string(to))
	}
	hold.State = to
	hold.UpdatedAt = time.Now().UTC()
	if err := c.holds.UpdateFrom(ctx, hold, from...); err != nil {
		return nil, err
	}
	return hold, nil
}

func (c *Coordinator) finish(ctx context.Context, hold *paymentDomain.Hold, from paymentDomain.HoldState) error {
	hold.UpdatedAt = time.Now().UTC()
	// The gateway call may have consumed the caller's deadline; recording the outcome must
	// still happen.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.CallTimeout)
	defer cancel()
	return c.holds.UpdateFrom(writeCtx, hold, from)
}
