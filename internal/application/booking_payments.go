package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
	"github.com/vroomshare/service-booking/internal/payment"
	"github.com/vroomshare/service-booking/pkg/domain"
)

// captureAndConfirm charges the hold and only then moves the booking to confirmed. A
// definitive capture failure is recorded on the booking; an unknown outcome leaves it for
// the reconciler.
func (s *BookingService) captureAndConfirm(
	ctx context.Context,
	bk *bookingDomain.Booking,
	edge bookingDomain.Edge,
	actor bookingDomain.Actor,
	payload bookingDomain.TransitionPayload,
) error {
	if bk.PaymentStatus() == bookingDomain.PaymentFailed {
		if err := s.reauthorize(ctx, bk, payload.PayerRef); err != nil {
			return err
		}
	}
	holdID, err := holdIDOf(bk)
	if err != nil {
		return err
	}

	if _, err := s.payments.Capture(ctx, holdID); err != nil {
		if domain.HasCode(err, domain.CodeCaptureFailed) {
			if recErr := s.recordCaptureFailure(ctx, bk); recErr != nil {
				s.logger.Error("failed to record capture failure on booking",
					zap.String("booking_id", bk.ID().String()), zap.Error(recErr))
			}
		}
		return err
	}

	evt, err := s.persist(ctx, bk, edge, actor, payload, &bookingDomain.PaymentChange{Status: bookingDomain.PaymentCharged})
	if err != nil {
		s.logger.Error("payment captured but booking was not confirmed",
			zap.String("booking_id", bk.ID().String()),
			zap.String("hold_id", holdID.String()),
			zap.Error(err),
		)
		s.recordDiscrepancy(ctx, bk.ID(), holdID, paymentDomain.OperationConfirm, nil, err)
		return err
	}
	s.emit(ctx, evt)
	return nil
}

// transitionAndRelease commits a release edge first and then releases the hold. The money
// stays held if the release fails, which a discrepancy retry resolves.
func (s *BookingService) transitionAndRelease(
	ctx context.Context,
	bk *bookingDomain.Booking,
	edge bookingDomain.Edge,
	actor bookingDomain.Actor,
	payload bookingDomain.TransitionPayload,
) error {
	wasHeld := bk.PaymentStatus() == bookingDomain.PaymentPreauthorized
	evt, err := s.persist(ctx, bk, edge, actor, payload, nil)
	if err != nil {
		return err
	}
	if wasHeld {
		if status, ok := s.releaseHold(ctx, bk); ok {
			evt.PaymentStatus = status
		}
	}
	s.emit(ctx, evt)
	return nil
}

// releaseHold releases the booking's hold and marks the booking released. Any failure is
// recorded as a discrepancy.
func (s *BookingService) releaseHold(ctx context.Context, bk *bookingDomain.Booking) (bookingDomain.PaymentStatus, bool) {
	holdID, err := holdIDOf(bk)
	if err != nil {
		s.logger.Error("booking has no usable payment reference", zap.String("booking_id", bk.ID().String()), zap.Error(err))
		return "", false
	}
	if _, err := s.payments.Release(ctx, holdID); err != nil {
		s.logger.Warn("failed to release payment hold",
			zap.String("booking_id", bk.ID().String()),
			zap.String("hold_id", holdID.String()),
			zap.Error(err),
		)
		s.recordDiscrepancy(ctx, bk.ID(), holdID, paymentDomain.OperationRelease, nil, err)
		return "", false
	}
	if err := s.applyPayment(ctx, bk, holdID, bookingDomain.PaymentReleased); err != nil {
		s.logger.Warn("hold released but booking payment status not updated",
			zap.String("booking_id", bk.ID().String()),
			zap.String("hold_id", holdID.String()),
			zap.Error(err),
		)
		s.recordDiscrepancy(ctx, bk.ID(), holdID, paymentDomain.OperationRelease, nil, err)
		s.refresh(ctx, bk)
		return "", false
	}
	return bk.PaymentStatus(), true
}

// refresh replaces bk with the stored row after a write through it failed.
func (s *BookingService) refresh(ctx context.Context, bk *bookingDomain.Booking) {
	fresh, err := s.bookings.FindByID(context.WithoutCancel(ctx), bk.ID())
	if err != nil {
		s.logger.Error("failed to reload booking", zap.String("booking_id", bk.ID().String()), zap.Error(err))
		return
	}
	*bk = *fresh
}

// reauthorize places a fresh hold after a failed capture and stores it on the booking before
// anything is charged, so concurrent retries cannot each capture their own hold.
func (s *BookingService) reauthorize(ctx context.Context, bk *bookingDomain.Booking, payerRef string) error {
	if payerRef == "" {
		if oldID, err := holdIDOf(bk); err == nil {
			if old, err := s.payments.FindHold(ctx, oldID); err == nil {
				payerRef = old.PayerRef
			}
		}
	}
	hold, err := s.payments.Authorize(ctx, payment.AuthorizeRequest{
		BookingID: bk.ID(),
		PayerRef:  payerRef,
		Amount:    bk.TotalAmount(),
		Currency:  bk.Currency(),
	})
	if err != nil {
		return err
	}

	from := bk.Status()
	if err := bk.SetPayment(bookingDomain.PaymentPreauthorized, hold.ID.String(), s.now()); err != nil {
		s.compensate(ctx, bk.ID(), hold.ID)
		return err
	}
	bk.IncrementVersion()
	if err := s.bookings.UpdateWithExpectedStatus(ctx, bk, from); err != nil {
		s.compensate(ctx, bk.ID(), hold.ID)
		return err
	}
	s.logger.Info("payment re-authorized",
		zap.String("booking_id", bk.ID().String()),
		zap.String("hold_id", hold.ID.String()),
	)
	return nil
}

func (s *BookingService) recordCaptureFailure(ctx context.Context, bk *bookingDomain.Booking) error {
	from := bk.Status()
	if err := bk.SetPayment(bookingDomain.PaymentFailed, "", s.now()); err != nil {
		return err
	}
	bk.IncrementVersion()
	return s.bookings.UpdateWithExpectedStatus(context.WithoutCancel(ctx), bk, from)
}

// compensate releases a hold whose booking write did not happen.
func (s *BookingService) compensate(ctx context.Context, bookingID, holdID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	if _, err := s.payments.Release(ctx, holdID); err != nil {
		s.logger.Error("compensating release failed",
			zap.String("booking_id", bookingID.String()),
			zap.String("hold_id", holdID.String()),
			zap.Error(err),
		)
		s.recordDiscrepancy(ctx, bookingID, holdID, paymentDomain.OperationRelease, nil, err)
		return
	}
	s.logger.Info("released hold after failed booking write",
		zap.String("booking_id", bookingID.String()),
		zap.String("hold_id", holdID.String()),
	)
}

// recordDiscrepancy stores a failed payment follow-up and queues its retry.
func (s *BookingService) recordDiscrepancy(ctx context.Context, bookingID, holdID uuid.UUID, op string, amount *int64, cause error) {
	ctx = context.WithoutCancel(ctx)
	d := paymentDomain.NewDiscrepancy(bookingID, holdID, op, amount, cause)
	if err := s.discrepancies.Insert(ctx, d); err != nil {
		s.logger.Error("failed to record payment discrepancy",
			zap.String("booking_id", bookingID.String()),
			zap.String("hold_id", holdID.String()),
			zap.String("operation", op),
			zap.Error(err),
		)
		return
	}
	s.logger.Warn("payment discrepancy recorded",
		zap.String("discrepancy_id", d.ID.String()),
		zap.String("booking_id", bookingID.String()),
		zap.String("operation", op),
	)
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueDiscrepancy(ctx, d.ID); err != nil {
		s.logger.Error("failed to enqueue discrepancy; the periodic sweep will pick it up",
			zap.String("discrepancy_id", d.ID.String()), zap.Error(err))
	}
}

// syncBookingPayment sets the payment status of the booking that still references holdID.
// Bookings that moved to another hold or cannot carry the status are left alone.
func (s *BookingService) syncBookingPayment(ctx context.Context, bookingID, holdID uuid.UUID, status bookingDomain.PaymentStatus) error {
	ctx = context.WithoutCancel(ctx)
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if domain.HasCode(err, domain.CodeNotFound) {
			return nil
		}
		return err
	}
	return s.applyPayment(ctx, bk, holdID, status)
}

// applyPayment writes status onto bk while it still references holdID.
func (s *BookingService) applyPayment(ctx context.Context, bk *bookingDomain.Booking, holdID uuid.UUID, status bookingDomain.PaymentStatus) error {
	if bk.PaymentReference() != holdID.String() || bk.PaymentStatus() == status {
		return nil
	}
	if !bk.Status().IsCompatible(status) {
		s.logger.Warn("payment status not applicable to booking",
			zap.String("booking_id", bk.ID().String()),
			zap.String("status", string(bk.Status())),
			zap.String("payment_status", string(status)),
		)
		return nil
	}
	from := bk.Status()
	if err := bk.SetPayment(status, "", s.now()); err != nil {
		return err
	}
	bk.IncrementVersion()
	return s.bookings.UpdateWithExpectedStatus(context.WithoutCancel(ctx), bk, from)
}

// confirmCaptured confirms an accepted booking whose hold is known to be captured.
func (s *BookingService) confirmCaptured(ctx context.Context, bk *bookingDomain.Booking) error {
	actor := bookingDomain.SystemActor()
	edge, err := bk.Authorize(bookingDomain.ActionConfirm, actor, bookingDomain.TransitionPayload{})
	if err != nil {
		return err
	}
	evt, err := s.persist(ctx, bk, edge, actor, bookingDomain.TransitionPayload{},
		&bookingDomain.PaymentChange{Status: bookingDomain.PaymentCharged})
	if err != nil {
		return err
	}
	s.emit(ctx, evt)
	return nil
}

// CompleteCapture applies the resolved outcome of an uncertain capture to its booking. It is
// driven by the capture poll and by gateway events, and is safe to repeat.
func (s *BookingService) CompleteCapture(ctx context.Context, holdID uuid.UUID, resolution payment.CaptureResolution) error {
	hold, err := s.payments.FindHold(ctx, holdID)
	if err != nil {
		return err
	}
	bk, err := s.bookings.FindByID(ctx, hold.BookingID)
	if err != nil {
		if resolution == payment.ResolutionCaptured {
			op := paymentDomain.OperationConfirm
			if domain.HasCode(err, domain.CodeNotFound) {
				op = paymentDomain.OperationRefund
			}
			s.recordDiscrepancy(ctx, hold.BookingID, holdID, op, nil, err)
		}
		return err
	}
	if bk.PaymentReference() != holdID.String() {
		s.logger.Warn("capture resolved for a hold the booking no longer uses",
			zap.String("booking_id", bk.ID().String()), zap.String("hold_id", holdID.String()))
		return nil
	}

	switch resolution {
	case payment.ResolutionCaptured:
		switch {
		case bk.Status() == bookingDomain.StatusAccepted:
			if err := s.confirmCaptured(ctx, bk); err != nil {
				s.logger.Error("payment captured but booking was not confirmed",
					zap.String("booking_id", bk.ID().String()),
					zap.String("hold_id", holdID.String()),
					zap.Error(err),
				)
				s.recordDiscrepancy(ctx, bk.ID(), holdID, paymentDomain.OperationConfirm, nil, err)
				return err
			}
		case bk.Status().IsCompatible(bookingDomain.PaymentCharged):
		default:
			// The booking left the payable path while the charge was in flight.
			s.recordDiscrepancy(ctx, bk.ID(), holdID, paymentDomain.OperationRefund, nil,
				fmt.Errorf("captured payment for %s booking", bk.Status()))
		}
	case payment.ResolutionFailed:
		if bk.Status() == bookingDomain.StatusAccepted && bk.PaymentStatus() == bookingDomain.PaymentPreauthorized {
			return s.recordCaptureFailure(ctx, bk)
		}
	case payment.ResolutionNotCaptured:
		// An accepted booking can retry the capture. Any other booking left the payable
		// path while the capture was in flight, so its hold is freed now.
		if bk.Status() != bookingDomain.StatusAccepted && bk.PaymentStatus() == bookingDomain.PaymentPreauthorized {
			s.releaseHold(ctx, bk)
		}
	}
	return nil
}

// RefundBooking returns money for a completed or disputed rental (admin). It changes the
// payment status only; amounts and lifecycle status stay as they are.
func (s *BookingService) RefundBooking(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, amount *int64) (*BookingDTO, error) {
	if actor.Role != bookingDomain.RoleAdmin {
		return nil, domain.NewForbiddenError("only admins can issue refunds")
	}
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if bk.Status() != bookingDomain.StatusCompleted && bk.Status() != bookingDomain.StatusDisputed {
		return nil, domain.NewInvalidStateError(string(bk.Status()), "refund")
	}
	if bk.PaymentStatus() != bookingDomain.PaymentCharged {
		return nil, domain.NewInvalidStateError(string(bk.PaymentStatus()), string(bookingDomain.PaymentRefunded))
	}
	holdID, err := holdIDOf(bk)
	if err != nil {
		return nil, err
	}

	hold, err := s.payments.Refund(ctx, holdID, amount)
	if err != nil {
		return nil, err
	}
	status := bookingDomain.PaymentRefunded
	if hold.State == paymentDomain.HoldPartiallyRefunded {
		status = bookingDomain.PaymentPartialRefund
	}

	from := bk.Status()
	if err := bk.SetPayment(status, "", s.now()); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.bookings.UpdateWithExpectedStatus(ctx, bk, from); err != nil {
		s.recordDiscrepancy(ctx, bk.ID(), holdID, paymentDomain.OperationRefund, amount, err)
		return nil, err
	}

	s.logger.Info("booking refunded",
		zap.String("booking_id", bk.ID().String()),
		zap.String("admin_id", actor.ID.String()),
		zap.Int64("amount", hold.RefundedAmount),
	)
	result := toBookingDTO(bk)
	return &result, nil
}

// SettleDiscrepancy retries the payment follow-up of a discrepancy and marks it resolved on
// success. Holds that already reached the wanted state only need the booking synced.
func (s *BookingService) SettleDiscrepancy(ctx context.Context, discrepancyID uuid.UUID) error {
	d, err := s.discrepancies.FindByID(ctx, discrepancyID)
	if err != nil {
		return err
	}
	if d.Resolved {
		return nil
	}

	var settleErr error
	switch d.Operation {
	case paymentDomain.OperationRelease:
		settleErr = s.settleRelease(ctx, d)
	case paymentDomain.OperationRefund:
		settleErr = s.settleRefund(ctx, d)
	case paymentDomain.OperationConfirm:
		settleErr = s.settleConfirm(ctx, d)
	default:
		settleErr = fmt.Errorf("unknown discrepancy operation %q", d.Operation)
	}

	d.Attempts++
	d.UpdatedAt = s.now()
	if settleErr != nil {
		d.LastError = settleErr.Error()
	} else {
		d.Resolved = true
		d.LastError = ""
	}
	if err := s.discrepancies.Update(ctx, d); err != nil {
		return fmt.Errorf("failed to update discrepancy: %w", err)
	}
	if settleErr == nil {
		s.logger.Info("payment discrepancy resolved",
			zap.String("discrepancy_id", d.ID.String()),
			zap.String("operation", d.Operation),
		)
	}
	return settleErr
}

func (s *BookingService) settleRelease(ctx context.Context, d *paymentDomain.Discrepancy) error {
	hold, err := s.payments.FindHold(ctx, d.HoldID)
	if err != nil {
		return err
	}
	switch hold.State {
	case paymentDomain.HoldHeld:
		if _, err := s.payments.Release(ctx, hold.ID); err != nil {
			return err
		}
	case paymentDomain.HoldReleased:
	case paymentDomain.HoldCapturing, paymentDomain.HoldCaptureUnknown:
		// Retried until the capture resolves; a charge that went through is refunded instead.
		return domain.NewPaymentError(domain.CodePaymentPending, "capture still in flight for hold "+hold.ID.String(), nil)
	default:
		s.logger.Warn("nothing to release for hold",
			zap.String("hold_id", hold.ID.String()), zap.String("state", string(hold.State)))
		return nil
	}
	return s.syncBookingPayment(ctx, d.BookingID, hold.ID, bookingDomain.PaymentReleased)
}

func (s *BookingService) settleRefund(ctx context.Context, d *paymentDomain.Discrepancy) error {
	hold, err := s.payments.FindHold(ctx, d.HoldID)
	if err != nil {
		return err
	}
	switch hold.State {
	case paymentDomain.HoldCaptured:
		if hold, err = s.payments.Refund(ctx, hold.ID, d.Amount); err != nil {
			return err
		}
	case paymentDomain.HoldRefunded, paymentDomain.HoldPartiallyRefunded:
	default:
		return domain.NewInvalidStateError(string(hold.State), string(paymentDomain.HoldRefunded))
	}
	status := bookingDomain.PaymentRefunded
	if hold.State == paymentDomain.HoldPartiallyRefunded {
		status = bookingDomain.PaymentPartialRefund
	}
	return s.syncBookingPayment(ctx, d.BookingID, hold.ID, status)
}

// settleConfirm finishes a confirm whose capture succeeded. If the booking moved off the
// payable path in the meantime the charge is refunded instead.
func (s *BookingService) settleConfirm(ctx context.Context, d *paymentDomain.Discrepancy) error {
	bk, err := s.bookings.FindByID(ctx, d.BookingID)
	if err != nil {
		return err
	}
	if bk.PaymentReference() != d.HoldID.String() {
		return s.settleRefund(ctx, d)
	}
	switch {
	case bk.Status() == bookingDomain.StatusAccepted:
		return s.confirmCaptured(ctx, bk)
	case bk.Status().IsCompatible(bookingDomain.PaymentCharged):
		return nil
	default:
		return s.settleRefund(ctx, d)
	}
}

func holdIDOf(bk *bookingDomain.Booking) (uuid.UUID, error) {
	id, err := uuid.Parse(bk.PaymentReference())
	if err != nil {
		return uuid.Nil, domain.NewInvalidStateError("payment reference "+bk.PaymentReference(), "payment hold")
	}
	return id, nil
}
