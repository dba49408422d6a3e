package events

import (
	"context"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	"github.com/vroomshare/service-booking/internal/payment"
	"github.com/vroomshare/service-booking/pkg/domain"
	"github.com/vroomshare/service-booking/pkg/kafka"
)

// CaptureOutcomeRecorder stores a capture result reported by the gateway.
type CaptureOutcomeRecorder interface {
	MarkCaptureOutcome(ctx context.Context, holdID uuid.UUID, succeeded bool, reason string) (payment.CaptureResolution, error)
}

// CaptureCompleter applies a resolved capture to its booking.
type CaptureCompleter interface {
	CompleteCapture(ctx context.Context, holdID uuid.UUID, resolution payment.CaptureResolution) error
}

// PaymentEventConsumer listens to gateway capture outcomes and settles bookings whose
// capture was left unknown.
type PaymentEventConsumer struct {
	consumer *kafka.Consumer
	payments CaptureOutcomeRecorder
	bookings CaptureCompleter
	logger   *zap.Logger
}

// NewPaymentEventConsumer creates a new PaymentEventConsumer.
func NewPaymentEventConsumer(
	brokers []string,
	groupID string,
	payments CaptureOutcomeRecorder,
	bookings CaptureCompleter,
	logger *zap.Logger,
) *PaymentEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, bookingDomain.TopicPaymentEvents, logger)
	return &PaymentEventConsumer{
		consumer: consumer,
		payments: payments,
		bookings: bookings,
		logger:   logger,
	}
}

// Start begins consuming payment events. This blocks until the context is cancelled.
func (c *PaymentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *PaymentEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *PaymentEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from payment topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case PaymentCaptureSucceeded:
		return c.handleCaptureOutcome(ctx, cloudEvent, true)
	case PaymentCaptureFailed:
		return c.handleCaptureOutcome(ctx, cloudEvent, false)
	default:
		c.logger.Debug("ignoring unhandled payment event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *PaymentEventConsumer) handleCaptureOutcome(ctx context.Context, cloudEvent kafka.CloudEvent, succeeded bool) error {
	var evt CaptureOutcomeEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse CaptureOutcomeEvent data", zap.Error(err))
		return nil // Don't retry malformed data
	}
	if evt.HoldID == uuid.Nil {
		c.logger.Warn("capture outcome without hold id", zap.String("event_id", cloudEvent.ID))
		return nil
	}

	c.logger.Info("processing capture outcome",
		zap.String("hold_id", evt.HoldID.String()),
		zap.String("booking_id", evt.BookingID.String()),
		zap.Bool("succeeded", succeeded),
	)

	resolution, err := c.payments.MarkCaptureOutcome(ctx, evt.HoldID, succeeded, evt.Reason)
	if err != nil {
		// Holds we never captured (or no longer know) are not ours to settle.
		if domain.HasCode(err, domain.CodeInvalidState) || domain.HasCode(err, domain.CodeNotFound) {
			c.logger.Warn("ignoring capture outcome",
				zap.String("hold_id", evt.HoldID.String()),
				zap.Error(err),
			)
			return nil
		}
		return err
	}

	// A charge that cannot be applied to its booking is left as a discrepancy by
	// CompleteCapture, so the message can be committed past.
	if err := c.bookings.CompleteCapture(ctx, evt.HoldID, resolution); err != nil {
		c.logger.Error("failed to apply capture outcome to booking",
			zap.String("hold_id", evt.HoldID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
