package events

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	"github.com/vroomshare/service-booking/pkg/kafka"
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// BookingEventPublisher mirrors committed transitions onto the booking topic.
type BookingEventPublisher struct {
	publisher EventPublisher
	logger    *zap.Logger
}

// NewBookingEventPublisher creates a new BookingEventPublisher.
func NewBookingEventPublisher(publisher EventPublisher, logger *zap.Logger) *BookingEventPublisher {
	return &BookingEventPublisher{publisher: publisher, logger: logger}
}

// OnTransition publishes evt. Failures are logged; the transition already stands.
func (p *BookingEventPublisher) OnTransition(ctx context.Context, evt bookingDomain.BookingTransitioned) {
	cloudEvent, err := kafka.NewCloudEvent(Source, evt.EventType(), evt)
	if err != nil {
		p.logger.Error("failed to build booking event", zap.Error(err))
		return
	}
	cloudEvent.Subject = evt.BookingID.String()

	if err := p.publisher.PublishEvent(ctx, bookingDomain.TopicBookingEvents, cloudEvent); err != nil {
		p.logger.Error("failed to publish booking event",
			zap.String("booking_id", evt.BookingID.String()),
			zap.String("type", cloudEvent.Type),
			zap.Error(err),
		)
	}
}

// NotificationSink hands notifications to the delivery service over Kafka.
type NotificationSink struct {
	publisher EventPublisher
}

// NewNotificationSink creates a new NotificationSink.
func NewNotificationSink(publisher EventPublisher) *NotificationSink {
	return &NotificationSink{publisher: publisher}
}

// Notify publishes one request keyed by the recipient.
func (s *NotificationSink) Notify(ctx context.Context, userID uuid.UUID, eventType string, payload map[string]interface{}) error {
	cloudEvent, err := kafka.NewCloudEvent(Source, eventType, NotificationRequest{
		UserID:    userID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		return err
	}
	cloudEvent.Subject = userID.String()
	return s.publisher.PublishEvent(ctx, bookingDomain.TopicNotificationRequests, cloudEvent)
}
