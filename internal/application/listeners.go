package application

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	"github.com/vroomshare/service-booking/internal/domain/notification"
)

// TransitionListener receives every committed transition. Implementations own their
// error handling; nothing they do can undo the transition.
type TransitionListener interface {
	OnTransition(ctx context.Context, evt bookingDomain.BookingTransitioned)
}

// NotificationListener turns transitions into notifications for the edge's audience.
type NotificationListener struct {
	sink          notification.Sink
	supportUserID uuid.UUID
	logger        *zap.Logger
}

// NewNotificationListener creates a listener. Support notifications are skipped when
// supportUserID is uuid.Nil.
func NewNotificationListener(sink notification.Sink, supportUserID uuid.UUID, logger *zap.Logger) *NotificationListener {
	return &NotificationListener{sink: sink, supportUserID: supportUserID, logger: logger}
}

// OnTransition notifies each recipient once.
func (l *NotificationListener) OnTransition(ctx context.Context, evt bookingDomain.BookingTransitioned) {
	users, support := evt.Recipients()
	if support && l.supportUserID != uuid.Nil {
		users = append(users, l.supportUserID)
	}

	payload := map[string]interface{}{
		"booking_id":     evt.BookingID.String(),
		"booking_number": evt.BookingNumber,
		"vehicle_id":     evt.VehicleID.String(),
		"from":           string(evt.From),
		"to":             string(evt.To),
		"action":         string(evt.Action),
		"payment_status": string(evt.PaymentStatus),
		"at":             evt.At,
	}

	seen := make(map[uuid.UUID]bool, len(users))
	for _, userID := range users {
		if seen[userID] {
			continue
		}
		seen[userID] = true
		if err := l.sink.Notify(ctx, userID, evt.EventType(), payload); err != nil {
			l.logger.Error("failed to send notification",
				zap.String("booking_id", evt.BookingID.String()),
				zap.String("user_id", userID.String()),
				zap.String("event_type", evt.EventType()),
				zap.Error(err),
			)
		}
	}
}

// ListenerFunc adapts a function to TransitionListener.
type ListenerFunc func(ctx context.Context, evt bookingDomain.BookingTransitioned)

// OnTransition calls f.
func (f ListenerFunc) OnTransition(ctx context.Context, evt bookingDomain.BookingTransitioned) {
	f(ctx, evt)
}
