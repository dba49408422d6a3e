package notification

import (
	"context"

	"github.com/google/uuid"
)

// Sink hands a notification to the delivery service. Delivery is at-least-once with no
// ordering guarantee; callers only invoke it after the triggering change has committed.
type Sink interface {
	Notify(ctx context.Context, userID uuid.UUID, eventType string, payload map[string]interface{}) error
}
