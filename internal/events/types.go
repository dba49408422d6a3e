package events

import (
	"github.com/google/uuid"
)

// TopicVehicleListings carries listing changes from the vehicle service.
const TopicVehicleListings = "vehicle.listings"

// Event types consumed from other services.
const (
	PaymentCaptureSucceeded = "payment.capture.succeeded"
	PaymentCaptureFailed    = "payment.capture.failed"

	VehicleListed   = "vehicle.listed"
	VehicleUpdated  = "vehicle.updated"
	VehicleDelisted = "vehicle.delisted"
)

// Source is the CloudEvent source of everything this service publishes.
const Source = "service-booking"

// CaptureOutcomeEvent is relayed from gateway webhooks. HoldID is the hold_id metadata
// attached when the payment was authorized.
type CaptureOutcomeEvent struct {
	HoldID     uuid.UUID `json:"hold_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	GatewayRef string    `json:"gateway_ref"`
	Reason     string    `json:"reason,omitempty"`
}

// VehicleListingEvent is a full listing snapshot. Version increases with every change.
type VehicleListingEvent struct {
	VehicleID     uuid.UUID `json:"vehicle_id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Title         string    `json:"title"`
	DailyRate     int64     `json:"daily_rate"`
	DepositAmount *int64    `json:"deposit_amount,omitempty"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Version       int64     `json:"version"`
}

// NotificationRequest is one message on the notification topic.
type NotificationRequest struct {
	UserID    uuid.UUID              `json:"user_id"`
	EventType string                 `json:"event_type"`
	Payload   map[string]interface{} `json:"payload"`
}
