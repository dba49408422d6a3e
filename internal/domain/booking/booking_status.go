package booking

import "fmt"

// BookingStatus represents the current state of a booking in its lifecycle.
type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusAccepted   BookingStatus = "accepted"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in_progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
	StatusRejected   BookingStatus = "rejected"
	StatusDisputed   BookingStatus = "disputed"
)

// AllStatuses lists every booking status in lifecycle order.
var AllStatuses = []BookingStatus{
	StatusPending, StatusAccepted, StatusConfirmed, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusRejected, StatusDisputed,
}

// BlockingStatuses are the statuses whose date range makes the vehicle unavailable.
var BlockingStatuses = []BookingStatus{
	StatusPending, StatusAccepted, StatusConfirmed, StatusInProgress,
}

// IsValid returns true if the status is a recognized booking status.
func (s BookingStatus) IsValid() bool {
	_, ok := paymentCompatibility[s]
	return ok
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusDisputed:
		return true
	}
	return !s.IsValid()
}

// IsBlocking returns true if a booking in this status occupies its vehicle's calendar.
func (s BookingStatus) IsBlocking() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

// String returns the string representation of the status.
func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus, returning an error if invalid.
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}

// PaymentStatus tracks the money side of a booking.
type PaymentStatus string

const (
	PaymentPreauthorized PaymentStatus = "preauthorized"
	PaymentCharged       PaymentStatus = "charged"
	PaymentReleased      PaymentStatus = "released"
	PaymentRefunded      PaymentStatus = "refunded"
	PaymentPartialRefund PaymentStatus = "partial_refund"
	PaymentFailed        PaymentStatus = "failed"
)

// IsValid returns true if the payment status is recognized.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPreauthorized, PaymentCharged, PaymentReleased,
		PaymentRefunded, PaymentPartialRefund, PaymentFailed:
		return true
	}
	return false
}

// ParsePaymentStatus converts a string to a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	p := PaymentStatus(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment status: %s", s)
	}
	return p, nil
}

// paymentCompatibility lists the payment statuses a booking may carry in each status.
// A cancelled or rejected booking may still be preauthorized while its release is queued
// for reconciliation.
var paymentCompatibility = map[BookingStatus][]PaymentStatus{
	StatusPending:    {PaymentPreauthorized},
	StatusAccepted:   {PaymentPreauthorized, PaymentFailed},
	StatusConfirmed:  {PaymentCharged},
	StatusInProgress: {PaymentCharged},
	StatusCompleted:  {PaymentCharged, PaymentPartialRefund, PaymentRefunded},
	StatusDisputed:   {PaymentCharged, PaymentPartialRefund, PaymentRefunded},
	StatusCancelled:  {PaymentReleased, PaymentPreauthorized, PaymentFailed},
	StatusRejected:   {PaymentReleased, PaymentPreauthorized, PaymentFailed},
}

// IsCompatible reports whether a booking in status s may carry payment status p.
func (s BookingStatus) IsCompatible(p PaymentStatus) bool {
	for _, allowed := range paymentCompatibility[s] {
		if allowed == p {
			return true
		}
	}
	return false
}
