package payment

import (
	"time"

	"github.com/google/uuid"
)

// HoldState is the lifecycle of a payment handle.
type HoldState string

const (
	HoldHeld              HoldState = "held"
	HoldCapturing         HoldState = "capturing"
	HoldCaptureUnknown    HoldState = "capture_unknown"
	HoldCaptured          HoldState = "captured"
	HoldCaptureFailed     HoldState = "capture_failed"
	HoldReleasing         HoldState = "releasing"
	HoldReleased          HoldState = "released"
	HoldRefunding         HoldState = "refunding"
	HoldRefunded          HoldState = "refunded"
	HoldPartiallyRefunded HoldState = "partially_refunded"
)

// IsFinal reports whether no further operation can be performed on the handle.
func (s HoldState) IsFinal() bool {
	switch s {
	case HoldCaptureFailed, HoldReleased, HoldRefunded, HoldPartiallyRefunded:
		return true
	}
	return false
}

// Hold is a single-use payment handle. Its ID doubles as the gateway idempotency key.
type Hold struct {
	ID             uuid.UUID
	BookingID      uuid.UUID
	GatewayRef     string
	Amount         int64
	Currency       string
	PayerRef       string
	State          HoldState
	RefundedAmount int64
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Discrepancy operations. Confirm covers a capture that succeeded while the booking
// update did not.
const (
	OperationRelease = "release"
	OperationRefund  = "refund"
	OperationConfirm = "confirm"
)

// Discrepancy records a payment side effect that failed after the booking state moved on.
// It is retried out of band until resolved.
type Discrepancy struct {
	ID        uuid.UUID
	BookingID uuid.UUID
	HoldID    uuid.UUID
	Operation string
	Amount    *int64
	LastError string
	Attempts  int
	Resolved  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDiscrepancy creates an unresolved discrepancy.
func NewDiscrepancy(bookingID, holdID uuid.UUID, operation string, amount *int64, cause error) *Discrepancy {
	now := time.Now().UTC()
	d := &Discrepancy{
		ID:        uuid.New(),
		BookingID: bookingID,
		HoldID:    holdID,
		Operation: operation,
		Amount:    amount,
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cause != nil {
		d.LastError = cause.Error()
	}
	return d
}
