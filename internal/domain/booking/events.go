package booking

import (
	"time"

	"github.com/google/uuid"
)

// Kafka topics used by the booking service.
const (
	TopicBookingEvents        = "booking.events"
	TopicNotificationRequests = "notification.requests"
	TopicPaymentEvents        = "payment.events"
)

// EventRequested is the event type for a newly created booking request.
const EventRequested = "booking.requested"

// RequestEdge describes booking creation in the same terms as the lifecycle edges.
var RequestEdge = Edge{
	Action:  ActionRequest,
	To:      StatusPending,
	Roles:   []Role{RoleRenter},
	Payment: PaymentEffectNone,
	Notify:  AudienceOwner,
}

// BookingTransitioned is emitted after a transition has been committed.
type BookingTransitioned struct {
	BookingID     uuid.UUID     `json:"booking_id"`
	BookingNumber string        `json:"booking_number"`
	VehicleID     uuid.UUID     `json:"vehicle_id"`
	RenterID      uuid.UUID     `json:"renter_id"`
	OwnerID       uuid.UUID     `json:"owner_id"`
	From          BookingStatus `json:"from"`
	To            BookingStatus `json:"to"`
	Action        Action        `json:"action"`
	ActorID       uuid.UUID     `json:"actor_id"`
	ActorRole     Role          `json:"actor_role"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Notify        Audience      `json:"-"`
	At            time.Time     `json:"at"`
}

// NewTransitionedEvent builds the event for an edge applied to b, which must already be in
// the target state.
func NewTransitionedEvent(b *Booking, from BookingStatus, edge Edge, actor Actor, at time.Time) BookingTransitioned {
	return BookingTransitioned{
		BookingID:     b.ID(),
		BookingNumber: b.BookingNumber(),
		VehicleID:     b.VehicleID(),
		RenterID:      b.RenterID(),
		OwnerID:       b.OwnerID(),
		From:          from,
		To:            b.Status(),
		Action:        edge.Action,
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		PaymentStatus: b.PaymentStatus(),
		Notify:        edge.Notify,
		At:            at.UTC(),
	}
}

// Recipients resolves the event's notification audience to users.
func (e BookingTransitioned) Recipients() (users []uuid.UUID, support bool) {
	return recipients(e.Notify, e.RenterID, e.OwnerID, e.ActorRole)
}

// EventType names the event: the new status for moves, the action for self-edges.
func (e BookingTransitioned) EventType() string {
	if e.Action == ActionRequest {
		return EventRequested
	}
	if e.From == e.To {
		return "booking." + string(e.Action)
	}
	return "booking." + string(e.To)
}
