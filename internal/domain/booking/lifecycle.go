package booking

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/vroomshare/service-booking/pkg/domain"
)

// Role is the capacity in which a user acts on a booking.
type Role string

const (
	RoleRenter Role = "renter"
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	// RoleSystem is used by reconciliation jobs and event consumers.
	RoleSystem Role = "system"
)

// ParseRole converts a string to a Role accepted from callers. System is not accepted.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleRenter, RoleOwner, RoleAdmin:
		return Role(s), nil
	}
	return "", domain.NewValidationError(fmt.Sprintf("invalid role: %s", s))
}

// Actor identifies who performs an operation. It is always passed explicitly.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// SystemActor returns the actor used for automated transitions.
func SystemActor() Actor {
	return Actor{ID: uuid.Nil, Role: RoleSystem}
}

// Action names a lifecycle edge.
type Action string

const (
	ActionRequest      Action = "request"
	ActionAccept       Action = "accept"
	ActionReject       Action = "reject"
	ActionConfirm      Action = "confirm"
	ActionCancel       Action = "cancel"
	ActionShareContact Action = "share_contact"
	ActionMarkReady    Action = "mark_ready"
	ActionStart        Action = "start"
	ActionRecordReturn Action = "record_return"
	ActionComplete     Action = "complete"
	ActionDispute      Action = "dispute"
)

// AllActions lists every transition action (request is creation, not a transition).
var AllActions = []Action{
	ActionAccept, ActionReject, ActionConfirm, ActionCancel, ActionShareContact,
	ActionMarkReady, ActionStart, ActionRecordReturn, ActionComplete, ActionDispute,
}

// PaymentEffect is the payment operation an edge performs.
type PaymentEffect string

const (
	PaymentEffectNone    PaymentEffect = "none"
	PaymentEffectCapture PaymentEffect = "capture"
	PaymentEffectRelease PaymentEffect = "release"
)

// Audience is a set of notification recipients.
type Audience uint8

const (
	AudienceRenter Audience = 1 << iota
	AudienceOwner
	// AudienceCounterpart is whichever party did not act.
	AudienceCounterpart
	AudienceSupport

	AudienceBoth = AudienceRenter | AudienceOwner
)

// Has reports whether a includes all of o.
func (a Audience) Has(o Audience) bool { return a&o == o }

// Edge is one row of the lifecycle table. An empty To keeps the current status.
type Edge struct {
	Action  Action
	From    []BookingStatus
	To      BookingStatus
	Roles   []Role
	Payment PaymentEffect
	Notify  Audience
}

// IsSelfEdge reports whether the edge leaves the status unchanged.
func (e Edge) IsSelfEdge() bool { return e.To == "" }

// Target returns the status the booking will have after the edge is applied from `from`.
func (e Edge) Target(from BookingStatus) BookingStatus {
	if e.IsSelfEdge() {
		return from
	}
	return e.To
}

func (e Edge) allowsFrom(s BookingStatus) bool {
	for _, f := range e.From {
		if f == s {
			return true
		}
	}
	return false
}

func (e Edge) allowsRole(r Role) bool {
	for _, role := range e.Roles {
		if role == r {
			return true
		}
	}
	return false
}

var bothParties = []Role{RoleRenter, RoleOwner}

// edges is the single source of truth for which transitions exist. Confirm may also be
// applied by the system once an uncertain capture is known to have succeeded.
var edges = []Edge{
	{ActionAccept, []BookingStatus{StatusPending}, StatusAccepted, []Role{RoleOwner}, PaymentEffectNone, AudienceRenter},
	{ActionReject, []BookingStatus{StatusPending, StatusAccepted}, StatusRejected, []Role{RoleOwner}, PaymentEffectRelease, AudienceRenter},
	{ActionConfirm, []BookingStatus{StatusAccepted}, StatusConfirmed, []Role{RoleRenter, RoleSystem}, PaymentEffectCapture, AudienceOwner},
	{ActionCancel, []BookingStatus{StatusPending}, StatusCancelled, []Role{RoleRenter}, PaymentEffectRelease, AudienceBoth},
	{ActionShareContact, []BookingStatus{StatusConfirmed}, "", bothParties, PaymentEffectNone, AudienceBoth},
	{ActionMarkReady, []BookingStatus{StatusConfirmed}, "", bothParties, PaymentEffectNone, AudienceCounterpart},
	{ActionStart, []BookingStatus{StatusConfirmed}, StatusInProgress, bothParties, PaymentEffectNone, AudienceBoth},
	{ActionRecordReturn, []BookingStatus{StatusInProgress}, "", bothParties, PaymentEffectNone, AudienceBoth},
	{ActionComplete, []BookingStatus{StatusInProgress}, StatusCompleted, bothParties, PaymentEffectNone, AudienceBoth},
	{ActionDispute, []BookingStatus{StatusConfirmed, StatusInProgress}, StatusDisputed, bothParties, PaymentEffectNone, AudienceBoth | AudienceSupport},
}

// Edges returns a copy of the lifecycle table.
func Edges() []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// FindEdge looks up the edge for an action taken from a status in a role.
func FindEdge(action Action, from BookingStatus, role Role) (Edge, bool) {
	for _, e := range edges {
		if e.Action == action && e.allowsFrom(from) && e.allowsRole(role) {
			return e, true
		}
	}
	return Edge{}, false
}

// TransitionPayload carries the optional data some edges need.
type TransitionPayload struct {
	Checklist *Checklist `json:"checklist,omitempty"`
	Reason    string     `json:"reason,omitempty"`

	// PayerRef replaces the payment method when a confirm follows a failed capture.
	PayerRef string `json:"payer_ref,omitempty"`
}

// Authorize resolves the edge for action and checks the actor and guards against the
// booking's current state. It does not mutate the booking.
func (b *Booking) Authorize(action Action, actor Actor, payload TransitionPayload) (Edge, error) {
	if b.status.IsTerminal() {
		return Edge{}, domain.NewInvalidTransitionError(string(b.status), string(action))
	}
	edge, ok := FindEdge(action, b.status, actor.Role)
	if !ok {
		return Edge{}, domain.NewInvalidTransitionError(string(b.status), string(action))
	}
	switch actor.Role {
	case RoleRenter:
		if actor.ID != b.renterID {
			return Edge{}, domain.NewForbiddenError("only the booking's renter can act as renter")
		}
	case RoleOwner:
		if actor.ID != b.ownerID {
			return Edge{}, domain.NewForbiddenError("only the vehicle owner can act as owner")
		}
	}
	if err := b.checkGuards(action, payload); err != nil {
		return Edge{}, err
	}
	return edge, nil
}

func (b *Booking) checkGuards(action Action, payload TransitionPayload) error {
	guard := func(msg string) error {
		return domain.NewInvalidTransitionError(string(b.status), string(action)).
			WithDetail("guard", msg)
	}
	switch action {
	case ActionStart:
		if !b.contactShared {
			return guard("contact details must be shared before pickup")
		}
		if !b.ownerReady || !b.renterReady {
			return guard("owner and renter must both be ready before pickup")
		}
		if payload.Checklist == nil {
			return guard("a pickup checklist is required")
		}
		return payload.Checklist.Validate()
	case ActionRecordReturn:
		if payload.Checklist == nil {
			return guard("a return checklist is required")
		}
		return payload.Checklist.Validate()
	case ActionComplete:
		if payload.Checklist != nil {
			return payload.Checklist.Validate()
		}
		if b.returnChecklist == nil {
			return guard("a return checklist is required before completion")
		}
	case ActionDispute:
		if payload.Reason == "" {
			return guard("a dispute reason is required")
		}
	}
	return nil
}

// Recipients resolves an audience to the users to notify for an action taken by actor.
// Support is not a user and is reported separately.
func (b *Booking) Recipients(aud Audience, actor Actor) (users []uuid.UUID, support bool) {
	return recipients(aud, b.renterID, b.ownerID, actor.Role)
}

func recipients(aud Audience, renterID, ownerID uuid.UUID, actorRole Role) (users []uuid.UUID, support bool) {
	if aud.Has(AudienceRenter) {
		users = append(users, renterID)
	}
	if aud.Has(AudienceOwner) {
		users = append(users, ownerID)
	}
	if aud.Has(AudienceCounterpart) {
		switch actorRole {
		case RoleRenter:
			users = append(users, ownerID)
		case RoleOwner:
			users = append(users, renterID)
		default:
			users = append(users, renterID, ownerID)
		}
	}
	return users, aud.Has(AudienceSupport)
}
