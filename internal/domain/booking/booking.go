package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/vroomshare/service-booking/pkg/domain"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Booking is the aggregate root for the booking domain.
type Booking struct {
	id            uuid.UUID
	bookingNumber string
	vehicleID     uuid.UUID
	renterID      uuid.UUID
	ownerID       uuid.UUID
	dates         DateRange
	durationDays  int

	dailyRate     int64
	basePrice     int64
	insuranceTier InsuranceTier
	insuranceFee  int64
	serviceFee    int64
	totalAmount   int64
	depositAmount int64
	currency      string

	paymentStatus    PaymentStatus
	paymentReference string

	pickupLocation string
	returnLocation string

	status          BookingStatus
	contactShared   bool
	ownerReady      bool
	renterReady     bool
	pickupChecklist *Checklist
	returnChecklist *Checklist
	disputeReason   string
	cancelReason    string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateBookingNumber creates a booking number in the format "RB-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "RB-" + string(result), nil
}

// NewBookingParams holds the inputs for a new booking request.
type NewBookingParams struct {
	ID             uuid.UUID
	VehicleID      uuid.UUID
	RenterID       uuid.UUID
	OwnerID        uuid.UUID
	Dates          DateRange
	Quote          Quote
	Currency       string
	PickupLocation string
	ReturnLocation string
	HoldID         string
}

// NewBooking creates a new Booking aggregate with status=pending and a preauthorized payment.
// The id is chosen by the caller so the payment hold can reference it before the row exists.
func NewBooking(p NewBookingParams, now time.Time) (*Booking, error) {
	if p.ID == uuid.Nil {
		return nil, domain.NewValidationError("booking ID is required")
	}
	if p.VehicleID == uuid.Nil {
		return nil, domain.NewValidationError("vehicle ID is required")
	}
	if p.RenterID == uuid.Nil {
		return nil, domain.NewValidationError("renter ID is required")
	}
	if p.OwnerID == uuid.Nil {
		return nil, domain.NewValidationError("owner ID is required")
	}
	if p.RenterID == p.OwnerID {
		return nil, domain.NewValidationError("owners cannot book their own vehicle")
	}
	if p.PickupLocation == "" {
		return nil, domain.NewValidationError("pickup location is required")
	}
	if p.ReturnLocation == "" {
		return nil, domain.NewValidationError("return location is required")
	}
	if p.Quote.TotalAmount <= 0 {
		return nil, domain.NewValidationError("total amount must be positive")
	}
	if p.Currency == "" {
		return nil, domain.NewValidationError("currency is required")
	}
	if p.HoldID == "" {
		return nil, domain.NewValidationError("payment hold is required")
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	return &Booking{
		id:               p.ID,
		bookingNumber:    bookingNumber,
		vehicleID:        p.VehicleID,
		renterID:         p.RenterID,
		ownerID:          p.OwnerID,
		dates:            p.Dates,
		durationDays:     p.Quote.DurationDays,
		dailyRate:        p.Quote.DailyRate,
		basePrice:        p.Quote.BasePrice,
		insuranceTier:    p.Quote.InsuranceTier,
		insuranceFee:     p.Quote.InsuranceFee,
		serviceFee:       p.Quote.ServiceFee,
		totalAmount:      p.Quote.TotalAmount,
		depositAmount:    p.Quote.DepositAmount,
		currency:         p.Currency,
		paymentStatus:    PaymentPreauthorized,
		paymentReference: p.HoldID,
		pickupLocation:   p.PickupLocation,
		returnLocation:   p.ReturnLocation,
		status:           StatusPending,
		version:          1,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// Snapshot is the full persisted state of a booking.
type Snapshot struct {
	ID               uuid.UUID
	BookingNumber    string
	VehicleID        uuid.UUID
	RenterID         uuid.UUID
	OwnerID          uuid.UUID
	Dates            DateRange
	DurationDays     int
	DailyRate        int64
	BasePrice        int64
	InsuranceTier    InsuranceTier
	InsuranceFee     int64
	ServiceFee       int64
	TotalAmount      int64
	DepositAmount    int64
	Currency         string
	PaymentStatus    PaymentStatus
	PaymentReference string
	PickupLocation   string
	ReturnLocation   string
	Status           BookingStatus
	ContactShared    bool
	OwnerReady       bool
	RenterReady      bool
	PickupChecklist  *Checklist
	ReturnChecklist  *Checklist
	DisputeReason    string
	CancelReason     string
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(s Snapshot) *Booking {
	return &Booking{
		id:               s.ID,
		bookingNumber:    s.BookingNumber,
		vehicleID:        s.VehicleID,
		renterID:         s.RenterID,
		ownerID:          s.OwnerID,
		dates:            s.Dates,
		durationDays:     s.DurationDays,
		dailyRate:        s.DailyRate,
		basePrice:        s.BasePrice,
		insuranceTier:    s.InsuranceTier,
		insuranceFee:     s.InsuranceFee,
		serviceFee:       s.ServiceFee,
		totalAmount:      s.TotalAmount,
		depositAmount:    s.DepositAmount,
		currency:         s.Currency,
		paymentStatus:    s.PaymentStatus,
		paymentReference: s.PaymentReference,
		pickupLocation:   s.PickupLocation,
		returnLocation:   s.ReturnLocation,
		status:           s.Status,
		contactShared:    s.ContactShared,
		ownerReady:       s.OwnerReady,
		renterReady:      s.RenterReady,
		pickupChecklist:  s.PickupChecklist,
		returnChecklist:  s.ReturnChecklist,
		disputeReason:    s.DisputeReason,
		cancelReason:     s.CancelReason,
		version:          s.Version,
		createdAt:        s.CreatedAt,
		updatedAt:        s.UpdatedAt,
	}
}

// Snapshot returns the booking's persisted state.
func (b *Booking) Snapshot() Snapshot {
	return Snapshot{
		ID:               b.id,
		BookingNumber:    b.bookingNumber,
		VehicleID:        b.vehicleID,
		RenterID:         b.renterID,
		OwnerID:          b.ownerID,
		Dates:            b.dates,
		DurationDays:     b.durationDays,
		DailyRate:        b.dailyRate,
		BasePrice:        b.basePrice,
		InsuranceTier:    b.insuranceTier,
		InsuranceFee:     b.insuranceFee,
		ServiceFee:       b.serviceFee,
		TotalAmount:      b.totalAmount,
		DepositAmount:    b.depositAmount,
		Currency:         b.currency,
		PaymentStatus:    b.paymentStatus,
		PaymentReference: b.paymentReference,
		PickupLocation:   b.pickupLocation,
		ReturnLocation:   b.returnLocation,
		Status:           b.status,
		ContactShared:    b.contactShared,
		OwnerReady:       b.ownerReady,
		RenterReady:      b.renterReady,
		PickupChecklist:  b.pickupChecklist,
		ReturnChecklist:  b.returnChecklist,
		DisputeReason:    b.disputeReason,
		CancelReason:     b.cancelReason,
		Version:          b.version,
		CreatedAt:        b.createdAt,
		UpdatedAt:        b.updatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// VehicleID returns the booked vehicle's ID.
func (b *Booking) VehicleID() uuid.UUID { return b.vehicleID }

// RenterID returns the renter's user ID.
func (b *Booking) RenterID() uuid.UUID { return b.renterID }

// OwnerID returns the vehicle owner's user ID.
func (b *Booking) OwnerID() uuid.UUID { return b.ownerID }

// Dates returns the rental date range.
func (b *Booking) Dates() DateRange { return b.dates }

// DurationDays returns the billable number of days.
func (b *Booking) DurationDays() int { return b.durationDays }

// DailyRate returns the vehicle's rate at booking time.
func (b *Booking) DailyRate() int64 { return b.dailyRate }

// BasePrice returns daily rate times duration.
func (b *Booking) BasePrice() int64 { return b.basePrice }

// InsuranceTier returns the chosen insurance tier.
func (b *Booking) InsuranceTier() InsuranceTier { return b.insuranceTier }

// InsuranceFee returns the insurance charge.
func (b *Booking) InsuranceFee() int64 { return b.insuranceFee }

// ServiceFee returns the marketplace fee.
func (b *Booking) ServiceFee() int64 { return b.serviceFee }

// TotalAmount returns the amount held and later charged.
func (b *Booking) TotalAmount() int64 { return b.totalAmount }

// DepositAmount returns the security deposit.
func (b *Booking) DepositAmount() int64 { return b.depositAmount }

// Currency returns the currency code.
func (b *Booking) Currency() string { return b.currency }

// PaymentStatus returns the money state.
func (b *Booking) PaymentStatus() PaymentStatus { return b.paymentStatus }

// PaymentReference returns the id of the current payment hold.
func (b *Booking) PaymentReference() string { return b.paymentReference }

// PickupLocation returns where the vehicle is handed over.
func (b *Booking) PickupLocation() string { return b.pickupLocation }

// ReturnLocation returns where the vehicle is returned.
func (b *Booking) ReturnLocation() string { return b.returnLocation }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// ContactShared reports whether contact details have been exchanged.
func (b *Booking) ContactShared() bool { return b.contactShared }

// OwnerReady reports whether the owner marked the handover ready.
func (b *Booking) OwnerReady() bool { return b.ownerReady }

// RenterReady reports whether the renter marked the handover ready.
func (b *Booking) RenterReady() bool { return b.renterReady }

// PickupChecklist returns the condition report taken at pickup, or nil.
func (b *Booking) PickupChecklist() *Checklist { return b.pickupChecklist }

// ReturnChecklist returns the condition report taken at return, or nil.
func (b *Booking) ReturnChecklist() *Checklist { return b.returnChecklist }

// DisputeReason returns why the booking was disputed.
func (b *Booking) DisputeReason() string { return b.disputeReason }

// CancelReason returns why the booking was cancelled or rejected.
func (b *Booking) CancelReason() string { return b.cancelReason }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Behavior ---

// PaymentChange is the payment outcome an edge produced. An empty Reference keeps the
// current hold.
type PaymentChange struct {
	Status    PaymentStatus
	Reference string
}

// Apply performs an authorized edge. The resulting status and payment status must be
// compatible, so a confirm without a charged payment is rejected here.
func (b *Booking) Apply(edge Edge, actor Actor, payload TransitionPayload, pay *PaymentChange, now time.Time) error {
	if !edge.allowsFrom(b.status) {
		return domain.NewInvalidTransitionError(string(b.status), string(edge.Action))
	}
	to := edge.Target(b.status)
	ps, ref := b.paymentStatus, b.paymentReference
	if pay != nil {
		ps = pay.Status
		if pay.Reference != "" {
			ref = pay.Reference
		}
	}
	if !to.IsCompatible(ps) {
		return domain.NewInvalidStateError(
			fmt.Sprintf("%s/%s", b.status, b.paymentStatus),
			fmt.Sprintf("%s/%s", to, ps),
		)
	}

	now = now.UTC()
	switch edge.Action {
	case ActionReject, ActionCancel:
		b.cancelReason = payload.Reason
	case ActionShareContact:
		b.contactShared = true
	case ActionMarkReady:
		switch actor.Role {
		case RoleOwner:
			b.ownerReady = true
		case RoleRenter:
			b.renterReady = true
		}
	case ActionStart:
		b.pickupChecklist = payload.Checklist.stamped(actor.ID, now)
	case ActionRecordReturn:
		b.returnChecklist = payload.Checklist.stamped(actor.ID, now)
	case ActionComplete:
		if payload.Checklist != nil {
			b.returnChecklist = payload.Checklist.stamped(actor.ID, now)
		}
	case ActionDispute:
		b.disputeReason = payload.Reason
	}

	b.status = to
	b.paymentStatus = ps
	b.paymentReference = ref
	b.updatedAt = now
	return nil
}

// SetPayment changes only the payment side, for capture failures, re-authorization,
// reconciliation and refunds.
func (b *Booking) SetPayment(status PaymentStatus, reference string, now time.Time) error {
	if !b.status.IsCompatible(status) {
		return domain.NewInvalidStateError(
			fmt.Sprintf("%s/%s", b.status, b.paymentStatus),
			fmt.Sprintf("%s/%s", b.status, status),
		)
	}
	b.paymentStatus = status
	if reference != "" {
		b.paymentReference = reference
	}
	b.updatedAt = now.UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}
