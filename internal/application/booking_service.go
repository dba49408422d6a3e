package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
	vehicleDomain "github.com/vroomshare/service-booking/internal/domain/vehicle"
	"github.com/vroomshare/service-booking/internal/payment"
	"github.com/vroomshare/service-booking/pkg/domain"
)

const dateLayout = "2006-01-02"

// CreateBookingRequest holds the data needed to request a rental.
type CreateBookingRequest struct {
	VehicleID      uuid.UUID `json:"vehicle_id" binding:"required"`
	StartDate      string    `json:"start_date" binding:"required"`
	EndDate        string    `json:"end_date" binding:"required"`
	PickupLocation string    `json:"pickup_location" binding:"required"`
	ReturnLocation string    `json:"return_location" binding:"required"`
	InsuranceTier  string    `json:"insurance_tier"`
	PayerRef       string    `json:"payment_method" binding:"required"`
}

// validate checks the fields that need no lookup, so a bad request never reaches the gateway.
func (r CreateBookingRequest) validate() error {
	if r.VehicleID == uuid.Nil {
		return domain.NewValidationError("vehicle id is required")
	}
	if strings.TrimSpace(r.PickupLocation) == "" {
		return domain.NewValidationError("pickup location is required")
	}
	if strings.TrimSpace(r.ReturnLocation) == "" {
		return domain.NewValidationError("return location is required")
	}
	if r.PayerRef == "" {
		return domain.NewValidationError("payment method is required")
	}
	return nil
}

// QuoteRequest holds the data needed to price a rental without booking it.
type QuoteRequest struct {
	VehicleID     uuid.UUID `json:"vehicle_id" binding:"required"`
	StartDate     string    `json:"start_date" binding:"required"`
	EndDate       string    `json:"end_date" binding:"required"`
	InsuranceTier string    `json:"insurance_tier"`
}

// DateRangeDTO is the response representation of a date range.
type DateRangeDTO struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// AvailabilityDTO answers an availability check.
type AvailabilityDTO struct {
	VehicleID    uuid.UUID      `json:"vehicle_id"`
	Available    bool           `json:"available"`
	Alternatives []DateRangeDTO `json:"alternatives,omitempty"`
}

// QuoteDTO is the response representation of a price quote.
type QuoteDTO struct {
	VehicleID     uuid.UUID `json:"vehicle_id"`
	DurationDays  int       `json:"duration_days"`
	DailyRate     int64     `json:"daily_rate"`
	BasePrice     int64     `json:"base_price"`
	InsuranceTier string    `json:"insurance_tier"`
	InsuranceFee  int64     `json:"insurance_fee"`
	ServiceFee    int64     `json:"service_fee"`
	TotalAmount   int64     `json:"total_amount"`
	DepositAmount int64     `json:"deposit_amount"`
	Currency      string    `json:"currency"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID               uuid.UUID                `json:"id"`
	BookingNumber    string                   `json:"booking_number"`
	VehicleID        uuid.UUID                `json:"vehicle_id"`
	RenterID         uuid.UUID                `json:"renter_id"`
	OwnerID          uuid.UUID                `json:"owner_id"`
	Status           string                   `json:"status"`
	StartDate        string                   `json:"start_date"`
	EndDate          string                   `json:"end_date"`
	DurationDays     int                      `json:"duration_days"`
	DailyRate        int64                    `json:"daily_rate"`
	BasePrice        int64                    `json:"base_price"`
	InsuranceTier    string                   `json:"insurance_tier"`
	InsuranceFee     int64                    `json:"insurance_fee"`
	ServiceFee       int64                    `json:"service_fee"`
	TotalAmount      int64                    `json:"total_amount"`
	DepositAmount    int64                    `json:"deposit_amount"`
	Currency         string                   `json:"currency"`
	PaymentStatus    string                   `json:"payment_status"`
	PaymentReference string                   `json:"payment_reference"`
	PickupLocation   string                   `json:"pickup_location"`
	ReturnLocation   string                   `json:"return_location"`
	ContactShared    bool                     `json:"contact_shared"`
	OwnerReady       bool                     `json:"owner_ready"`
	RenterReady      bool                     `json:"renter_ready"`
	PickupChecklist  *bookingDomain.Checklist `json:"pickup_checklist,omitempty"`
	ReturnChecklist  *bookingDomain.Checklist `json:"return_checklist,omitempty"`
	DisputeReason    string                   `json:"dispute_reason,omitempty"`
	CancelReason     string                   `json:"cancel_reason,omitempty"`
	Version          int64                    `json:"version"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// PaymentCoordinator is the payment surface the booking service depends on.
type PaymentCoordinator interface {
	Authorize(ctx context.Context, req payment.AuthorizeRequest) (*paymentDomain.Hold, error)
	Capture(ctx context.Context, holdID uuid.UUID) (*paymentDomain.Hold, error)
	Release(ctx context.Context, holdID uuid.UUID) (*paymentDomain.Hold, error)
	Refund(ctx context.Context, holdID uuid.UUID, amount *int64) (*paymentDomain.Hold, error)
	FindHold(ctx context.Context, holdID uuid.UUID) (*paymentDomain.Hold, error)
}

// DiscrepancyQueue schedules an out-of-band retry of a recorded discrepancy.
type DiscrepancyQueue interface {
	EnqueueDiscrepancy(ctx context.Context, discrepancyID uuid.UUID) error
}

// BookingServiceDeps groups the collaborators of BookingService. Queue and Listeners are
// optional.
type BookingServiceDeps struct {
	Bookings        bookingDomain.BookingRepository
	Vehicles        vehicleDomain.VehicleCatalog
	Pricing         bookingDomain.PricingCalculator
	Payments        PaymentCoordinator
	Discrepancies   paymentDomain.DiscrepancyRepository
	Queue           DiscrepancyQueue
	Listeners       []TransitionListener
	DefaultCurrency string
}

// BookingService is the application service orchestrating booking use cases. It holds no
// locks: overlap is enforced by the repository and transitions by optimistic updates.
type BookingService struct {
	bookings      bookingDomain.BookingRepository
	vehicles      vehicleDomain.VehicleCatalog
	availability  *AvailabilityChecker
	pricing       bookingDomain.PricingCalculator
	payments      PaymentCoordinator
	discrepancies paymentDomain.DiscrepancyRepository
	queue         DiscrepancyQueue
	listeners     []TransitionListener
	currency      string
	now           func() time.Time
	logger        *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(deps BookingServiceDeps, logger *zap.Logger) *BookingService {
	currency := deps.DefaultCurrency
	if currency == "" {
		currency = "USD"
	}
	return &BookingService{
		bookings:      deps.Bookings,
		vehicles:      deps.Vehicles,
		availability:  NewAvailabilityChecker(deps.Bookings),
		pricing:       deps.Pricing,
		payments:      deps.Payments,
		discrepancies: deps.Discrepancies,
		queue:         deps.Queue,
		listeners:     deps.Listeners,
		currency:      currency,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
}

// AddListener registers a listener for committed transitions.
func (s *BookingService) AddListener(l TransitionListener) {
	s.listeners = append(s.listeners, l)
}

// CheckAvailability reports whether the vehicle is free and, if not, nearby free windows.
func (s *BookingService) CheckAvailability(ctx context.Context, vehicleID uuid.UUID, dates bookingDomain.DateRange) (*AvailabilityDTO, error) {
	if _, err := s.vehicles.FindByID(ctx, vehicleID); err != nil {
		return nil, err
	}
	available, err := s.availability.IsAvailable(ctx, vehicleID, dates)
	if err != nil {
		return nil, err
	}
	result := &AvailabilityDTO{VehicleID: vehicleID, Available: available}
	if !available {
		alts, err := s.availability.SuggestAlternatives(ctx, vehicleID, dates, s.now())
		if err != nil {
			return nil, err
		}
		result.Alternatives = toDateRangeDTOs(alts)
	}
	return result, nil
}

// QuotePrice prices a rental without reserving anything.
func (s *BookingService) QuotePrice(ctx context.Context, req QuoteRequest) (*QuoteDTO, error) {
	dates, err := bookingDomain.ParseDateRange(req.StartDate, req.EndDate, s.now())
	if err != nil {
		return nil, err
	}
	v, err := s.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	quote, err := s.quote(v, dates, req.InsuranceTier)
	if err != nil {
		return nil, err
	}
	return &QuoteDTO{
		VehicleID:     v.ID(),
		DurationDays:  quote.DurationDays,
		DailyRate:     quote.DailyRate,
		BasePrice:     quote.BasePrice,
		InsuranceTier: string(quote.InsuranceTier),
		InsuranceFee:  quote.InsuranceFee,
		ServiceFee:    quote.ServiceFee,
		TotalAmount:   quote.TotalAmount,
		DepositAmount: quote.DepositAmount,
		Currency:      s.currencyOf(v),
	}, nil
}

// CreateBookingRequest validates, prices and pre-authorizes a rental request, then stores it
// as pending. A failed insert releases the hold.
func (s *BookingService) CreateBookingRequest(ctx context.Context, actor bookingDomain.Actor, req CreateBookingRequest) (*BookingDTO, error) {
	if actor.Role != bookingDomain.RoleRenter {
		return nil, domain.NewForbiddenError("only renters can request bookings")
	}
	now := s.now()
	dates, err := bookingDomain.ParseDateRange(req.StartDate, req.EndDate, now)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	v, err := s.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	if v.IsOwnedBy(actor.ID) {
		return nil, domain.NewValidationError("owners cannot book their own vehicle")
	}
	if !v.IsBookable() {
		return nil, domain.NewVehicleUnavailableError(v.ID().String()).
			WithDetail("vehicle_status", string(v.Status()))
	}

	available, err := s.availability.IsAvailable(ctx, v.ID(), dates)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, s.unavailable(ctx, v.ID(), dates)
	}

	quote, err := s.quote(v, dates, req.InsuranceTier)
	if err != nil {
		return nil, err
	}

	// The id is fixed before authorizing so an orphaned hold can be matched to a missing row.
	bookingID := uuid.New()
	currency := s.currencyOf(v)
	hold, err := s.payments.Authorize(ctx, payment.AuthorizeRequest{
		BookingID: bookingID,
		PayerRef:  req.PayerRef,
		Amount:    quote.TotalAmount,
		Currency:  currency,
	})
	if err != nil {
		return nil, err
	}

	bk, err := bookingDomain.NewBooking(bookingDomain.NewBookingParams{
		ID:             bookingID,
		VehicleID:      v.ID(),
		RenterID:       actor.ID,
		OwnerID:        v.OwnerID(),
		Dates:          dates,
		Quote:          quote,
		Currency:       currency,
		PickupLocation: req.PickupLocation,
		ReturnLocation: req.ReturnLocation,
		HoldID:         hold.ID.String(),
	}, now)
	if err != nil {
		s.compensate(ctx, bookingID, hold.ID)
		return nil, err
	}

	if err := s.bookings.Insert(ctx, bk); err != nil {
		s.compensate(ctx, bookingID, hold.ID)
		if domain.HasCode(err, domain.CodeVehicleUnavailable) {
			return nil, s.unavailable(ctx, v.ID(), dates)
		}
		return nil, domain.NewPersistenceError("failed to save booking", err)
	}

	s.logger.Info("booking requested",
		zap.String("booking_id", bk.ID().String()),
		zap.String("vehicle_id", bk.VehicleID().String()),
		zap.String("dates", dates.String()),
		zap.Int64("total_amount", bk.TotalAmount()),
	)
	s.emit(ctx, bookingDomain.NewTransitionedEvent(bk, "", bookingDomain.RequestEdge, actor, now))

	result := toBookingDTO(bk)
	return &result, nil
}

// Transition applies a lifecycle action. Capture happens before the status moves; release
// happens after it has been committed and failures are left to reconciliation.
func (s *BookingService) Transition(
	ctx context.Context,
	bookingID uuid.UUID,
	actor bookingDomain.Actor,
	action bookingDomain.Action,
	payload bookingDomain.TransitionPayload,
) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	edge, err := bk.Authorize(action, actor, payload)
	if err != nil {
		return nil, err
	}

	switch edge.Payment {
	case bookingDomain.PaymentEffectCapture:
		err = s.captureAndConfirm(ctx, bk, edge, actor, payload)
	case bookingDomain.PaymentEffectRelease:
		err = s.transitionAndRelease(ctx, bk, edge, actor, payload)
	default:
		var evt bookingDomain.BookingTransitioned
		evt, err = s.persist(ctx, bk, edge, actor, payload, nil)
		if err == nil {
			s.emit(ctx, evt)
		}
	}
	if err != nil {
		return nil, err
	}

	result := toBookingDTO(bk)
	return &result, nil
}

// AcceptBooking lets the owner accept a pending request.
func (s *BookingService) AcceptBooking(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor) (*BookingDTO, error) {
	return s.Transition(ctx, bookingID, actor, bookingDomain.ActionAccept, bookingDomain.TransitionPayload{})
}

// RejectBooking lets the owner decline a request and releases the renter's hold.
func (s *BookingService) RejectBooking(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor, reason string) (*BookingDTO, error) {
	return s.Transition(ctx, bookingID, actor, bookingDomain.ActionReject, bookingDomain.TransitionPayload{Reason: reason})
}

// ConfirmAndPay captures the hold and confirms an accepted booking. payerRef is only used
// when a previous capture failed and a new hold must be placed.
func (s *BookingService) ConfirmAndPay(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor, payerRef string) (*BookingDTO, error) {
	return s.Transition(ctx, bookingID, actor, bookingDomain.ActionConfirm, bookingDomain.TransitionPayload{PayerRef: payerRef})
}

// CancelBooking lets the renter withdraw a pending request.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor, reason string) (*BookingDTO, error) {
	return s.Transition(ctx, bookingID, actor, bookingDomain.ActionCancel, bookingDomain.TransitionPayload{Reason: reason})
}

// ShareContact exchanges contact details between the parties.
func (s *BookingService) ShareContact(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor) (*BookingDTO, error) {
	return s.Transition(ctx, bookingID, actor, bookingDomain.ActionShareContact, bookingDomain.TransitionPayload{})
}

// MarkReady records that the acting party is ready for the handover.
func (s *BookingService) MarkReady(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor) (*BookingDTO, error) {
	return s.Transition(ctx, bookingID, actor, bookingDomain.ActionMarkReady, bookingDomain.TransitionPayload{})
}

// RecordPickup starts the rental with the pickup condition report.
func (s *BookingService) RecordPickup(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor, checklist bookingDomain.Checklist) (*BookingDTO, error) {
	return s.Transition(ctx, bookingID, actor, bookingDomain.ActionStart, bookingDomain.TransitionPayload{Checklist: &checklist})
}

// RecordReturn stores the return condition report.
func (s *BookingService) RecordReturn(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor, checklist bookingDomain.Checklist) (*BookingDTO, error) {
	return s.Transition(ctx, bookingID, actor, bookingDomain.ActionRecordReturn, bookingDomain.TransitionPayload{Checklist: &checklist})
}

// CompleteRental closes the rental. The return checklist may be given here if it was not
// recorded earlier.
func (s *BookingService) CompleteRental(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor, checklist *bookingDomain.Checklist) (*BookingDTO, error) {
	return s.Transition(ctx, bookingID, actor, bookingDomain.ActionComplete, bookingDomain.TransitionPayload{Checklist: checklist})
}

// OpenDispute escalates a confirmed or running rental to support.
func (s *BookingService) OpenDispute(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor, reason string) (*BookingDTO, error) {
	return s.Transition(ctx, bookingID, actor, bookingDomain.ActionDispute, bookingDomain.TransitionPayload{Reason: reason})
}

// GetBooking retrieves a booking visible to the actor.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID, actor bookingDomain.Actor) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actor.Role != bookingDomain.RoleAdmin && actor.ID != bk.RenterID() && actor.ID != bk.OwnerID() {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListBookings retrieves the actor's bookings as renter or as owner.
func (s *BookingService) ListBookings(ctx context.Context, actor bookingDomain.Actor, status string, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	var filter bookingDomain.ListFilter
	switch actor.Role {
	case bookingDomain.RoleRenter:
		filter.RenterID = &actor.ID
	case bookingDomain.RoleOwner:
		filter.OwnerID = &actor.ID
	default:
		return nil, domain.NewValidationError("bookings can be listed as renter or owner")
	}
	if status != "" {
		st, err := bookingDomain.ParseBookingStatus(status)
		if err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		filter.Status = st
	}

	bookings, total, err := s.bookings.List(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	return &result, nil
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// DiscrepancyDTO is the response representation of a payment discrepancy.
type DiscrepancyDTO struct {
	ID        uuid.UUID `json:"id"`
	BookingID uuid.UUID `json:"booking_id"`
	HoldID    uuid.UUID `json:"hold_id"`
	Operation string    `json:"operation"`
	Amount    *int64    `json:"amount,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Attempts  int       `json:"attempts"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, filter bookingDomain.ListFilter, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.bookings.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// ListDiscrepancies returns recorded payment discrepancies (admin).
func (s *BookingService) ListDiscrepancies(ctx context.Context, unresolvedOnly bool, page, limit int) ([]DiscrepancyDTO, int64, error) {
	items, total, err := s.discrepancies.List(ctx, unresolvedOnly, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list discrepancies: %w", err)
	}
	dtos := make([]DiscrepancyDTO, len(items))
	for i, d := range items {
		dtos[i] = DiscrepancyDTO{
			ID:        d.ID,
			BookingID: d.BookingID,
			HoldID:    d.HoldID,
			Operation: d.Operation,
			Amount:    d.Amount,
			LastError: d.LastError,
			Attempts:  d.Attempts,
			Resolved:  d.Resolved,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		}
	}
	return dtos, total, nil
}

// --- Helpers ---

// persist applies the edge and writes the booking guarded by its previous status and
// version. It returns the event to emit once all side effects are done.
func (s *BookingService) persist(
	ctx context.Context,
	bk *bookingDomain.Booking,
	edge bookingDomain.Edge,
	actor bookingDomain.Actor,
	payload bookingDomain.TransitionPayload,
	pay *bookingDomain.PaymentChange,
) (bookingDomain.BookingTransitioned, error) {
	from := bk.Status()
	now := s.now()
	if err := bk.Apply(edge, actor, payload, pay, now); err != nil {
		return bookingDomain.BookingTransitioned{}, err
	}
	bk.IncrementVersion()
	if err := s.bookings.UpdateWithExpectedStatus(ctx, bk, from); err != nil {
		return bookingDomain.BookingTransitioned{}, err
	}

	s.logger.Info("booking transitioned",
		zap.String("booking_id", bk.ID().String()),
		zap.String("action", string(edge.Action)),
		zap.String("from", string(from)),
		zap.String("to", string(bk.Status())),
		zap.String("actor_role", string(actor.Role)),
	)
	return bookingDomain.NewTransitionedEvent(bk, from, edge, actor, now), nil
}

// emit hands a committed transition to every listener. Listeners run after the caller
// may have gone away, so cancellation is detached.
func (s *BookingService) emit(ctx context.Context, evt bookingDomain.BookingTransitioned) {
	ctx = context.WithoutCancel(ctx)
	for _, l := range s.listeners {
		l.OnTransition(ctx, evt)
	}
}

func (s *BookingService) quote(v *vehicleDomain.Vehicle, dates bookingDomain.DateRange, tier string) (bookingDomain.Quote, error) {
	insurance, err := bookingDomain.ParseInsuranceTier(tier)
	if err != nil {
		return bookingDomain.Quote{}, err
	}
	return s.pricing.Quote(bookingDomain.PricingParams{
		DailyRate:     v.DailyRate(),
		DurationDays:  dates.Days(),
		InsuranceTier: insurance,
		DepositPolicy: bookingDomain.DepositPolicy{Amount: v.DepositAmount()},
	})
}

func (s *BookingService) currencyOf(v *vehicleDomain.Vehicle) string {
	if v.Currency() != "" {
		return v.Currency()
	}
	return s.currency
}

// unavailable builds a VehicleUnavailable error carrying nearby free windows.
func (s *BookingService) unavailable(ctx context.Context, vehicleID uuid.UUID, dates bookingDomain.DateRange) error {
	err := domain.NewVehicleUnavailableError(vehicleID.String())
	alts, altErr := s.availability.SuggestAlternatives(ctx, vehicleID, dates, s.now())
	if altErr != nil {
		s.logger.Warn("failed to suggest alternative dates",
			zap.String("vehicle_id", vehicleID.String()), zap.Error(altErr))
		return err
	}
	return err.WithDetail("alternatives", toDateRangeDTOs(alts))
}

func toDateRangeDTOs(ranges []bookingDomain.DateRange) []DateRangeDTO {
	out := make([]DateRangeDTO, len(ranges))
	for i, r := range ranges {
		out[i] = DateRangeDTO{StartDate: r.Start.Format(dateLayout), EndDate: r.End.Format(dateLayout)}
	}
	return out
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:               bk.ID(),
		BookingNumber:    bk.BookingNumber(),
		VehicleID:        bk.VehicleID(),
		RenterID:         bk.RenterID(),
		OwnerID:          bk.OwnerID(),
		Status:           string(bk.Status()),
		StartDate:        bk.Dates().Start.Format(dateLayout),
		EndDate:          bk.Dates().End.Format(dateLayout),
		DurationDays:     bk.DurationDays(),
		DailyRate:        bk.DailyRate(),
		BasePrice:        bk.BasePrice(),
		InsuranceTier:    string(bk.InsuranceTier()),
		InsuranceFee:     bk.InsuranceFee(),
		ServiceFee:       bk.ServiceFee(),
		TotalAmount:      bk.TotalAmount(),
		DepositAmount:    bk.DepositAmount(),
		Currency:         bk.Currency(),
		PaymentStatus:    string(bk.PaymentStatus()),
		PaymentReference: bk.PaymentReference(),
		PickupLocation:   bk.PickupLocation(),
		ReturnLocation:   bk.ReturnLocation(),
		ContactShared:    bk.ContactShared(),
		OwnerReady:       bk.OwnerReady(),
		RenterReady:      bk.RenterReady(),
		PickupChecklist:  bk.PickupChecklist(),
		ReturnChecklist:  bk.ReturnChecklist(),
		DisputeReason:    bk.DisputeReason(),
		CancelReason:     bk.CancelReason(),
		Version:          bk.Version(),
		CreatedAt:        bk.CreatedAt(),
		UpdatedAt:        bk.UpdatedAt(),
	}
}
