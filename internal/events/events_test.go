package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vroomshare/service-booking/internal/application"
	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
	vehicleDomain "github.com/vroomshare/service-booking/internal/domain/vehicle"
	"github.com/vroomshare/service-booking/internal/payment"
	"github.com/vroomshare/service-booking/internal/repository/memory"
	"github.com/vroomshare/service-booking/pkg/domain"
	"github.com/vroomshare/service-booking/pkg/kafka"
)

type mockRecorder struct{ mock.Mock }

func (m *mockRecorder) MarkCaptureOutcome(ctx context.Context, holdID uuid.UUID, succeeded bool, reason string) (payment.CaptureResolution, error) {
	args := m.Called(ctx, holdID, succeeded, reason)
	return args.Get(0).(payment.CaptureResolution), args.Error(1)
}

type mockCompleter struct{ mock.Mock }

func (m *mockCompleter) CompleteCapture(ctx context.Context, holdID uuid.UUID, resolution payment.CaptureResolution) error {
	return m.Called(ctx, holdID, resolution).Error(0)
}

type capturedEvent struct {
	topic string
	event kafka.CloudEvent
}

type fakePublisher struct {
	err    error
	events []capturedEvent
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic string, event kafka.CloudEvent) error {
	p.events = append(p.events, capturedEvent{topic: topic, event: event})
	return p.err
}

func message(t *testing.T, eventType string, data interface{}) kafkago.Message {
	t.Helper()
	ce, err := kafka.NewCloudEvent("service-payment", eventType, data)
	require.NoError(t, err)
	raw, err := json.Marshal(ce)
	require.NoError(t, err)
	return kafkago.Message{Value: raw}
}

func TestPaymentEventConsumer_CaptureSucceeded(t *testing.T) {
	recorder, completer := &mockRecorder{}, &mockCompleter{}
	c := &PaymentEventConsumer{payments: recorder, bookings: completer, logger: zap.NewNop()}
	holdID := uuid.New()

	recorder.On("MarkCaptureOutcome", mock.Anything, holdID, true, "").Return(payment.ResolutionCaptured, nil)
	completer.On("CompleteCapture", mock.Anything, holdID, payment.ResolutionCaptured).Return(nil)

	err := c.handleMessage(context.Background(), message(t, PaymentCaptureSucceeded, CaptureOutcomeEvent{HoldID: holdID, BookingID: uuid.New()}))

	require.NoError(t, err)
	recorder.AssertExpectations(t)
	completer.AssertExpectations(t)
}

func TestPaymentEventConsumer_CaptureFailed(t *testing.T) {
	recorder, completer := &mockRecorder{}, &mockCompleter{}
	c := &PaymentEventConsumer{payments: recorder, bookings: completer, logger: zap.NewNop()}
	holdID := uuid.New()

	recorder.On("MarkCaptureOutcome", mock.Anything, holdID, false, "card_declined").Return(payment.ResolutionFailed, nil)
	completer.On("CompleteCapture", mock.Anything, holdID, payment.ResolutionFailed).Return(errors.New("db down"))

	err := c.handleMessage(context.Background(), message(t, PaymentCaptureFailed, CaptureOutcomeEvent{HoldID: holdID, Reason: "card_declined"}))

	assert.Error(t, err)
	recorder.AssertExpectations(t)
	completer.AssertExpectations(t)
}

type timeoutCaptureGateway struct {
	*payment.SandboxGateway
}

func (timeoutCaptureGateway) Capture(context.Context, string, string) error {
	return errors.New("read tcp: i/o timeout")
}

type brokenUpdateRepo struct {
	*memory.BookingRepository
	broken bool
}

func (r *brokenUpdateRepo) UpdateWithExpectedStatus(ctx context.Context, b *bookingDomain.Booking, expected bookingDomain.BookingStatus) error {
	if r.broken {
		return errors.New("connection reset by peer")
	}
	return r.BookingRepository.UpdateWithExpectedStatus(ctx, b, expected)
}

func TestPaymentEventConsumer_ConfirmFailureLeavesDiscrepancy(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	v, err := vehicleDomain.NewVehicle(uuid.New(), uuid.New(), "2019 Honda Civic", 250, nil, "USD", vehicleDomain.StatusAvailable, 1)
	require.NoError(t, err)

	bookings := &brokenUpdateRepo{BookingRepository: memory.NewBookingRepository()}
	discrepancies := memory.NewDiscrepancyRepository()
	coordinator := payment.NewCoordinator(timeoutCaptureGateway{payment.NewSandboxGateway()}, memory.NewHoldRepository(), payment.DefaultConfig(), logger)
	svc := application.NewBookingService(application.BookingServiceDeps{
		Bookings:      bookings,
		Vehicles:      memory.NewVehicleRepository(v),
		Pricing:       bookingDomain.NewStandardPricingCalculator(bookingDomain.DefaultPricingPolicy()),
		Payments:      coordinator,
		Discrepancies: discrepancies,
	}, logger)

	renter := bookingDomain.Actor{ID: uuid.New(), Role: bookingDomain.RoleRenter}
	owner := bookingDomain.Actor{ID: v.OwnerID(), Role: bookingDomain.RoleOwner}
	start := time.Now().UTC().AddDate(0, 0, 10)
	bk, err := svc.CreateBookingRequest(ctx, renter, application.CreateBookingRequest{
		VehicleID:      v.ID(),
		StartDate:      start.Format("2006-01-02"),
		EndDate:        start.AddDate(0, 0, 3).Format("2006-01-02"),
		PickupLocation: "12 Harbour St",
		ReturnLocation: "12 Harbour St",
		PayerRef:       "pm_card_visa",
	})
	require.NoError(t, err)
	_, err = svc.AcceptBooking(ctx, bk.ID, owner)
	require.NoError(t, err)
	_, err = svc.ConfirmAndPay(ctx, bk.ID, renter, "")
	require.True(t, domain.HasCode(err, domain.CodePaymentPending))

	bookings.broken = true
	c := &PaymentEventConsumer{payments: coordinator, bookings: svc, logger: logger}
	holdID := uuid.MustParse(bk.PaymentReference)
	err = c.handleMessage(ctx, message(t, PaymentCaptureSucceeded, CaptureOutcomeEvent{HoldID: holdID, BookingID: bk.ID}))
	assert.Error(t, err)

	open, err := discrepancies.ListUnresolved(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, paymentDomain.OperationConfirm, open[0].Operation)
	assert.Equal(t, holdID, open[0].HoldID)

	bookings.broken = false
	require.NoError(t, svc.SettleDiscrepancy(ctx, open[0].ID))
	stored, err := svc.GetBooking(ctx, bk.ID, renter)
	require.NoError(t, err)
	assert.Equal(t, string(bookingDomain.StatusConfirmed), stored.Status)
}

func TestPaymentEventConsumer_IgnoresForeignHolds(t *testing.T) {
	recorder, completer := &mockRecorder{}, &mockCompleter{}
	c := &PaymentEventConsumer{payments: recorder, bookings: completer, logger: zap.NewNop()}
	holdID := uuid.New()

	recorder.On("MarkCaptureOutcome", mock.Anything, holdID, true, "").
		Return(payment.ResolutionUnknown, domain.NewInvalidStateError("held", "capture outcome"))

	err := c.handleMessage(context.Background(), message(t, PaymentCaptureSucceeded, CaptureOutcomeEvent{HoldID: holdID}))

	require.NoError(t, err)
	completer.AssertNotCalled(t, "CompleteCapture", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentEventConsumer_SkipsMalformedAndUnknown(t *testing.T) {
	recorder, completer := &mockRecorder{}, &mockCompleter{}
	c := &PaymentEventConsumer{payments: recorder, bookings: completer, logger: zap.NewNop()}

	assert.NoError(t, c.handleMessage(context.Background(), kafkago.Message{Value: []byte("not json")}))
	assert.NoError(t, c.handleMessage(context.Background(), message(t, "payment.refund.succeeded", map[string]string{})))
	assert.NoError(t, c.handleMessage(context.Background(), message(t, PaymentCaptureSucceeded, CaptureOutcomeEvent{})))
	recorder.AssertNotCalled(t, "MarkCaptureOutcome", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVehicleListingConsumer_Upserts(t *testing.T) {
	catalog := memory.NewVehicleRepository()
	c := &VehicleListingConsumer{catalog: catalog, logger: zap.NewNop()}
	ctx := context.Background()
	listing := VehicleListingEvent{
		VehicleID: uuid.New(),
		OwnerID:   uuid.New(),
		Title:     "2021 Toyota RAV4",
		DailyRate: 300,
		Currency:  "USD",
		Status:    "available",
		Version:   2,
	}

	require.NoError(t, c.handleMessage(ctx, message(t, VehicleListed, listing)))
	v, err := catalog.FindByID(ctx, listing.VehicleID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), v.DailyRate())
	assert.True(t, v.IsBookable())

	stale := listing
	stale.Version = 1
	stale.DailyRate = 100
	require.NoError(t, c.handleMessage(ctx, message(t, VehicleUpdated, stale)))
	v, _ = catalog.FindByID(ctx, listing.VehicleID)
	assert.Equal(t, int64(300), v.DailyRate())

	delisted := listing
	delisted.Version = 3
	require.NoError(t, c.handleMessage(ctx, message(t, VehicleDelisted, delisted)))
	v, _ = catalog.FindByID(ctx, listing.VehicleID)
	assert.Equal(t, vehicleDomain.StatusDelisted, v.Status())
	assert.False(t, v.IsBookable())
}

func TestVehicleListingConsumer_SkipsInvalidListing(t *testing.T) {
	catalog := memory.NewVehicleRepository()
	c := &VehicleListingConsumer{catalog: catalog, logger: zap.NewNop()}
	listing := VehicleListingEvent{VehicleID: uuid.New(), OwnerID: uuid.New(), DailyRate: 0, Currency: "USD", Status: "available"}

	require.NoError(t, c.handleMessage(context.Background(), message(t, VehicleListed, listing)))
	_, err := catalog.FindByID(context.Background(), listing.VehicleID)
	assert.True(t, domain.HasCode(err, domain.CodeNotFound))
}

func TestBookingEventPublisher_OnTransition(t *testing.T) {
	pub := &fakePublisher{}
	p := NewBookingEventPublisher(pub, zap.NewNop())
	evt := bookingDomain.BookingTransitioned{
		BookingID: uuid.New(),
		From:      bookingDomain.StatusPending,
		To:        bookingDomain.StatusAccepted,
		Action:    bookingDomain.ActionAccept,
		At:        time.Now().UTC(),
	}

	p.OnTransition(context.Background(), evt)

	require.Len(t, pub.events, 1)
	got := pub.events[0]
	assert.Equal(t, bookingDomain.TopicBookingEvents, got.topic)
	assert.Equal(t, "booking.accepted", got.event.Type)
	assert.Equal(t, evt.BookingID.String(), got.event.Subject)

	var decoded bookingDomain.BookingTransitioned
	require.NoError(t, got.event.ParseData(&decoded))
	assert.Equal(t, evt.BookingID, decoded.BookingID)
}

func TestBookingEventPublisher_FailureIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	p := NewBookingEventPublisher(pub, zap.NewNop())

	assert.NotPanics(t, func() {
		p.OnTransition(context.Background(), bookingDomain.BookingTransitioned{BookingID: uuid.New(), Action: bookingDomain.ActionRequest})
	})
	assert.Len(t, pub.events, 1)
}

func TestNotificationSink_Notify(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewNotificationSink(pub)
	userID := uuid.New()

	err := sink.Notify(context.Background(), userID, "booking.confirmed", map[string]interface{}{"booking_number": "RB-ABC123"})

	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, bookingDomain.TopicNotificationRequests, pub.events[0].topic)
	assert.Equal(t, userID.String(), pub.events[0].event.Subject)

	var req NotificationRequest
	require.NoError(t, pub.events[0].event.ParseData(&req))
	assert.Equal(t, userID, req.UserID)
	assert.Equal(t, "RB-ABC123", req.Payload["booking_number"])
}
