//go:build integration

package main_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vroomshare/service-booking/internal/application"
	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	vehicleDomain "github.com/vroomshare/service-booking/internal/domain/vehicle"
	bookingEvents "github.com/vroomshare/service-booking/internal/events"
	"github.com/vroomshare/service-booking/pkg/domain"
)

func createRequest(vehicleID uuid.UUID, start, end time.Time) application.CreateBookingRequest {
	return application.CreateBookingRequest{
		VehicleID:      vehicleID,
		StartDate:      start.Format("2006-01-02"),
		EndDate:        end.Format("2006-01-02"),
		PickupLocation: "12 Harbour St",
		ReturnLocation: "12 Harbour St",
		InsuranceTier:  "basic",
		PayerRef:       "pm_card_visa",
	}
}

// TestConcurrentRequests_OneBookingPerVehicleDates races overlapping requests against the
// exclusion constraint. Exactly one may win.
func TestConcurrentRequests_OneBookingPerVehicleDates(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	v := seedVehicle(t, stack.Vehicles, 120)
	start := time.Now().UTC().AddDate(0, 0, 14)

	const racers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			renter := bookingDomain.Actor{ID: uuid.New(), Role: bookingDomain.RoleRenter}
			req := createRequest(v.ID(), start.AddDate(0, 0, i%2), start.AddDate(0, 0, 3))
			_, err := stack.Service.CreateBookingRequest(context.Background(), renter, req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case domain.HasCode(err, domain.CodeVehicleUnavailable):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, racers-1, rejected)

	var holds int64
	require.NoError(t, infra.DB.Table("payment_holds").Where("state = ?", "held").Count(&holds).Error)
	assert.Equal(t, int64(1), holds, "losing requests must not keep a hold")
}

// TestConfirmFlow_PublishesBookingEvents walks a request through acceptance and payment and
// checks the committed transition reaches booking.events.
func TestConfirmFlow_PublishesBookingEvents(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()

	v := seedVehicle(t, stack.Vehicles, 80)
	start := time.Now().UTC().AddDate(0, 0, 7)
	ctx := context.Background()

	renter := bookingDomain.Actor{ID: uuid.New(), Role: bookingDomain.RoleRenter}
	owner := bookingDomain.Actor{ID: v.OwnerID(), Role: bookingDomain.RoleOwner}

	created, err := stack.Service.CreateBookingRequest(ctx, renter, createRequest(v.ID(), start, start.AddDate(0, 0, 2)))
	require.NoError(t, err)
	assert.Equal(t, "pending", created.Status)

	_, err = stack.Service.AcceptBooking(ctx, created.ID, owner)
	require.NoError(t, err)

	confirmed, err := stack.Service.ConfirmAndPay(ctx, created.ID, renter, "")
	require.NoError(t, err)
	assert.Equal(t, "confirmed", confirmed.Status)
	assert.Equal(t, "charged", confirmed.PaymentStatus)

	ce := consumeOneEvent(t, infra.KafkaBrokers, bookingDomain.TopicBookingEvents,
		"booking.confirmed", created.ID.String(), 15*time.Second)

	var evt bookingDomain.BookingTransitioned
	require.NoError(t, ce.ParseData(&evt))
	assert.Equal(t, created.ID, evt.BookingID)
	assert.Equal(t, bookingDomain.StatusAccepted, evt.From)
	assert.Equal(t, bookingDomain.StatusConfirmed, evt.To)
}

// TestListingEvents_SyncVehicleCatalog verifies listing events keep the local catalog current.
func TestListingEvents_SyncVehicleCatalog(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupBookingStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Listings.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Listings.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	vehicleID := uuid.New()
	listing := bookingEvents.VehicleListingEvent{
		VehicleID: vehicleID,
		OwnerID:   uuid.New(),
		Title:     "2022 Tesla Model 3",
		DailyRate: 150,
		Currency:  "USD",
		Status:    string(vehicleDomain.StatusAvailable),
		Version:   1,
	}
	publishTestEvent(t, infra.KafkaBrokers, bookingEvents.TopicVehicleListings,
		"service-listing", bookingEvents.VehicleListed, listing)

	require.Eventually(t, func() bool {
		v, err := stack.Vehicles.FindByID(context.Background(), vehicleID)
		return err == nil && v.DailyRate() == 150
	}, 15*time.Second, 200*time.Millisecond, "vehicle was not synced")

	listing.Version = 2
	publishTestEvent(t, infra.KafkaBrokers, bookingEvents.TopicVehicleListings,
		"service-listing", bookingEvents.VehicleDelisted, listing)

	require.Eventually(t, func() bool {
		v, err := stack.Vehicles.FindByID(context.Background(), vehicleID)
		return err == nil && v.Status() == vehicleDomain.StatusDelisted
	}, 15*time.Second, 200*time.Millisecond, "vehicle was not delisted")
}
