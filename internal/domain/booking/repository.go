package booking

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a booking listing. Zero values mean no filter.
type ListFilter struct {
	RenterID  *uuid.UUID
	OwnerID   *uuid.UUID
	VehicleID *uuid.UUID
	Status    BookingStatus
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByVehicleAndStatus retrieves a vehicle's bookings in any of the given statuses.
	FindByVehicleAndStatus(ctx context.Context, vehicleID uuid.UUID, statuses []BookingStatus) ([]*Booking, error)

	// Insert persists a new booking. A blocking booking overlapping another blocking booking
	// of the same vehicle must be rejected atomically with VehicleUnavailable.
	Insert(ctx context.Context, booking *Booking) error

	// UpdateWithExpectedStatus persists changes only if the stored row still has
	// expectedStatus and the previous version; otherwise it returns StaleState.
	UpdateWithExpectedStatus(ctx context.Context, booking *Booking, expectedStatus BookingStatus) error

	// List retrieves bookings matching filter with pagination, newest first.
	List(ctx context.Context, filter ListFilter, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// ExistingIDs returns which of ids have a booking row.
	ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
}
