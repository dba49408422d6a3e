// Package memory holds in-process repository test doubles. The server always runs on the
// GORM repositories.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	"github.com/vroomshare/service-booking/pkg/domain"
)

// BookingRepository implements booking.BookingRepository. Insert checks overlap and writes
// under one lock, which plays the role of the database exclusion constraint.
type BookingRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]bookingDomain.Snapshot
}

// NewBookingRepository creates an empty repository.
func NewBookingRepository() *BookingRepository {
	return &BookingRepository{rows: make(map[uuid.UUID]bookingDomain.Snapshot)}
}

func (r *BookingRepository) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return bookingDomain.ReconstructBooking(s), nil
}

func (r *BookingRepository) FindByVehicleAndStatus(_ context.Context, vehicleID uuid.UUID, statuses []bookingDomain.BookingStatus) ([]*bookingDomain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*bookingDomain.Booking
	for _, s := range r.rows {
		if s.VehicleID == vehicleID && hasStatus(statuses, s.Status) {
			out = append(out, bookingDomain.ReconstructBooking(s))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *BookingRepository) Insert(_ context.Context, b *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[b.ID()]; exists {
		return domain.NewConflictError("booking already exists")
	}
	snap := b.Snapshot()
	if snap.Status.IsBlocking() {
		for _, other := range r.rows {
			if other.VehicleID == snap.VehicleID && other.Status.IsBlocking() && other.Dates.Overlaps(snap.Dates) {
				return domain.NewVehicleUnavailableError(snap.VehicleID.String())
			}
		}
	}
	r.rows[snap.ID] = snap
	return nil
}

func (r *BookingRepository) UpdateWithExpectedStatus(_ context.Context, b *bookingDomain.Booking, expected bookingDomain.BookingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[b.ID()]
	if !ok {
		return domain.NewNotFoundError("Booking", b.ID().String())
	}
	if stored.Status != expected || stored.Version != b.Version()-1 {
		return domain.NewStaleStateError("booking was modified by another transaction")
	}
	r.rows[b.ID()] = b.Snapshot()
	return nil
}

func (r *BookingRepository) List(_ context.Context, f bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*bookingDomain.Booking
	for _, s := range r.rows {
		if f.RenterID != nil && s.RenterID != *f.RenterID {
			continue
		}
		if f.OwnerID != nil && s.OwnerID != *f.OwnerID {
			continue
		}
		if f.VehicleID != nil && s.VehicleID != *f.VehicleID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		all = append(all, bookingDomain.ReconstructBooking(s))
	}
	sortNewestFirst(all)
	total := int64(len(all))
	return paginate(all, page, limit), total, nil
}

func (r *BookingRepository) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int64)
	for _, s := range r.rows {
		counts[string(s.Status)]++
	}
	return counts, nil
}

func (r *BookingRepository) ExistingIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.rows[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func hasStatus(statuses []bookingDomain.BookingStatus, s bookingDomain.BookingStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func sortNewestFirst(bs []*bookingDomain.Booking) {
	sort.SliceStable(bs, func(i, j int) bool {
		if bs[i].CreatedAt().Equal(bs[j].CreatedAt()) {
			return bs[i].ID().String() < bs[j].ID().String()
		}
		return bs[i].CreatedAt().After(bs[j].CreatedAt())
	})
}

func paginate[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return items
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
