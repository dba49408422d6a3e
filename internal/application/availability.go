package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
)

const (
	maxAlternatives       = 3
	alternativeSearchDays = 14
)

// AvailabilityChecker answers whether a vehicle is free for a date range. It reads only
// and never reserves; the repository's insert re-checks overlap atomically.
type AvailabilityChecker struct {
	bookings bookingDomain.BookingRepository
}

// NewAvailabilityChecker creates a new AvailabilityChecker.
func NewAvailabilityChecker(bookings bookingDomain.BookingRepository) *AvailabilityChecker {
	return &AvailabilityChecker{bookings: bookings}
}

// IsAvailable reports whether no blocking booking of the vehicle overlaps dates.
func (c *AvailabilityChecker) IsAvailable(ctx context.Context, vehicleID uuid.UUID, dates bookingDomain.DateRange) (bool, error) {
	taken, err := c.blockedRanges(ctx, vehicleID)
	if err != nil {
		return false, err
	}
	return isFree(taken, dates), nil
}

// SuggestAlternatives returns up to three free windows of the same length near dates,
// nearest first, earlier before later at equal distance. No window starts before today.
func (c *AvailabilityChecker) SuggestAlternatives(ctx context.Context, vehicleID uuid.UUID, dates bookingDomain.DateRange, today time.Time) ([]bookingDomain.DateRange, error) {
	taken, err := c.blockedRanges(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	earliest := bookingDomain.TruncateDay(today)
	var out []bookingDomain.DateRange
	for offset := 1; offset <= alternativeSearchDays && len(out) < maxAlternatives; offset++ {
		for _, candidate := range []bookingDomain.DateRange{dates.Shift(-offset), dates.Shift(offset)} {
			if len(out) == maxAlternatives {
				break
			}
			if candidate.Start.Before(earliest) {
				continue
			}
			if isFree(taken, candidate) {
				out = append(out, candidate)
			}
		}
	}
	return out, nil
}

func (c *AvailabilityChecker) blockedRanges(ctx context.Context, vehicleID uuid.UUID) ([]bookingDomain.DateRange, error) {
	bookings, err := c.bookings.FindByVehicleAndStatus(ctx, vehicleID, bookingDomain.BlockingStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle bookings: %w", err)
	}
	ranges := make([]bookingDomain.DateRange, len(bookings))
	for i, bk := range bookings {
		ranges[i] = bk.Dates()
	}
	return ranges, nil
}

func isFree(taken []bookingDomain.DateRange, dates bookingDomain.DateRange) bool {
	for _, r := range taken {
		if r.Overlaps(dates) {
			return false
		}
	}
	return true
}
