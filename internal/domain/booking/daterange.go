package booking

import (
	"time"

	"github.com/vroomshare/service-booking/pkg/domain"
)

const (
	day        = 24 * time.Hour
	dateLayout = "2006-01-02"
)

// DateRange is a closed range of calendar days. Both ends are UTC midnight and the end day is
// part of the range for overlap purposes.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// TruncateDay returns t as UTC midnight of its calendar day.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDateRange validates and normalizes a requested rental range. The end must be strictly
// after the start and neither may fall before today.
func NewDateRange(start, end, today time.Time) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, domain.NewValidationError("start and end dates are required")
	}
	r := DateRange{Start: TruncateDay(start), End: TruncateDay(end)}
	if !r.End.After(r.Start) {
		return DateRange{}, domain.NewValidationError("end date must be after start date")
	}
	if r.Start.Before(TruncateDay(today)) {
		return DateRange{}, domain.NewValidationError("start date cannot be in the past")
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD strings and validates them with NewDateRange.
func ParseDateRange(start, end string, today time.Time) (DateRange, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return DateRange{}, domain.NewValidationError("start date must be formatted as YYYY-MM-DD")
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return DateRange{}, domain.NewValidationError("end date must be formatted as YYYY-MM-DD")
	}
	return NewDateRange(s, e, today)
}

// Days returns the billable rental duration, never less than one day.
func (r DateRange) Days() int {
	d := int((r.End.Sub(r.Start) + day - 1) / day)
	if d < 1 {
		return 1
	}
	return d
}

// Overlaps reports whether the two closed ranges share at least one day.
func (r DateRange) Overlaps(o DateRange) bool {
	return !r.Start.After(o.End) && !r.End.Before(o.Start)
}

// Shift returns the range moved by n days.
func (r DateRange) Shift(n int) DateRange {
	return DateRange{Start: r.Start.AddDate(0, 0, n), End: r.End.AddDate(0, 0, n)}
}

// String formats the range as start..end.
func (r DateRange) String() string {
	return r.Start.Format(dateLayout) + ".." + r.End.Format(dateLayout)
}
