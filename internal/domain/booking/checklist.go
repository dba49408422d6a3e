package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/vroomshare/service-booking/pkg/domain"
)

// Checklist is an immutable value object describing the vehicle's condition at pickup or return.
type Checklist struct {
	OdometerKm       int       `json:"odometer_km"`
	FuelLevelPercent int       `json:"fuel_level_percent"`
	DamageNotes      string    `json:"damage_notes"`
	Photos           []string  `json:"photos"`
	RecordedBy       uuid.UUID `json:"recorded_by"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// Validate checks the readings are physically plausible.
func (c Checklist) Validate() error {
	if c.OdometerKm < 0 {
		return domain.NewValidationError("odometer reading cannot be negative")
	}
	if c.FuelLevelPercent < 0 || c.FuelLevelPercent > 100 {
		return domain.NewValidationError("fuel level must be between 0 and 100")
	}
	for _, p := range c.Photos {
		if p == "" {
			return domain.NewValidationError("photo URL cannot be empty")
		}
	}
	return nil
}

// stamped returns a copy attributed to the given user at the given time.
func (c Checklist) stamped(by uuid.UUID, at time.Time) *Checklist {
	out := c
	out.Photos = append([]string(nil), c.Photos...)
	out.RecordedBy = by
	out.RecordedAt = at
	return &out
}
