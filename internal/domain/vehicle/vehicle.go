package vehicle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VehicleStatus represents the listing state of a vehicle.
type VehicleStatus string

const (
	StatusAvailable   VehicleStatus = "available"
	StatusRented      VehicleStatus = "rented"
	StatusMaintenance VehicleStatus = "maintenance"
	StatusDelisted    VehicleStatus = "delisted"
)

// IsValid returns true if the status is recognized.
func (s VehicleStatus) IsValid() bool {
	switch s {
	case StatusAvailable, StatusRented, StatusMaintenance, StatusDelisted:
		return true
	}
	return false
}

// Vehicle is the booking service's read model of a listed vehicle. The listing service owns
// the data and the catalog is kept in sync from its events.
type Vehicle struct {
	id            uuid.UUID
	ownerID       uuid.UUID
	title         string
	dailyRate     int64
	depositAmount *int64
	currency      string
	status        VehicleStatus
	version       int64
	updatedAt     time.Time
}

// NewVehicle creates a validated vehicle read model.
func NewVehicle(
	id, ownerID uuid.UUID,
	title string,
	dailyRate int64,
	depositAmount *int64,
	currency string,
	status VehicleStatus,
	version int64,
) (*Vehicle, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("vehicle ID is required")
	}
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("owner ID is required")
	}
	if dailyRate <= 0 {
		return nil, fmt.Errorf("daily rate must be positive")
	}
	if depositAmount != nil && *depositAmount < 0 {
		return nil, fmt.Errorf("deposit amount cannot be negative")
	}
	if currency == "" {
		return nil, fmt.Errorf("currency is required")
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid vehicle status: %s", status)
	}
	return &Vehicle{
		id:            id,
		ownerID:       ownerID,
		title:         title,
		dailyRate:     dailyRate,
		depositAmount: depositAmount,
		currency:      currency,
		status:        status,
		version:       version,
		updatedAt:     time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds a Vehicle from persistence data (no validation).
func Reconstruct(
	id, ownerID uuid.UUID,
	title string,
	dailyRate int64,
	depositAmount *int64,
	currency string,
	status VehicleStatus,
	version int64,
	updatedAt time.Time,
) *Vehicle {
	return &Vehicle{
		id:            id,
		ownerID:       ownerID,
		title:         title,
		dailyRate:     dailyRate,
		depositAmount: depositAmount,
		currency:      currency,
		status:        status,
		version:       version,
		updatedAt:     updatedAt,
	}
}

// --- Getters ---

func (v *Vehicle) ID() uuid.UUID { return v.id }
func (v *Vehicle) OwnerID() uuid.UUID { return v.ownerID }
func (v *Vehicle) Title() string { return v.title }
func (v *Vehicle) DailyRate() int64 { return v.dailyRate }
func (v *Vehicle) DepositAmount() *int64 { return v.depositAmount }
func (v *Vehicle) Currency() string { return v.currency }
func (v *Vehicle) Status() VehicleStatus { return v.status }
func (v *Vehicle) Version() int64 { return v.version }
func (v *Vehicle) UpdatedAt() time.Time { return v.updatedAt }

// --- Behavior ---

// IsOwnedBy checks if the vehicle belongs to the given owner.
func (v *Vehicle) IsOwnedBy(ownerID uuid.UUID) bool {
	return v.ownerID == ownerID
}

// IsBookable returns true if the vehicle accepts new requests.
func (v *Vehicle) IsBookable() bool {
	return v.status == StatusAvailable
}
