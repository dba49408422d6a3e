package vehicle

import (
	"context"

	"github.com/google/uuid"
)

// VehicleCatalog is the read side used when pricing and validating booking requests.
type VehicleCatalog interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Vehicle, error)
}

// VehicleRepository maintains the local catalog from listing events. Upsert ignores
// versions older than the stored one.
type VehicleRepository interface {
	VehicleCatalog
	Upsert(ctx context.Context, vehicle *Vehicle) error
}
