package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	vehicleDomain "github.com/vroomshare/service-booking/internal/domain/vehicle"
	"github.com/vroomshare/service-booking/pkg/domain"
)

// VehicleRepository implements vehicle.VehicleRepository.
type VehicleRepository struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*vehicleDomain.Vehicle
}

// NewVehicleRepository creates a repository seeded with vehicles.
func NewVehicleRepository(vehicles ...*vehicleDomain.Vehicle) *VehicleRepository {
	r := &VehicleRepository{rows: make(map[uuid.UUID]*vehicleDomain.Vehicle)}
	for _, v := range vehicles {
		r.rows[v.ID()] = v
	}
	return r
}

func (r *VehicleRepository) FindByID(_ context.Context, id uuid.UUID) (*vehicleDomain.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("Vehicle", id.String())
	}
	return v, nil
}

func (r *VehicleRepository) Upsert(_ context.Context, v *vehicleDomain.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rows[v.ID()]; ok && cur.Version() > v.Version() {
		return nil
	}
	r.rows[v.ID()] = v
	return nil
}
