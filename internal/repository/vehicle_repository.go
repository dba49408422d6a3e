package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	vehicleDomain "github.com/vroomshare/service-booking/internal/domain/vehicle"
	"github.com/vroomshare/service-booking/pkg/domain"
)

// VehicleModel is the GORM model for the vehicles table, the local copy of listing data.
type VehicleModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID       uuid.UUID `gorm:"type:uuid;not null;index"`
	Title         string    `gorm:"type:varchar(200);not null"`
	DailyRate     int64     `gorm:"not null"`
	DepositAmount *int64    `gorm:""`
	Currency      string    `gorm:"type:varchar(3);not null"`
	Status        string    `gorm:"type:varchar(20);not null"`
	Version       int64     `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;not null"`
}

func (VehicleModel) TableName() string { return "vehicles" }

// GormVehicleRepository implements VehicleRepository using GORM.
type GormVehicleRepository struct {
	db *gorm.DB
}

func NewGormVehicleRepository(db *gorm.DB) *GormVehicleRepository {
	return &GormVehicleRepository{db: db}
}

func (r *GormVehicleRepository) FindByID(ctx context.Context, id uuid.UUID) (*vehicleDomain.Vehicle, error) {
	var model VehicleModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Vehicle", id.String())
		}
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}
	return toVehicleDomain(&model), nil
}

// Upsert inserts or replaces a vehicle unless the stored row has a newer version, so
// out-of-order listing events cannot roll the catalog back.
func (r *GormVehicleRepository) Upsert(ctx context.Context, v *vehicleDomain.Vehicle) error {
	model := toVehicleModel(v)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner_id", "title", "daily_rate", "deposit_amount", "currency", "status", "version", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "vehicles.version <= excluded.version"},
			}},
		}).
		Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to upsert vehicle: %w", err)
	}
	return nil
}

// --- Conversions ---

func toVehicleModel(v *vehicleDomain.Vehicle) *VehicleModel {
	return &VehicleModel{
		ID:            v.ID(),
		OwnerID:       v.OwnerID(),
		Title:         v.Title(),
		DailyRate:     v.DailyRate(),
		DepositAmount: v.DepositAmount(),
		Currency:      v.Currency(),
		Status:        string(v.Status()),
		Version:       v.Version(),
		UpdatedAt:     v.UpdatedAt(),
	}
}

func toVehicleDomain(m *VehicleModel) *vehicleDomain.Vehicle {
	return vehicleDomain.Reconstruct(
		m.ID, m.OwnerID,
		m.Title,
		m.DailyRate, m.DepositAmount,
		m.Currency,
		vehicleDomain.VehicleStatus(m.Status),
		m.Version,
		m.UpdatedAt,
	)
}
