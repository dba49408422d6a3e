package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	bookingDomain "github.com/vroomshare/service-booking/internal/domain/booking"
	"github.com/vroomshare/service-booking/pkg/domain"
)

// PostgreSQL error codes raised by the bookings table constraints.
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// BookingModel is the GORM model for the bookings table. The bookings_no_overlap exclusion
// constraint (see migrations) rejects overlapping blocking bookings of one vehicle.
type BookingModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber    string          `gorm:"uniqueIndex;not null;size:20"`
	VehicleID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	RenterID         uuid.UUID       `gorm:"type:uuid;index;not null"`
	OwnerID          uuid.UUID       `gorm:"type:uuid;index;not null"`
	StartDate        time.Time       `gorm:"type:date;not null"`
	EndDate          time.Time       `gorm:"type:date;not null"`
	DurationDays     int             `gorm:"not null"`
	DailyRate        int64           `gorm:"not null"`
	BasePrice        int64           `gorm:"not null"`
	InsuranceTier    string          `gorm:"not null;size:20"`
	InsuranceFee     int64           `gorm:"not null"`
	ServiceFee       int64           `gorm:"not null"`
	TotalAmount      int64           `gorm:"not null"`
	DepositAmount    int64           `gorm:"not null"`
	Currency         string          `gorm:"not null;size:3"`
	PaymentStatus    string          `gorm:"not null;size:30"`
	PaymentReference string          `gorm:"not null;size:64"`
	PickupLocation   string          `gorm:"not null;size:500"`
	ReturnLocation   string          `gorm:"not null;size:500"`
	Status           string          `gorm:"not null;size:30;index"`
	ContactShared    bool            `gorm:"not null"`
	OwnerReady       bool            `gorm:"not null"`
	RenterReady      bool            `gorm:"not null"`
	PickupChecklist  json.RawMessage `gorm:"type:jsonb"`
	ReturnChecklist  json.RawMessage `gorm:"type:jsonb"`
	DisputeReason    string          `gorm:"size:1000"`
	CancelReason     string          `gorm:"size:1000"`
	Version          int64           `gorm:"not null"`
	CreatedAt        time.Time       `gorm:"not null"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByVehicleAndStatus retrieves a vehicle's bookings in any of the given statuses.
func (r *GormBookingRepository) FindByVehicleAndStatus(ctx context.Context, vehicleID uuid.UUID, statuses []bookingDomain.BookingStatus) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.db.WithContext(ctx).
		Where("vehicle_id = ? AND status IN ?", vehicleID, statusStrings(statuses)).
		Order("start_date ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find vehicle bookings: %w", err)
	}
	return toDomainBookings(models)
}

// Insert persists a new booking. Constraint violations are translated to domain errors.
func (r *GormBookingRepository) Insert(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateWriteError(err, bk.VehicleID())
	}
	return nil
}

// UpdateWithExpectedStatus persists changes only if the row still has the expected status and
// the previous version (current version - 1 since IncrementVersion was called).
func (r *GormBookingRepository) UpdateWithExpectedStatus(ctx context.Context, bk *bookingDomain.Booking, expected bookingDomain.BookingStatus) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	expectedVersion := bk.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND status = ? AND version = ?", model.ID, string(expected), expectedVersion).
		Updates(map[string]interface{}{
			"status":            model.Status,
			"payment_status":    model.PaymentStatus,
			"payment_reference": model.PaymentReference,
			"contact_shared":    model.ContactShared,
			"owner_ready":       model.OwnerReady,
			"renter_ready":      model.RenterReady,
			"pickup_checklist":  model.PickupChecklist,
			"return_checklist":  model.ReturnChecklist,
			"dispute_reason":    model.DisputeReason,
			"cancel_reason":     model.CancelReason,
			"version":           model.Version,
			"updated_at":        model.UpdatedAt,
		})

	if result.Error != nil {
		return translateWriteError(result.Error, bk.VehicleID())
	}
	if result.RowsAffected == 0 {
		return domain.NewStaleStateError("booking was modified by another transaction")
	}
	return nil
}

// List retrieves bookings matching filter with pagination, newest first.
func (r *GormBookingRepository) List(ctx context.Context, filter bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := applyFilter(r.db.WithContext(ctx).Model(&BookingModel{}), filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset, limit := pageBounds(page, limit)
	if err := applyFilter(r.db.WithContext(ctx), filter).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// ExistingIDs returns which of ids have a booking row.
func (r *GormBookingRepository) ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to look up booking ids: %w", err)
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

// --- Helpers ---

// translateWriteError maps constraint violations to domain errors.
func translateWriteError(err error, vehicleID uuid.UUID) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return domain.NewVehicleUnavailableError(vehicleID.String())
		case pgUniqueViolation:
			return domain.NewConflictError("booking already exists")
		}
	}
	return fmt.Errorf("failed to write booking: %w", err)
}

func applyFilter(q *gorm.DB, f bookingDomain.ListFilter) *gorm.DB {
	if f.RenterID != nil {
		q = q.Where("renter_id = ?", *f.RenterID)
	}
	if f.OwnerID != nil {
		q = q.Where("owner_id = ?", *f.OwnerID)
	}
	if f.VehicleID != nil {
		q = q.Where("vehicle_id = ?", *f.VehicleID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	return q
}

// pageBounds converts a 1-based page into an offset, defaulting to 20 items per page.
func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return (page - 1) * limit, limit
}

func statusStrings(statuses []bookingDomain.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	pickup, err := marshalChecklist(bk.PickupChecklist())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pickup checklist: %w", err)
	}
	ret, err := marshalChecklist(bk.ReturnChecklist())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal return checklist: %w", err)
	}

	return &BookingModel{
		ID:               bk.ID(),
		BookingNumber:    bk.BookingNumber(),
		VehicleID:        bk.VehicleID(),
		RenterID:         bk.RenterID(),
		OwnerID:          bk.OwnerID(),
		StartDate:        bk.Dates().Start,
		EndDate:          bk.Dates().End,
		DurationDays:     bk.DurationDays(),
		DailyRate:        bk.DailyRate(),
		BasePrice:        bk.BasePrice(),
		InsuranceTier:    string(bk.InsuranceTier()),
		InsuranceFee:     bk.InsuranceFee(),
		ServiceFee:       bk.ServiceFee(),
		TotalAmount:      bk.TotalAmount(),
		DepositAmount:    bk.DepositAmount(),
		Currency:         bk.Currency(),
		PaymentStatus:    string(bk.PaymentStatus()),
		PaymentReference: bk.PaymentReference(),
		PickupLocation:   bk.PickupLocation(),
		ReturnLocation:   bk.ReturnLocation(),
		Status:           string(bk.Status()),
		ContactShared:    bk.ContactShared(),
		OwnerReady:       bk.OwnerReady(),
		RenterReady:      bk.RenterReady(),
		PickupChecklist:  pickup,
		ReturnChecklist:  ret,
		DisputeReason:    bk.DisputeReason(),
		CancelReason:     bk.CancelReason(),
		Version:          bk.Version(),
		CreatedAt:        bk.CreatedAt(),
		UpdatedAt:        bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}
	paymentStatus, err := bookingDomain.ParsePaymentStatus(m.PaymentStatus)
	if err != nil {
		return nil, err
	}
	pickup, err := unmarshalChecklist(m.PickupChecklist)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal pickup checklist: %w", err)
	}
	ret, err := unmarshalChecklist(m.ReturnChecklist)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal return checklist: %w", err)
	}

	return bookingDomain.ReconstructBooking(bookingDomain.Snapshot{
		ID:               m.ID,
		BookingNumber:    m.BookingNumber,
		VehicleID:        m.VehicleID,
		RenterID:         m.RenterID,
		OwnerID:          m.OwnerID,
		Dates:            bookingDomain.DateRange{Start: bookingDomain.TruncateDay(m.StartDate), End: bookingDomain.TruncateDay(m.EndDate)},
		DurationDays:     m.DurationDays,
		DailyRate:        m.DailyRate,
		BasePrice:        m.BasePrice,
		InsuranceTier:    bookingDomain.InsuranceTier(m.InsuranceTier),
		InsuranceFee:     m.InsuranceFee,
		ServiceFee:       m.ServiceFee,
		TotalAmount:      m.TotalAmount,
		DepositAmount:    m.DepositAmount,
		Currency:         m.Currency,
		PaymentStatus:    paymentStatus,
		PaymentReference: m.PaymentReference,
		PickupLocation:   m.PickupLocation,
		ReturnLocation:   m.ReturnLocation,
		Status:           status,
		ContactShared:    m.ContactShared,
		OwnerReady:       m.OwnerReady,
		RenterReady:      m.RenterReady,
		PickupChecklist:  pickup,
		ReturnChecklist:  ret,
		DisputeReason:    m.DisputeReason,
		CancelReason:     m.CancelReason,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}

func marshalChecklist(c *bookingDomain.Checklist) (json.RawMessage, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func unmarshalChecklist(data json.RawMessage) (*bookingDomain.Checklist, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var c bookingDomain.Checklist
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
