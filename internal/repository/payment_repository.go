package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
	"github.com/vroomshare/service-booking/pkg/domain"
)

// PaymentHoldModel is the GORM model for the payment_holds table.
type PaymentHoldModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID      uuid.UUID `gorm:"type:uuid;index;not null"`
	GatewayRef     string    `gorm:"not null;size:255"`
	Amount         int64     `gorm:"not null"`
	Currency       string    `gorm:"not null;size:3"`
	PayerRef       string    `gorm:"not null;size:255"`
	State          string    `gorm:"not null;size:30;index"`
	RefundedAmount int64     `gorm:"not null"`
	LastError      string    `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null;index"`
}

func (PaymentHoldModel) TableName() string { return "payment_holds" }

// GormHoldRepository implements payment.HoldRepository using GORM.
type GormHoldRepository struct {
	db *gorm.DB
}

func NewGormHoldRepository(db *gorm.DB) *GormHoldRepository {
	return &GormHoldRepository{db: db}
}

func (r *GormHoldRepository) Insert(ctx context.Context, h *paymentDomain.Hold) error {
	if err := r.db.WithContext(ctx).Create(toHoldModel(h)).Error; err != nil {
		return fmt.Errorf("failed to save payment hold: %w", err)
	}
	return nil
}

func (r *GormHoldRepository) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Hold, error) {
	var model PaymentHoldModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("PaymentHold", id.String())
		}
		return nil, fmt.Errorf("failed to find payment hold: %w", err)
	}
	return toHoldDomain(&model), nil
}

// UpdateFrom writes the hold only while its stored state is one of from.
func (r *GormHoldRepository) UpdateFrom(ctx context.Context, h *paymentDomain.Hold, from ...paymentDomain.HoldState) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}

	result := r.db.WithContext(ctx).
		Model(&PaymentHoldModel{}).
		Where("id = ? AND state IN ?", h.ID, states).
		Updates(map[string]interface{}{
			"state":           string(h.State),
			"refunded_amount": h.RefundedAmount,
			"last_error":      h.LastError,
			"updated_at":      h.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update payment hold: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		stored, err := r.FindByID(ctx, h.ID)
		if err != nil {
			return err
		}
		return domain.NewInvalidStateError(string(stored.State), string(h.State))
	}
	return nil
}

func (r *GormHoldRepository) FindByState(ctx context.Context, state paymentDomain.HoldState, olderThan time.Time, limit int) ([]*paymentDomain.Hold, error) {
	q := r.db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", string(state), olderThan).
		Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []PaymentHoldModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment holds: %w", err)
	}
	holds := make([]*paymentDomain.Hold, len(models))
	for i := range models {
		holds[i] = toHoldDomain(&models[i])
	}
	return holds, nil
}

// PaymentDiscrepancyModel is the GORM model for the payment_discrepancies table.
type PaymentDiscrepancyModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID uuid.UUID `gorm:"type:uuid;index;not null"`
	HoldID    uuid.UUID `gorm:"type:uuid;not null"`
	Operation string    `gorm:"not null;size:20"`
	Amount    *int64    `gorm:""`
	LastError string    `gorm:"type:text"`
	Attempts  int       `gorm:"not null"`
	Resolved  bool      `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (PaymentDiscrepancyModel) TableName() string { return "payment_discrepancies" }

// GormDiscrepancyRepository implements payment.DiscrepancyRepository using GORM.
type GormDiscrepancyRepository struct {
	db *gorm.DB
}

func NewGormDiscrepancyRepository(db *gorm.DB) *GormDiscrepancyRepository {
	return &GormDiscrepancyRepository{db: db}
}

func (r *GormDiscrepancyRepository) Insert(ctx context.Context, d *paymentDomain.Discrepancy) error {
	if err := r.db.WithContext(ctx).Create(toDiscrepancyModel(d)).Error; err != nil {
		return fmt.Errorf("failed to save payment discrepancy: %w", err)
	}
	return nil
}

func (r *GormDiscrepancyRepository) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Discrepancy, error) {
	var model PaymentDiscrepancyModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("PaymentDiscrepancy", id.String())
		}
		return nil, fmt.Errorf("failed to find payment discrepancy: %w", err)
	}
	return toDiscrepancyDomain(&model), nil
}

func (r *GormDiscrepancyRepository) Update(ctx context.Context, d *paymentDomain.Discrepancy) error {
	result := r.db.WithContext(ctx).
		Model(&PaymentDiscrepancyModel{}).
		Where("id = ?", d.ID).
		Updates(map[string]interface{}{
			"last_error": d.LastError,
			"attempts":   d.Attempts,
			"resolved":   d.Resolved,
			"updated_at": d.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update payment discrepancy: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("PaymentDiscrepancy", d.ID.String())
	}
	return nil
}

func (r *GormDiscrepancyRepository) ListUnresolved(ctx context.Context, limit int) ([]*paymentDomain.Discrepancy, error) {
	q := r.db.WithContext(ctx).Where("resolved = ?", false).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []PaymentDiscrepancyModel
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list unresolved discrepancies: %w", err)
	}
	return toDiscrepancyDomains(models), nil
}

func (r *GormDiscrepancyRepository) List(ctx context.Context, unresolvedOnly bool, page, limit int) ([]*paymentDomain.Discrepancy, int64, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		if unresolvedOnly {
			return q.Where("resolved = ?", false)
		}
		return q
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&PaymentDiscrepancyModel{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count discrepancies: %w", err)
	}

	var models []PaymentDiscrepancyModel
	offset, limit := pageBounds(page, limit)
	if err := r.db.WithContext(ctx).Scopes(scope).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list discrepancies: %w", err)
	}
	return toDiscrepancyDomains(models), total, nil
}

// --- Conversion Helpers ---

func toHoldModel(h *paymentDomain.Hold) *PaymentHoldModel {
	return &PaymentHoldModel{
		ID:             h.ID,
		BookingID:      h.BookingID,
		GatewayRef:     h.GatewayRef,
		Amount:         h.Amount,
		Currency:       h.Currency,
		PayerRef:       h.PayerRef,
		State:          string(h.State),
		RefundedAmount: h.RefundedAmount,
		LastError:      h.LastError,
		CreatedAt:      h.CreatedAt,
		UpdatedAt:      h.UpdatedAt,
	}
}

func toHoldDomain(m *PaymentHoldModel) *paymentDomain.Hold {
	return &paymentDomain.Hold{
		ID:             m.ID,
		BookingID:      m.BookingID,
		GatewayRef:     m.GatewayRef,
		Amount:         m.Amount,
		Currency:       m.Currency,
		PayerRef:       m.PayerRef,
		State:          paymentDomain.HoldState(m.State),
		RefundedAmount: m.RefundedAmount,
		LastError:      m.LastError,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toDiscrepancyModel(d *paymentDomain.Discrepancy) *PaymentDiscrepancyModel {
	return &PaymentDiscrepancyModel{
		ID:        d.ID,
		BookingID: d.BookingID,
		HoldID:    d.HoldID,
		Operation: d.Operation,
		Amount:    d.Amount,
		LastError: d.LastError,
		Attempts:  d.Attempts,
		Resolved:  d.Resolved,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func toDiscrepancyDomains(models []PaymentDiscrepancyModel) []*paymentDomain.Discrepancy {
	out := make([]*paymentDomain.Discrepancy, len(models))
	for i := range models {
		m := &models[i]
		out[i] = &paymentDomain.Discrepancy{
			ID:        m.ID,
			BookingID: m.BookingID,
			HoldID:    m.HoldID,
			Operation: m.Operation,
			Amount:    m.Amount,
			LastError: m.LastError,
			Attempts:  m.Attempts,
			Resolved:  m.Resolved,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		}
	}
	return out
}

func toDiscrepancyDomain(m *PaymentDiscrepancyModel) *paymentDomain.Discrepancy {
	return toDiscrepancyDomains([]PaymentDiscrepancyModel{*m})[0]
}
