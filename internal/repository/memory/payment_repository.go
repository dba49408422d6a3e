package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
	"github.com/vroomshare/service-booking/pkg/domain"
)

// HoldRepository implements payment.HoldRepository.
type HoldRepository struct {
	mu   sync.Mutex
	rows map[uuid.UUID]paymentDomain.Hold
}

// NewHoldRepository creates an empty repository.
func NewHoldRepository() *HoldRepository {
	return &HoldRepository{rows: make(map[uuid.UUID]paymentDomain.Hold)}
}

func (r *HoldRepository) Insert(_ context.Context, h *paymentDomain.Hold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[h.ID]; ok {
		return domain.NewConflictError("payment hold already exists")
	}
	r.rows[h.ID] = *h
	return nil
}

func (r *HoldRepository) FindByID(_ context.Context, id uuid.UUID) (*paymentDomain.Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("PaymentHold", id.String())
	}
	return &h, nil
}

func (r *HoldRepository) UpdateFrom(_ context.Context, h *paymentDomain.Hold, from ...paymentDomain.HoldState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[h.ID]
	if !ok {
		return domain.NewNotFoundError("PaymentHold", h.ID.String())
	}
	for _, s := range from {
		if stored.State == s {
			r.rows[h.ID] = *h
			return nil
		}
	}
	return domain.NewInvalidStateError(string(stored.State), string(h.State))
}

func (r *HoldRepository) FindByState(_ context.Context, state paymentDomain.HoldState, olderThan time.Time, limit int) ([]*paymentDomain.Hold, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*paymentDomain.Hold
	for _, h := range r.rows {
		if h.State == state && h.UpdatedAt.Before(olderThan) {
			hc := h
			out = append(out, &hc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DiscrepancyRepository implements payment.DiscrepancyRepository.
type DiscrepancyRepository struct {
	mu   sync.Mutex
	rows map[uuid.UUID]paymentDomain.Discrepancy
}

// NewDiscrepancyRepository creates an empty repository.
func NewDiscrepancyRepository() *DiscrepancyRepository {
	return &DiscrepancyRepository{rows: make(map[uuid.UUID]paymentDomain.Discrepancy)}
}

func (r *DiscrepancyRepository) Insert(_ context.Context, d *paymentDomain.Discrepancy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[d.ID] = *d
	return nil
}

func (r *DiscrepancyRepository) FindByID(_ context.Context, id uuid.UUID) (*paymentDomain.Discrepancy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("PaymentDiscrepancy", id.String())
	}
	return &d, nil
}

func (r *DiscrepancyRepository) Update(_ context.Context, d *paymentDomain.Discrepancy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[d.ID]; !ok {
		return domain.NewNotFoundError("PaymentDiscrepancy", d.ID.String())
	}
	r.rows[d.ID] = *d
	return nil
}

func (r *DiscrepancyRepository) ListUnresolved(_ context.Context, limit int) ([]*paymentDomain.Discrepancy, error) {
	all := r.sorted(true)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *DiscrepancyRepository) List(_ context.Context, unresolvedOnly bool, page, limit int) ([]*paymentDomain.Discrepancy, int64, error) {
	all := r.sorted(unresolvedOnly)
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r *DiscrepancyRepository) sorted(unresolvedOnly bool) []*paymentDomain.Discrepancy {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*paymentDomain.Discrepancy
	for _, d := range r.rows {
		if unresolvedOnly && d.Resolved {
			continue
		}
		dc := d
		out = append(out, &dc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
