package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HoldRepository persists payment handles.
type HoldRepository interface {
	Insert(ctx context.Context, hold *Hold) error
	FindByID(ctx context.Context, id uuid.UUID) (*Hold, error)

	// UpdateFrom writes hold only if its stored state is one of from. It returns
	// InvalidState when the row exists in another state.
	UpdateFrom(ctx context.Context, hold *Hold, from ...HoldState) error

	// FindByState lists holds in state last updated before olderThan.
	FindByState(ctx context.Context, state HoldState, olderThan time.Time, limit int) ([]*Hold, error)
}

// DiscrepancyRepository persists reconciliation records.
type DiscrepancyRepository interface {
	Insert(ctx context.Context, d *Discrepancy) error
	FindByID(ctx context.Context, id uuid.UUID) (*Discrepancy, error)
	Update(ctx context.Context, d *Discrepancy) error
	ListUnresolved(ctx context.Context, limit int) ([]*Discrepancy, error)
	List(ctx context.Context, unresolvedOnly bool, page, limit int) ([]*Discrepancy, int64, error)
}
