package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	paymentDomain "github.com/vroomshare/service-booking/internal/domain/payment"
	"github.com/vroomshare/service-booking/internal/payment"
)

// Config holds the sweep schedules (cron expressions with seconds) and thresholds.
type Config struct {
	OrphanSweep      string
	OrphanAge        time.Duration
	CapturePoll      string
	CaptureStuckAge  time.Duration
	DiscrepancySweep string
	BatchSize        int
	JobTimeout       time.Duration
}

// DefaultConfig returns the production schedule.
func DefaultConfig() Config {
	return Config{
		OrphanSweep:      "0 */5 * * * *",
		OrphanAge:        30 * time.Minute,
		CapturePoll:      "30 * * * * *",
		CaptureStuckAge:  2 * time.Minute,
		DiscrepancySweep: "0 */15 * * * *",
		BatchSize:        50,
		JobTimeout:       4 * time.Minute,
	}
}

// HoldSweeper is the part of the payment coordinator the sweeps drive.
type HoldSweeper interface {
	ReleaseOrphans(ctx context.Context, olderThan time.Duration, bookings payment.BookingLookup) (int, error)
	PendingCaptures(ctx context.Context, olderThan time.Duration, limit int) ([]*paymentDomain.Hold, error)
	ResolveCapture(ctx context.Context, holdID uuid.UUID) (payment.CaptureResolution, error)
}

// CaptureCompleter applies a resolved capture to its booking.
type CaptureCompleter interface {
	CompleteCapture(ctx context.Context, holdID uuid.UUID, resolution payment.CaptureResolution) error
}

// DiscrepancyLister lists open discrepancies.
type DiscrepancyLister interface {
	ListUnresolved(ctx context.Context, limit int) ([]*paymentDomain.Discrepancy, error)
}

// DiscrepancyEnqueuer schedules a discrepancy retry.
type DiscrepancyEnqueuer interface {
	EnqueueDiscrepancy(ctx context.Context, discrepancyID uuid.UUID) error
}

// SchedulerDeps groups the collaborators of Scheduler.
type SchedulerDeps struct {
	Holds         HoldSweeper
	Bookings      payment.BookingLookup
	Captures      CaptureCompleter
	Discrepancies DiscrepancyLister
	Queue         DiscrepancyEnqueuer
}

// Scheduler runs the periodic payment sweeps.
type Scheduler struct {
	cron   *cron.Cron
	deps   SchedulerDeps
	cfg    Config
	logger *zap.Logger
}

// NewScheduler registers the sweeps. It fails on an invalid schedule.
func NewScheduler(deps SchedulerDeps, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	def := DefaultConfig()
	if cfg.OrphanAge <= 0 {
		cfg.OrphanAge = def.OrphanAge
	}
	if cfg.CaptureStuckAge <= 0 {
		cfg.CaptureStuckAge = def.CaptureStuckAge
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}

	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		deps:   deps,
		cfg:    cfg,
		logger: logger,
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"release_orphan_holds", cfg.OrphanSweep, s.ReleaseOrphanHolds},
		{"resolve_pending_captures", cfg.CapturePoll, s.ResolvePendingCaptures},
		{"requeue_discrepancies", cfg.DiscrepancySweep, s.RequeueDiscrepancies},
	}
	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.spec, s.wrap(job.name, job.run)); err != nil {
			return nil, fmt.Errorf("invalid schedule %q for %s: %w", job.spec, job.name, err)
		}
	}
	return s, nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("reconciliation scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("reconciliation scheduler stopped")
}

// ReleaseOrphanHolds releases holds whose booking was never written.
func (s *Scheduler) ReleaseOrphanHolds(ctx context.Context) error {
	n, err := s.deps.Holds.ReleaseOrphans(ctx, s.cfg.OrphanAge, s.deps.Bookings)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("orphaned holds released", zap.Int("count", n))
	}
	return nil
}

// ResolvePendingCaptures polls the gateway for captures with an unknown outcome and applies
// the ones that resolved.
func (s *Scheduler) ResolvePendingCaptures(ctx context.Context) error {
	holds, err := s.deps.Holds.PendingCaptures(ctx, s.cfg.CaptureStuckAge, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, h := range holds {
		resolution, err := s.deps.Holds.ResolveCapture(ctx, h.ID)
		if err != nil {
			s.logger.Warn("failed to resolve capture", zap.String("hold_id", h.ID.String()), zap.Error(err))
			continue
		}
		if resolution == payment.ResolutionUnknown {
			continue
		}
		if err := s.deps.Captures.CompleteCapture(ctx, h.ID, resolution); err != nil {
			s.logger.Error("failed to apply capture outcome",
				zap.String("hold_id", h.ID.String()),
				zap.String("resolution", string(resolution)),
				zap.Error(err),
			)
		}
	}
	return nil
}

// RequeueDiscrepancies puts every open discrepancy back on the queue. Retries that are
// still queued are not duplicated.
func (s *Scheduler) RequeueDiscrepancies(ctx context.Context) error {
	open, err := s.deps.Discrepancies.ListUnresolved(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, d := range open {
		if err := s.deps.Queue.EnqueueDiscrepancy(ctx, d.ID); err != nil {
			s.logger.Error("failed to requeue discrepancy", zap.String("discrepancy_id", d.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()
		if err := run(ctx); err != nil {
			s.logger.Error("reconciliation job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
