package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/vroomshare/service-booking/pkg/domain"
)

// TypeReconcileDiscrepancy retries the payment follow-up of one discrepancy.
const TypeReconcileDiscrepancy = "payment:reconcile"

const (
	reconcileMaxRetry = 10
	reconcileTimeout  = 2 * time.Minute
	// reconcileUniqueTTL bounds how long an enqueued task blocks another for the same
	// discrepancy. The lock outlives the task once it is archived, so a discrepancy that
	// exhausted its retries is queued again by the first sweep after the TTL.
	reconcileUniqueTTL = 30 * time.Minute
)

type reconcilePayload struct {
	DiscrepancyID uuid.UUID `json:"discrepancy_id"`
}

// NewReconcileTask builds the task for a discrepancy. The payload is the discrepancy id
// alone, so the uniqueness lock keeps one task per discrepancy within the TTL.
func NewReconcileTask(discrepancyID uuid.UUID) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(reconcilePayload{DiscrepancyID: discrepancyID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeReconcileDiscrepancy, b)
	opts := []asynq.Option{
		asynq.Unique(reconcileUniqueTTL),
		asynq.MaxRetry(reconcileMaxRetry),
		asynq.Timeout(reconcileTimeout),
	}
	return task, opts, nil
}

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue schedules discrepancy retries on asynq.
type Queue struct {
	client TaskEnqueuer
	logger *zap.Logger
}

// NewQueue creates a new Queue.
func NewQueue(client TaskEnqueuer, logger *zap.Logger) *Queue {
	return &Queue{client: client, logger: logger}
}

// EnqueueDiscrepancy queues a retry. A retry still holding the uniqueness lock counts as
// success.
func (q *Queue) EnqueueDiscrepancy(ctx context.Context, discrepancyID uuid.UUID) error {
	task, opts, err := NewReconcileTask(discrepancyID)
	if err != nil {
		return fmt.Errorf("failed to build reconcile task: %w", err)
	}
	info, err := q.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("failed to enqueue reconcile task: %w", err)
	}
	q.logger.Debug("reconcile task enqueued",
		zap.String("discrepancy_id", discrepancyID.String()),
		zap.String("task_id", info.ID),
	)
	return nil
}

// DiscrepancySettler retries one discrepancy.
type DiscrepancySettler interface {
	SettleDiscrepancy(ctx context.Context, discrepancyID uuid.UUID) error
}

// Worker processes reconcile tasks.
type Worker struct {
	server  *asynq.Server
	settler DiscrepancySettler
	logger  *zap.Logger
}

// NewWorker creates a worker bound to the given Redis connection.
func NewWorker(redisOpt asynq.RedisClientOpt, concurrency int, settler DiscrepancySettler, logger *zap.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 5
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"default": 1},
		Logger:      logger.Sugar(),
	})
	return &Worker{server: server, settler: settler, logger: logger}
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReconcileDiscrepancy, w.HandleReconcileTask)
	return w.server.Start(mux)
}

// Shutdown waits for in-flight tasks and stops the worker.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// HandleReconcileTask settles the discrepancy named by the task. Errors make asynq retry
// with backoff; tasks for unknown discrepancies are dropped.
func (w *Worker) HandleReconcileTask(ctx context.Context, task *asynq.Task) error {
	var p reconcilePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("invalid reconcile payload: %v: %w", err, asynq.SkipRetry)
	}

	err := w.settler.SettleDiscrepancy(ctx, p.DiscrepancyID)
	switch {
	case err == nil:
		return nil
	case domain.HasCode(err, domain.CodeNotFound):
		w.logger.Warn("dropping reconcile task", zap.String("discrepancy_id", p.DiscrepancyID.String()), zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		w.logger.Warn("discrepancy still open",
			zap.String("discrepancy_id", p.DiscrepancyID.String()),
			zap.Error(err),
		)
		return err
	}
}
