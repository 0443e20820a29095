package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/platform/logger"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 2,
	}
}

// TaskRunner is the producer and consumer side of the queue: handlers and
// tasks enqueue through it, and it owns the worker pool.
type TaskRunner struct {
	broker   Broker
	results  ResultBackend
	registry *Registry
	config   TaskRunnerConfig
	logger   *slog.Logger

	mu   sync.Mutex
	pool *WorkerPool
}

// NewTaskRunner creates a new TaskRunner
func NewTaskRunner(
	broker Broker,
	results ResultBackend,
	registry *Registry,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskRunner{
		broker:   broker,
		results:  results,
		registry: registry,
		config:   config,
		logger:   logger.With(slog.String("component", "task_runner")),
	}
}

// Enqueue publishes a job of taskType under a fresh id and returns the id.
func (r *TaskRunner) Enqueue(ctx context.Context, taskType string, payload any) (string, error) {
	id := uuid.NewString()
	if err := r.EnqueueWithID(ctx, id, taskType, payload); err != nil {
		return "", err
	}
	return id, nil
}

// EnqueueWithID publishes a job of taskType with payload marshalled as JSON.
// The id is recorded as PENDING before publishing so a fast worker can never
// be overwritten by the pending write. If publishing fails the id is recorded
// as FAILURE and the error is returned.
func (r *TaskRunner) EnqueueWithID(ctx context.Context, id, taskType string, payload any) error {
	log := logger.FromContextOrDefault(ctx, r.logger)

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}

	msg := Message{
		ID:         id,
		Type:       taskType,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}

	if err := r.results.SetState(ctx, StateRecord{TaskID: msg.ID, State: StatePending}); err != nil {
		log.Error("failed to record pending state",
			slog.String("task_id", msg.ID),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to record pending state: %w", err)
	}

	if err := r.broker.Publish(ctx, msg); err != nil {
		log.Error("failed to publish task",
			slog.String("task_id", msg.ID),
			slog.String("task_type", taskType),
			slog.String("error", err.Error()))
		failure := StateRecord{TaskID: msg.ID, State: StateFailure, Error: err.Error()}
		if setErr := r.results.SetState(ctx, failure); setErr != nil {
			log.Error("failed to record publish failure",
				slog.String("task_id", msg.ID),
				slog.String("error", setErr.Error()))
		}
		return fmt.Errorf("failed to publish task: %w", err)
	}

	log.Debug("task enqueued",
		slog.String("task_id", msg.ID),
		slog.String("task_type", taskType))
	return nil
}

// State returns the queue-side state of taskID, or ErrTaskNotFound.
func (r *TaskRunner) State(ctx context.Context, taskID string) (*StateRecord, error) {
	return r.results.GetState(ctx, taskID)
}

// Start requeues unacknowledged messages when the broker supports it and
// starts the worker pool.
func (r *TaskRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pool != nil {
		return fmt.Errorf("task runner already started")
	}

	if rec, ok := r.broker.(Recoverer); ok {
		n, err := rec.Recover(ctx)
		if err != nil {
			return fmt.Errorf("failed to recover tasks: %w", err)
		}
		r.logger.Info("recovered unacknowledged tasks", slog.Int("count", n))
	}

	r.pool = NewWorkerPool(r.broker, r.results, r.registry,
		WorkerPoolConfig{WorkerCount: r.config.WorkerCount}, r.logger)
	r.pool.SetErrorHandler(func(msg Message, err error) {
		r.logger.Error("task execution failed",
			slog.String("task_id", msg.ID),
			slog.String("task_type", msg.Type),
			slog.String("error", err.Error()))
	})
	r.pool.Start()
	return nil
}

// Stop waits for in-flight jobs, then closes the broker and result backend.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	pool := r.pool
	r.pool = nil
	r.mu.Unlock()

	if pool != nil {
		pool.Stop()
	}
	if err := r.broker.Close(); err != nil {
		r.logger.Error("failed to close broker", slog.String("error", err.Error()))
	}
	if err := r.results.Close(); err != nil {
		r.logger.Error("failed to close result backend", slog.String("error", err.Error()))
	}
}
