package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/phrazzld/fileserver-api/internal/store"
	"github.com/phrazzld/fileserver-api/internal/task"
)

// TaskStatusService resolves the status of a task id.
type TaskStatusService struct {
	statuses store.TaskStatusStore
	queue    JobQueue
	logger   *slog.Logger
}

// NewTaskStatusService creates a TaskStatusService.
func NewTaskStatusService(statuses store.TaskStatusStore, queue JobQueue, logger *slog.Logger) *TaskStatusService {
	if statuses == nil {
		panic("statuses cannot be nil")
	}
	if queue == nil {
		panic("queue cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStatusService{
		statuses: statuses,
		queue:    queue,
		logger:   logger.With(slog.String("component", "task_status_service")),
	}
}

// Resolve returns the stored status row for taskID. When there is none it
// falls back to the queue: a known queue state is persisted, lowercased, via
// an upsert in which an existing row always wins, and the stored row is
// returned. Anything else is ErrTaskNotFound.
//
// Queue-sourced rows use the queue's vocabulary ("success", "failure")
// rather than the worker's ("completed", "failed").
func (s *TaskStatusService) Resolve(ctx context.Context, taskID string) (*domain.TaskStatus, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("task_id", taskID))

	ts, err := s.statuses.GetByTaskID(ctx, taskID)
	if err == nil {
		log.Debug("task status found in storage", slog.String("status", ts.Status))
		return ts, nil
	}
	if !store.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to read task status: %w", err)
	}

	rec, err := s.queue.State(ctx, taskID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			log.Warn("task not found in storage or queue")
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to read queue state: %w", err)
	}
	if !rec.State.Known() {
		log.Warn("task has unrecognised queue state", slog.String("state", string(rec.State)))
		return nil, ErrTaskNotFound
	}

	row, err := domain.NewTaskStatus(taskID, strings.ToLower(string(rec.State)))
	if err != nil {
		return nil, err
	}
	stored, err := s.statuses.Upsert(ctx, row)
	if err != nil {
		log.Error("failed to persist queue state", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to persist task status: %w", err)
	}

	log.Info("task status resolved from queue", slog.String("status", stored.Status))
	return stored, nil
}
