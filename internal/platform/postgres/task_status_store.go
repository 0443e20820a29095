package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/phrazzld/fileserver-api/internal/store"
)

// PostgresTaskStatusStore implements store.TaskStatusStore on the task_statuses table.
type PostgresTaskStatusStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStatusStore creates a task status store.
func NewPostgresTaskStatusStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStatusStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStatusStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_status_store")),
	}
}

var _ store.TaskStatusStore = (*PostgresTaskStatusStore)(nil)

// WithTx implements store.TaskStatusStore.WithTx
func (s *PostgresTaskStatusStore) WithTx(tx *sql.Tx) store.TaskStatusStore {
	return &PostgresTaskStatusStore{db: tx, logger: s.logger}
}

// nullableJSON keeps an empty result as SQL NULL rather than an invalid JSONB literal.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// Create implements store.TaskStatusStore.Create
func (s *PostgresTaskStatusStore) Create(ctx context.Context, ts *domain.TaskStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := ts.Validate(); err != nil {
		log.Warn("task status validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", ts.TaskID))
		return err
	}

	query := `
		INSERT INTO task_statuses (task_id, status, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id) DO NOTHING
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		ts.TaskID,
		ts.Status,
		nullableJSON(ts.Result),
		ts.CreatedAt,
		ts.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task status",
			slog.String("error", err.Error()),
			slog.String("task_id", ts.TaskID))
		return MapError(err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		log.Debug("task status already exists",
			slog.String("task_id", ts.TaskID))
		return nil
	}

	log.Debug("task status created",
		slog.String("task_id", ts.TaskID),
		slog.String("status", ts.Status))
	return nil
}

// Upsert implements store.TaskStatusStore.Upsert. The conflict branch rewrites
// updated_at with its own value so RETURNING yields the existing row intact.
func (s *PostgresTaskStatusStore) Upsert(ctx context.Context, ts *domain.TaskStatus) (*domain.TaskStatus, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := ts.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO task_statuses (task_id, status, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id) DO UPDATE SET updated_at = task_statuses.updated_at
		RETURNING ` + taskStatusColumns

	row := s.db.QueryRowContext(
		ctx,
		query,
		ts.TaskID,
		ts.Status,
		nullableJSON(ts.Result),
		ts.CreatedAt,
		ts.UpdatedAt,
	)
	stored, err := scanTaskStatus(row)
	if err != nil {
		log.Error("failed to upsert task status",
			slog.String("error", err.Error()),
			slog.String("task_id", ts.TaskID))
		return nil, fmt.Errorf("failed to upsert task status: %w", MapError(err))
	}
	return stored, nil
}

const taskStatusColumns = `id, task_id, status, result, created_at, updated_at`

func scanTaskStatus(row interface{ Scan(dest ...any) error }) (*domain.TaskStatus, error) {
	var ts domain.TaskStatus
	var result []byte
	if err := row.Scan(
		&ts.ID,
		&ts.TaskID,
		&ts.Status,
		&result,
		&ts.CreatedAt,
		&ts.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(result) > 0 {
		ts.Result = json.RawMessage(result)
	}
	return &ts, nil
}

// GetByTaskID implements store.TaskStatusStore.GetByTaskID
func (s *PostgresTaskStatusStore) GetByTaskID(ctx context.Context, taskID string) (*domain.TaskStatus, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+taskStatusColumns+` FROM task_statuses WHERE task_id = $1`, taskID)
	ts, err := scanTaskStatus(row)
	if err != nil {
		if IsNotFoundError(err) {
			log.Debug("task status not found", slog.String("task_id", taskID))
			return nil, store.ErrTaskStatusNotFound
		}
		log.Error("failed to get task status",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID))
		return nil, store.NewStoreError("task_status", "get_by_task_id", "query failed", err)
	}
	return ts, nil
}

// UpdateStatus implements store.TaskStatusStore.UpdateStatus
func (s *PostgresTaskStatusStore) UpdateStatus(
	ctx context.Context,
	taskID, status string,
	result json.RawMessage,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if status == "" {
		return domain.ErrEmptyTaskStatus
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE task_statuses SET status = $1, result = COALESCE($2, result), updated_at = $3 WHERE task_id = $4`,
		status,
		nullableJSON(result),
		time.Now().UTC(),
		taskID,
	)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID),
			slog.String("status", status))
		return MapError(err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()))
		return store.NewStoreError("task_status", "update_status", "failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		log.Warn("no task status found with ID to update",
			slog.String("task_id", taskID),
			slog.String("status", status))
		return nil
	}

	log.Debug("task status updated",
		slog.String("task_id", taskID),
		slog.String("status", status))
	return nil
}
