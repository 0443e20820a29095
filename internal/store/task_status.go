package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/phrazzld/fileserver-api/internal/domain"
)

// TaskStatusStore persists the last-known state of queued tasks.
type TaskStatusStore interface {
	// Create inserts a row for ts.TaskID. An existing row for the same task
	// id is left untouched and no error is returned, so redelivered tasks
	// can call Create again.
	Create(ctx context.Context, ts *domain.TaskStatus) error

	// Upsert inserts ts unless a row already exists, and returns whichever
	// row is stored afterwards. The stored row always wins.
	Upsert(ctx context.Context, ts *domain.TaskStatus) (*domain.TaskStatus, error)

	// GetByTaskID returns ErrTaskStatusNotFound if no row exists.
	GetByTaskID(ctx context.Context, taskID string) (*domain.TaskStatus, error)

	// UpdateStatus sets status and result for taskID. A missing row is
	// logged and ignored.
	UpdateStatus(ctx context.Context, taskID, status string, result json.RawMessage) error

	// WithTx returns a TaskStatusStore bound to tx.
	WithTx(tx *sql.Tx) TaskStatusStore
}
