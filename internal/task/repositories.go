package task

import (
	"context"
	"encoding/json"

	"github.com/phrazzld/fileserver-api/internal/domain"
)

// FileRepository is the slice of file storage the tasks need.
type FileRepository interface {
	GetByHash(ctx context.Context, hash string) (*domain.File, error)
	UpdateStatus(ctx context.Context, hash string, status domain.FileStatus) error
}

// TaskStatusRepository is the slice of task status storage the tasks need.
type TaskStatusRepository interface {
	Create(ctx context.Context, ts *domain.TaskStatus) error
	UpdateStatus(ctx context.Context, taskID, status string, result json.RawMessage) error
}

// TxRunner runs fn inside one storage transaction, handing it a
// FileRepository bound to that transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, files FileRepository) error) error
}

// FileProcessor performs the actual work on an uploaded file.
type FileProcessor interface {
	Process(ctx context.Context, file *domain.File) error
}

// Enqueuer publishes jobs. *TaskRunner implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any) (string, error)
}

// StateReader reads queue-side job state. *TaskRunner implements it.
type StateReader interface {
	State(ctx context.Context, taskID string) (*StateRecord, error)
}
