package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Status values written by workers and by the upload path.
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// Status values written when a row is created from the queue's own state.
// These deliberately stay in the queue's vocabulary: "success" and
// "completed" are not merged, so readers must accept both sets.
const (
	TaskStatusStarted = "started"
	TaskStatusSuccess = "success"
	TaskStatusFailure = "failure"
)

// MaxTaskStatusLength matches the status column width.
const MaxTaskStatusLength = 50

var (
	ErrEmptyTaskID     = errors.New("task ID cannot be empty")
	ErrEmptyTaskStatus = errors.New("task status cannot be empty")
	ErrTaskStatusLong  = errors.New("task status must be at most 50 characters")
)

// TaskStatus is the persisted last-known state of a queued task. Status is
// an open vocabulary; see the constants above.
type TaskStatus struct {
	ID        int64           `json:"-"`
	TaskID    string          `json:"task_id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewTaskStatus creates a status row for taskID.
func NewTaskStatus(taskID, status string) (*TaskStatus, error) {
	now := time.Now().UTC()
	ts := &TaskStatus{
		TaskID:    taskID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	return ts, nil
}

// Validate checks if the TaskStatus has valid data.
func (t *TaskStatus) Validate() error {
	if t.TaskID == "" {
		return ErrEmptyTaskID
	}
	if t.Status == "" {
		return ErrEmptyTaskStatus
	}
	if len(t.Status) > MaxTaskStatusLength {
		return ErrTaskStatusLong
	}
	return nil
}

// IsTerminal reports whether the status names a finished task in either vocabulary.
func (t *TaskStatus) IsTerminal() bool {
	switch t.Status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusSuccess, TaskStatusFailure:
		return true
	}
	return false
}
