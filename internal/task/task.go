package task

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// State is the queue-side lifecycle state of a job.
type State string

// Queue states as reported by the result backend.
const (
	StatePending State = "PENDING"
	StateStarted State = "STARTED"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
)

// Known reports whether s is one of the four states above.
func (s State) Known() bool {
	switch s {
	case StatePending, StateStarted, StateSuccess, StateFailure:
		return true
	}
	return false
}

// Task type identifiers carried on the wire.
const (
	TaskTypeFileProcessing  = "file_processing"
	TaskTypeBatchProcessing = "batch_processing"
)

var (
	// ErrTaskNotFound is returned by a ResultBackend that has no record of a task,
	// including records that have expired.
	ErrTaskNotFound = errors.New("task not found")

	// ErrUnknownTaskType is returned when no factory is registered for a message type.
	ErrUnknownTaskType = errors.New("unknown task type")
)

// Message is the serialized form of a job as it travels through a broker.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Task is a unit of background work rebuilt from a Message by a worker.
type Task interface {
	ID() string
	Type() string
	Payload() []byte

	// Execute runs the job. The returned value is stored as the job's result;
	// a non-nil error marks the job FAILURE.
	Execute(ctx context.Context) (any, error)
}

// Delivery is a message handed to one consumer. It stays reserved for that
// consumer until Ack is called.
type Delivery interface {
	Message() Message
	Ack(ctx context.Context) error
}

// Broker moves messages from producers to consumers.
type Broker interface {
	Publish(ctx context.Context, msg Message) error

	// Consume blocks until a message is available or ctx is done.
	// It returns ErrQueueClosed once the broker has been closed.
	Consume(ctx context.Context) (Delivery, error)

	Close() error
}

// Recoverer is implemented by brokers that can hand unacknowledged messages
// from a previous run back to the queue.
type Recoverer interface {
	Recover(ctx context.Context) (int, error)
}

// StateRecord is what a ResultBackend stores per job.
type StateRecord struct {
	TaskID    string          `json:"task_id"`
	State     State           `json:"state"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ResultBackend stores queue-side job state for later lookup.
type ResultBackend interface {
	SetState(ctx context.Context, rec StateRecord) error

	// GetState returns ErrTaskNotFound for unknown or expired tasks.
	GetState(ctx context.Context, taskID string) (*StateRecord, error)

	Close() error
}
