package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/fileserver-api/internal/task"
)

// EnqueuedJob records one EnqueueWithID call.
type EnqueuedJob struct {
	ID       string
	TaskType string
	Payload  any
}

// MockJobQueue records enqueued jobs and serves queue states from a map.
// Enqueued ids start out PENDING.
type MockJobQueue struct {
	mu     sync.Mutex
	Jobs   []EnqueuedJob
	States map[string]task.State

	EnqueueErr error
	StateErr   error
}

// NewMockJobQueue creates an empty MockJobQueue.
func NewMockJobQueue() *MockJobQueue {
	return &MockJobQueue{States: make(map[string]task.State)}
}

// EnqueueWithID records the job unless EnqueueErr is set.
func (m *MockJobQueue) EnqueueWithID(_ context.Context, id, taskType string, payload any) error {
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.States == nil {
		m.States = make(map[string]task.State)
	}
	m.Jobs = append(m.Jobs, EnqueuedJob{ID: id, TaskType: taskType, Payload: payload})
	m.States[id] = task.StatePending
	return nil
}

// SetState overrides the queue state of id.
func (m *MockJobQueue) SetState(id string, state task.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.States == nil {
		m.States = make(map[string]task.State)
	}
	m.States[id] = state
}

// State returns the recorded state, task.ErrTaskNotFound for unknown ids or StateErr.
func (m *MockJobQueue) State(_ context.Context, taskID string) (*task.StateRecord, error) {
	if m.StateErr != nil {
		return nil, m.StateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.States[taskID]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	return &task.StateRecord{TaskID: taskID, State: state}, nil
}

// Enqueued returns a copy of the recorded jobs.
func (m *MockJobQueue) Enqueued() []EnqueuedJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EnqueuedJob(nil), m.Jobs...)
}
