package mocks

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/store"
)

// MockTaskStatusStore implements store.TaskStatusStore with a map and the
// same conflict rules as the Postgres store.
type MockTaskStatusStore struct {
	mu   sync.Mutex
	Rows map[string]*domain.TaskStatus

	CreateFn      func(ctx context.Context, ts *domain.TaskStatus) error
	UpsertFn      func(ctx context.Context, ts *domain.TaskStatus) (*domain.TaskStatus, error)
	GetByTaskIDFn func(ctx context.Context, taskID string) (*domain.TaskStatus, error)

	// UpsertCalls counts Upsert invocations, including overridden ones.
	UpsertCalls int
}

var _ store.TaskStatusStore = (*MockTaskStatusStore)(nil)

// NewMockTaskStatusStore creates a store seeded with rows.
func NewMockTaskStatusStore(rows ...*domain.TaskStatus) *MockTaskStatusStore {
	m := &MockTaskStatusStore{Rows: make(map[string]*domain.TaskStatus)}
	for _, r := range rows {
		m.Rows[r.TaskID] = r
	}
	return m
}

// Create implements store.TaskStatusStore.
func (m *MockTaskStatusStore) Create(ctx context.Context, ts *domain.TaskStatus) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, ts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Rows[ts.TaskID]; !ok {
		cp := *ts
		m.Rows[ts.TaskID] = &cp
	}
	return nil
}

// Upsert implements store.TaskStatusStore; an existing row wins.
func (m *MockTaskStatusStore) Upsert(ctx context.Context, ts *domain.TaskStatus) (*domain.TaskStatus, error) {
	m.mu.Lock()
	m.UpsertCalls++
	m.mu.Unlock()
	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, ts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.Rows[ts.TaskID]
	if !ok {
		cp := *ts
		row = &cp
		m.Rows[ts.TaskID] = row
	}
	out := *row
	return &out, nil
}

// GetByTaskID implements store.TaskStatusStore.
func (m *MockTaskStatusStore) GetByTaskID(ctx context.Context, taskID string) (*domain.TaskStatus, error) {
	if m.GetByTaskIDFn != nil {
		return m.GetByTaskIDFn(ctx, taskID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.Rows[taskID]
	if !ok {
		return nil, store.ErrTaskStatusNotFound
	}
	out := *row
	return &out, nil
}

// UpdateStatus implements store.TaskStatusStore; a missing row is ignored.
func (m *MockTaskStatusStore) UpdateStatus(_ context.Context, taskID, status string, result json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.Rows[taskID]
	if !ok {
		return nil
	}
	row.Status = status
	if result != nil {
		row.Result = result
	}
	return nil
}

// WithTx implements store.TaskStatusStore; the mock has no transactions.
func (m *MockTaskStatusStore) WithTx(*sql.Tx) store.TaskStatusStore {
	return m
}
