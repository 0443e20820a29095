// Package mocks provides in-memory implementations of the task package's
// collaborators for tests.
package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/store"
	"github.com/phrazzld/fileserver-api/internal/task"
)

// FileRepository keeps files in a map. The Func fields, when set, replace
// the map behaviour for that method.
type FileRepository struct {
	mu    sync.Mutex
	files map[string]*domain.File

	GetByHashFunc    func(ctx context.Context, hash string) (*domain.File, error)
	UpdateStatusFunc func(ctx context.Context, hash string, status domain.FileStatus) error
}

// NewFileRepository returns a repository seeded with files.
func NewFileRepository(files ...*domain.File) *FileRepository {
	r := &FileRepository{files: make(map[string]*domain.File)}
	for _, f := range files {
		cp := *f
		r.files[f.FileHash] = &cp
	}
	return r
}

// GetByHash returns a copy of the stored file or store.ErrFileNotFound.
func (m *FileRepository) GetByHash(ctx context.Context, hash string) (*domain.File, error) {
	if m.GetByHashFunc != nil {
		return m.GetByHashFunc(ctx, hash)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[hash]
	if !ok {
		return nil, store.ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

// UpdateStatus sets the status of a stored file or returns store.ErrFileNotFound.
func (m *FileRepository) UpdateStatus(ctx context.Context, hash string, status domain.FileStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, hash, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[hash]
	if !ok {
		return store.ErrFileNotFound
	}
	f.Status = status
	return nil
}

// Delete removes a file, simulating a row that vanished before a worker ran.
func (m *FileRepository) Delete(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, hash)
}

// Status returns the current status of hash, or "" when absent.
func (m *FileRepository) Status(hash string) domain.FileStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[hash]; ok {
		return f.Status
	}
	return ""
}

// TaskStatusRepository keeps task status rows in a map with the same
// semantics as the Postgres store: Create ignores existing rows and
// UpdateStatus on a missing row is a no-op.
type TaskStatusRepository struct {
	mu   sync.Mutex
	rows map[string]*domain.TaskStatus

	CreateFunc       func(ctx context.Context, ts *domain.TaskStatus) error
	UpdateStatusFunc func(ctx context.Context, taskID, status string, result json.RawMessage) error
}

// NewTaskStatusRepository returns an empty repository.
func NewTaskStatusRepository() *TaskStatusRepository {
	return &TaskStatusRepository{rows: make(map[string]*domain.TaskStatus)}
}

// Create stores ts unless a row for ts.TaskID exists.
func (m *TaskStatusRepository) Create(ctx context.Context, ts *domain.TaskStatus) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[ts.TaskID]; !ok {
		cp := *ts
		m.rows[ts.TaskID] = &cp
	}
	return nil
}

// UpdateStatus updates an existing row.
func (m *TaskStatusRepository) UpdateStatus(ctx context.Context, taskID, status string, result json.RawMessage) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, taskID, status, result)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[taskID]
	if !ok {
		return nil
	}
	row.Status = status
	if result != nil {
		row.Result = result
	}
	return nil
}

// Get returns a copy of the row for taskID, or nil.
func (m *TaskStatusRepository) Get(taskID string) *domain.TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[taskID]
	if !ok {
		return nil
	}
	cp := *row
	return &cp
}

// TxRunner buffers file status updates made inside RunInTx and applies them
// to Files only when fn succeeds.
type TxRunner struct {
	Files *FileRepository

	// BeginErr, when set, is returned before fn runs.
	BeginErr error
}

// RunInTx implements task.TxRunner.
func (m *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, files task.FileRepository) error) error {
	if m.BeginErr != nil {
		return m.BeginErr
	}
	staged := &stagedFiles{base: m.Files}
	if err := fn(ctx, staged); err != nil {
		return err
	}
	for _, u := range staged.updates {
		if err := m.Files.UpdateStatus(ctx, u.hash, u.status); err != nil {
			return err
		}
	}
	return nil
}

type statusUpdate struct {
	hash   string
	status domain.FileStatus
}

type stagedFiles struct {
	base    *FileRepository
	updates []statusUpdate
}

func (s *stagedFiles) GetByHash(ctx context.Context, hash string) (*domain.File, error) {
	return s.base.GetByHash(ctx, hash)
}

func (s *stagedFiles) UpdateStatus(ctx context.Context, hash string, status domain.FileStatus) error {
	if s.base.UpdateStatusFunc != nil {
		if err := s.base.UpdateStatusFunc(ctx, hash, status); err != nil {
			return err
		}
	} else if _, err := s.base.GetByHash(ctx, hash); err != nil {
		return err
	}
	s.updates = append(s.updates, statusUpdate{hash: hash, status: status})
	return nil
}

// Enqueuer hands out sequential ids and records what was enqueued.
type Enqueuer struct {
	mu    sync.Mutex
	calls []EnqueueCall
	next  int

	EnqueueFunc func(ctx context.Context, taskType string, payload any) (string, error)
}

// EnqueueCall is one recorded Enqueue invocation.
type EnqueueCall struct {
	ID       string
	TaskType string
	Payload  any
}

// Enqueue implements task.Enqueuer.
func (m *Enqueuer) Enqueue(ctx context.Context, taskType string, payload any) (string, error) {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, taskType, payload)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("child-%d", m.next)
	m.calls = append(m.calls, EnqueueCall{ID: id, TaskType: taskType, Payload: payload})
	return id, nil
}

// Calls returns the recorded invocations.
func (m *Enqueuer) Calls() []EnqueueCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EnqueueCall(nil), m.calls...)
}

// StateReader serves queue states from a map. Unknown ids return
// task.ErrTaskNotFound; ids in Errors return that error.
type StateReader struct {
	mu     sync.Mutex
	States map[string]task.State
	Errors map[string]error
}

// NewStateReader returns an empty StateReader.
func NewStateReader() *StateReader {
	return &StateReader{States: map[string]task.State{}, Errors: map[string]error{}}
}

// Set records the state of taskID.
func (m *StateReader) Set(taskID string, state task.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.States[taskID] = state
}

// State implements task.StateReader.
func (m *StateReader) State(_ context.Context, taskID string) (*task.StateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.Errors[taskID]; ok {
		return nil, err
	}
	state, ok := m.States[taskID]
	if !ok {
		return nil, task.ErrTaskNotFound
	}
	return &task.StateRecord{TaskID: taskID, State: state}, nil
}
