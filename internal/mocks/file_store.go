package mocks

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockFileStore is a testify mock of store.FileStore.
type MockFileStore struct {
	mock.Mock
}

var _ store.FileStore = (*MockFileStore)(nil)

// Create is a mock implementation of store.FileStore.Create
func (m *MockFileStore) Create(ctx context.Context, file *domain.File) error {
	args := m.Called(ctx, file)
	return args.Error(0)
}

// GetByHash is a mock implementation of store.FileStore.GetByHash
func (m *MockFileStore) GetByHash(ctx context.Context, hash string) (*domain.File, error) {
	args := m.Called(ctx, hash)
	if f, ok := args.Get(0).(*domain.File); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateStatus is a mock implementation of store.FileStore.UpdateStatus
func (m *MockFileStore) UpdateStatus(ctx context.Context, hash string, status domain.FileStatus) error {
	args := m.Called(ctx, hash, status)
	return args.Error(0)
}

// ListByUser is a mock implementation of store.FileStore.ListByUser
func (m *MockFileStore) ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*domain.File, error) {
	args := m.Called(ctx, userID, offset, limit)
	if files, ok := args.Get(0).([]*domain.File); ok {
		return files, args.Error(1)
	}
	return nil, args.Error(1)
}

// WithTx returns the same mock so expectations carry over.
func (m *MockFileStore) WithTx(*sql.Tx) store.FileStore {
	return m
}
