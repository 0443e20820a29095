package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/domain"
)

// FileStore persists uploaded file metadata keyed by file hash.
type FileStore interface {
	// Create inserts a new file row. Returns ErrFileExists if the hash is taken.
	Create(ctx context.Context, file *domain.File) error

	// GetByHash returns ErrFileNotFound if no row exists for hash.
	GetByHash(ctx context.Context, hash string) (*domain.File, error)

	// UpdateStatus sets the status and touches updated_at.
	// Returns ErrFileNotFound if no row exists for hash.
	UpdateStatus(ctx context.Context, hash string, status domain.FileStatus) error

	// ListByUser returns the owner's files, newest first, paged by offset/limit.
	ListByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*domain.File, error)

	// WithTx returns a FileStore bound to tx.
	WithTx(tx *sql.Tx) FileStore
}
