package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create validates the user, hashes user.Password and inserts the row.
	// Returns ErrUsernameExists or ErrEmailExists on a uniqueness conflict.
	Create(ctx context.Context, user *domain.User) error

	// GetByID returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByUsername returns ErrUserNotFound if the user does not exist.
	// The returned user carries HashedPassword for credential checks.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// List returns every user ordered by creation time.
	List(ctx context.Context) ([]*domain.User, error)

	// WithTx returns a UserStore bound to tx.
	WithTx(tx *sql.Tx) UserStore
}
