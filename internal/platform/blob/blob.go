package blob

import (
	"context"
	"errors"
)

// ErrInvalidKey is returned for empty keys or keys that try to escape the store root.
var ErrInvalidKey = errors.New("invalid blob key")

// Store persists blobs. Put returns the location recorded on the file row;
// Exists and Delete accept that same location.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Exists(ctx context.Context, location string) (bool, error)
	Delete(ctx context.Context, location string) error
}
