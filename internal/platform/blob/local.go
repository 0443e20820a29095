package blob

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/spf13/afero"
)

// LocalStore writes blobs as files under dir.
type LocalStore struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
}

// NewLocalStore creates a LocalStore rooted at dir on fs, creating dir if needed.
// Pass afero.NewOsFs() in production and afero.NewMemMapFs() in tests.
func NewLocalStore(fs afero.Fs, dir string, logger *slog.Logger) (*LocalStore, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem cannot be nil")
	}
	if dir == "" {
		return nil, fmt.Errorf("upload directory cannot be empty")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{
		fs:     fs,
		dir:    dir,
		logger: logger.With(slog.String("component", "local_blob_store")),
	}, nil
}

var _ Store = (*LocalStore)(nil)

func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, `/\`) && key != "." && key != ".."
}

// Put implements Store.Put. The returned location is dir/key.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	location := path.Join(s.dir, key)

	if err := afero.WriteFile(s.fs, location, data, 0o644); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to write blob",
			slog.String("location", location),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	return location, nil
}

// Exists implements Store.Exists.
func (s *LocalStore) Exists(_ context.Context, location string) (bool, error) {
	return afero.Exists(s.fs, location)
}

// Delete implements Store.Delete. Deleting a missing blob is not an error.
func (s *LocalStore) Delete(ctx context.Context, location string) error {
	if err := s.fs.Remove(location); err != nil && !os.IsNotExist(err) {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to delete blob",
			slog.String("location", location),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}
