package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/phrazzld/fileserver-api/internal/store"
)

// PostgresFileStore implements store.FileStore on the file_uploads table.
type PostgresFileStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresFileStore creates a file store. If logger is nil, slog.Default() is used.
func NewPostgresFileStore(db store.DBTX, logger *slog.Logger) *PostgresFileStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresFileStore{
		db:     db,
		logger: logger.With(slog.String("component", "file_store")),
	}
}

var _ store.FileStore = (*PostgresFileStore)(nil)

// WithTx implements store.FileStore.WithTx
func (s *PostgresFileStore) WithTx(tx *sql.Tx) store.FileStore {
	return &PostgresFileStore{db: tx, logger: s.logger}
}

// Create implements store.FileStore.Create
func (s *PostgresFileStore) Create(ctx context.Context, file *domain.File) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := file.Validate(); err != nil {
		log.Warn("file validation failed during create",
			slog.String("error", err.Error()),
			slog.String("file_hash", file.FileHash))
		return err
	}

	query := `
		INSERT INTO file_uploads
			(file_hash, original_filename, file_path, user_id, status, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		file.FileHash,
		file.OriginalFilename,
		file.FilePath,
		file.UserID,
		string(file.Status),
		file.IsDeleted,
		file.CreatedAt,
		file.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrFileExists
		}
		log.Error("failed to create file",
			slog.String("error", err.Error()),
			slog.String("file_hash", file.FileHash),
			slog.String("user_id", file.UserID.String()))
		return MapError(err)
	}

	log.Info("file created successfully",
		slog.String("file_hash", file.FileHash),
		slog.String("user_id", file.UserID.String()))
	return nil
}

const fileColumns = `file_hash, original_filename, file_path, user_id, status, is_deleted, created_at, updated_at`

func scanFile(row interface{ Scan(dest ...any) error }) (*domain.File, error) {
	var f domain.File
	var status string
	if err := row.Scan(
		&f.FileHash,
		&f.OriginalFilename,
		&f.FilePath,
		&f.UserID,
		&status,
		&f.IsDeleted,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	f.Status = domain.FileStatus(status)
	return &f, nil
}

// GetByHash implements store.FileStore.GetByHash
func (s *PostgresFileStore) GetByHash(ctx context.Context, hash string) (*domain.File, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM file_uploads WHERE file_hash = $1`, hash)
	file, err := scanFile(row)
	if err != nil {
		if IsNotFoundError(err) {
			log.Debug("file not found", slog.String("file_hash", hash))
			return nil, store.ErrFileNotFound
		}
		log.Error("failed to get file by hash",
			slog.String("error", err.Error()),
			slog.String("file_hash", hash))
		return nil, store.NewStoreError("file", "get_by_hash", "query failed", err)
	}
	return file, nil
}

// UpdateStatus implements store.FileStore.UpdateStatus
func (s *PostgresFileStore) UpdateStatus(ctx context.Context, hash string, status domain.FileStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !status.Valid() {
		log.Warn("invalid file status",
			slog.String("file_hash", hash),
			slog.String("status", string(status)))
		return domain.ErrInvalidFileStatus
	}

	result, err := s.db.ExecContext(
		ctx,
		`UPDATE file_uploads SET status = $1, updated_at = $2 WHERE file_hash = $3`,
		string(status),
		time.Now().UTC(),
		hash,
	)
	if err != nil {
		log.Error("failed to update file status",
			slog.String("error", err.Error()),
			slog.String("file_hash", hash),
			slog.String("status", string(status)))
		return MapError(err)
	}

	if err := checkRowsAffected(result, store.ErrFileNotFound); err != nil {
		log.Debug("file status update affected no rows",
			slog.String("file_hash", hash),
			slog.String("error", err.Error()))
		return err
	}

	log.Debug("file status updated",
		slog.String("file_hash", hash),
		slog.String("status", string(status)))
	return nil
}

// ListByUser implements store.FileStore.ListByUser
func (s *PostgresFileStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	offset, limit int,
) ([]*domain.File, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + fileColumns + `
		FROM file_uploads
		WHERE user_id = $1
		ORDER BY created_at DESC, file_hash
		OFFSET $2 LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, userID, offset, limit)
	if err != nil {
		log.Error("failed to list files",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := []*domain.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			log.Error("failed to scan file row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("file", "list_by_user", "scan failed", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating file rows", slog.String("error", err.Error()))
		return nil, err
	}
	return files, nil
}
