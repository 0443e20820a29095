package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/platform/blob"
	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/phrazzld/fileserver-api/internal/store"
	"github.com/phrazzld/fileserver-api/internal/task"
)

// Paging defaults for ListFiles.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// UploadStatusProcessing is the status reported for every accepted upload.
const UploadStatusProcessing = "processing"

// JobQueue is the part of the task runner the services need.
// *task.TaskRunner implements it.
type JobQueue interface {
	EnqueueWithID(ctx context.Context, id, taskType string, payload any) error
	State(ctx context.Context, taskID string) (*task.StateRecord, error)
}

// FileSource yields the files of a multi-file upload one at a time. Next
// returns io.EOF after the last file. Each reader is only valid until the
// following call to Next.
type FileSource interface {
	Next() (filename string, content io.Reader, err error)
}

// UploadResult is returned per accepted file.
type UploadResult struct {
	TaskID   string `json:"task_id"`
	FileHash string `json:"file_hash"`
	Status   string `json:"status"`
}

// UploadService accepts uploads and lists a user's files.
type UploadService interface {
	// UploadFile stores one file and dispatches a file processing job for it.
	UploadFile(ctx context.Context, userID uuid.UUID, filename string, content io.Reader) (*UploadResult, error)

	// UploadFiles stores every file from src and dispatches one batch job
	// covering all of them. Files stored before a failure are kept.
	UploadFiles(ctx context.Context, userID uuid.UUID, src FileSource) ([]UploadResult, error)

	// ListFiles returns the user's files newest first.
	ListFiles(ctx context.Context, userID uuid.UUID, skip, limit int) ([]*domain.File, error)
}

// UploadServiceImpl implements UploadService.
type UploadServiceImpl struct {
	files    store.FileStore
	statuses store.TaskStatusStore
	blobs    blob.Store
	queue    JobQueue
	hasher   *domain.FileHasher
	maxSize  int64
	newID    func() string
	logger   *slog.Logger
}

var _ UploadService = (*UploadServiceImpl)(nil)

// UploadServiceConfig groups the collaborators of NewUploadService.
type UploadServiceConfig struct {
	Files    store.FileStore
	Statuses store.TaskStatusStore
	Blobs    blob.Store
	Queue    JobQueue
	Hasher   *domain.FileHasher
	MaxSize  int64
}

// NewUploadService creates an UploadService. A nil Hasher uses the system
// clock and crypto/rand.
func NewUploadService(cfg UploadServiceConfig, logger *slog.Logger) (*UploadServiceImpl, error) {
	switch {
	case cfg.Files == nil:
		return nil, errors.New("file store cannot be nil")
	case cfg.Statuses == nil:
		return nil, errors.New("task status store cannot be nil")
	case cfg.Blobs == nil:
		return nil, errors.New("blob store cannot be nil")
	case cfg.Queue == nil:
		return nil, errors.New("job queue cannot be nil")
	case cfg.MaxSize <= 0:
		return nil, fmt.Errorf("max upload size must be positive, got %d", cfg.MaxSize)
	}
	if cfg.Hasher == nil {
		cfg.Hasher = domain.NewFileHasher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadServiceImpl{
		files:    cfg.Files,
		statuses: cfg.Statuses,
		blobs:    cfg.Blobs,
		queue:    cfg.Queue,
		hasher:   cfg.Hasher,
		maxSize:  cfg.MaxSize,
		newID:    uuid.NewString,
		logger:   logger.With(slog.String("component", "upload_service")),
	}, nil
}

// UploadFile implements UploadService.
//
// The task status row is written before the job is published so the worker
// always finds it; a publish failure marks that row failed.
func (s *UploadServiceImpl) UploadFile(
	ctx context.Context,
	userID uuid.UUID,
	filename string,
	content io.Reader,
) (*UploadResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("user_id", userID.String()))

	file, err := s.storeFile(ctx, log, userID, filename, content)
	if err != nil {
		return nil, err
	}

	taskID := s.newID()
	ts, err := domain.NewTaskStatus(taskID, domain.TaskStatusPending)
	if err != nil {
		return nil, err
	}
	if err := s.statuses.Create(ctx, ts); err != nil {
		log.Error("failed to create task status",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to create task status: %w", err)
	}

	payload := task.FileProcessingPayload{FileHash: file.FileHash}
	if err := s.queue.EnqueueWithID(ctx, taskID, task.TaskTypeFileProcessing, payload); err != nil {
		log.Error("failed to dispatch file processing",
			slog.String("task_id", taskID),
			slog.String("file_hash", file.FileHash),
			slog.String("error", err.Error()))
		if uerr := s.statuses.UpdateStatus(ctx, taskID, domain.TaskStatusFailed, nil); uerr != nil {
			log.Error("failed to mark task status failed",
				slog.String("task_id", taskID),
				slog.String("error", uerr.Error()))
		}
		return nil, fmt.Errorf("failed to dispatch file processing: %w", err)
	}

	log.Info("file accepted",
		slog.String("task_id", taskID),
		slog.String("file_hash", file.FileHash))
	return &UploadResult{TaskID: taskID, FileHash: file.FileHash, Status: UploadStatusProcessing}, nil
}

// UploadFiles implements UploadService.
func (s *UploadServiceImpl) UploadFiles(
	ctx context.Context,
	userID uuid.UUID,
	src FileSource,
) ([]UploadResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("user_id", userID.String()))

	var hashes []string
	for {
		name, content, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}

		file, err := s.storeFile(ctx, log, userID, name, content)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, file.FileHash)
	}
	if len(hashes) == 0 {
		return nil, ErrNoFiles
	}

	batchID := s.newID()
	payload := task.BatchProcessingPayload{FileHashes: hashes}
	if err := s.queue.EnqueueWithID(ctx, batchID, task.TaskTypeBatchProcessing, payload); err != nil {
		log.Error("failed to dispatch batch processing",
			slog.String("task_id", batchID),
			slog.Int("file_count", len(hashes)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to dispatch batch processing: %w", err)
	}

	results := make([]UploadResult, 0, len(hashes))
	for _, h := range hashes {
		results = append(results, UploadResult{TaskID: batchID, FileHash: h, Status: UploadStatusProcessing})
	}

	log.Info("files accepted",
		slog.String("task_id", batchID),
		slog.Int("file_count", len(hashes)))
	return results, nil
}

// storeFile hashes the name, buffers the content up to the size limit,
// writes the blob and creates the pending File row. Nothing is written when
// the content is too large; the blob is removed again if the row cannot be
// created.
func (s *UploadServiceImpl) storeFile(
	ctx context.Context,
	log *slog.Logger,
	userID uuid.UUID,
	filename string,
	content io.Reader,
) (*domain.File, error) {
	hash, err := s.hasher.Hash(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to hash filename: %w", err)
	}
	log = log.With(slog.String("file_hash", hash))

	var buf bytes.Buffer
	n, err := buf.ReadFrom(io.LimitReader(content, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n > s.maxSize {
		log.Warn("upload rejected: too large", slog.Int64("limit", s.maxSize))
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxSize)
	}

	// Validate before touching the blob store; the real path is set below.
	file, err := domain.NewFile(hash, filename, hash, userID)
	if err != nil {
		return nil, err
	}

	location, err := s.blobs.Put(ctx, hash, buf.Bytes())
	if err != nil {
		log.Error("failed to store blob", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	file.FilePath = location

	if err := s.files.Create(ctx, file); err != nil {
		log.Error("failed to create file record", slog.String("error", err.Error()))
		if derr := s.blobs.Delete(ctx, location); derr != nil {
			log.Error("failed to remove orphaned blob",
				slog.String("location", location),
				slog.String("error", derr.Error()))
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	log.Debug("file stored", slog.Int64("size", n), slog.String("location", location))
	return file, nil
}

// ListFiles implements UploadService.
func (s *UploadServiceImpl) ListFiles(ctx context.Context, userID uuid.UUID, skip, limit int) ([]*domain.File, error) {
	if skip < 0 || limit < 1 || limit > MaxListLimit {
		return nil, fmt.Errorf("%w: skip=%d limit=%d", ErrInvalidPaging, skip, limit)
	}
	files, err := s.files.ListByUser(ctx, userID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}
