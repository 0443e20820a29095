package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/platform/logger"
	"github.com/phrazzld/fileserver-api/internal/store"
)

const (
	fileNotFoundMessage = "File not found"
	fileFailedMessage   = "File processing already failed"
)

var (
	ErrNilFileRepository       = errors.New("file repository cannot be nil")
	ErrNilTaskStatusRepository = errors.New("task status repository cannot be nil")
	ErrEmptyFileHash           = errors.New("file hash cannot be empty")
)

// FileProcessingPayload is the wire payload of a file processing job.
type FileProcessingPayload struct {
	FileHash string `json:"file_hash"`
}

// FileProcessingTask moves one file through processing -> processed and
// records the outcome on its own task status row.
type FileProcessingTask struct {
	id        string
	fileHash  string
	payload   []byte
	files     FileRepository
	statuses  TaskStatusRepository
	processor FileProcessor
	logger    *slog.Logger
}

// NewFileProcessingFactory returns a Factory for TaskTypeFileProcessing.
// A nil processor skips the processing step.
func NewFileProcessingFactory(
	files FileRepository,
	statuses TaskStatusRepository,
	processor FileProcessor,
	logger *slog.Logger,
) (Factory, error) {
	if files == nil {
		return nil, ErrNilFileRepository
	}
	if statuses == nil {
		return nil, ErrNilTaskStatusRepository
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(msg Message) (Task, error) {
		var p FileProcessingPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", TaskTypeFileProcessing, err)
		}
		if p.FileHash == "" {
			return nil, ErrEmptyFileHash
		}
		return &FileProcessingTask{
			id:        msg.ID,
			fileHash:  p.FileHash,
			payload:   msg.Payload,
			files:     files,
			statuses:  statuses,
			processor: processor,
			logger:    logger.With(slog.String("task_type", TaskTypeFileProcessing)),
		}, nil
	}, nil
}

// ID returns the task's unique identifier
func (t *FileProcessingTask) ID() string {
	return t.id
}

// Type returns the task type identifier
func (t *FileProcessingTask) Type() string {
	return TaskTypeFileProcessing
}

// Payload returns the task data as a byte slice
func (t *FileProcessingTask) Payload() []byte {
	return t.payload
}

// Execute runs the file through its lifecycle. Each status change commits on
// its own; a failure after the file entered processing leaves it there.
func (t *FileProcessingTask) Execute(ctx context.Context) (any, error) {
	log := logger.FromContextOrDefault(ctx, t.logger).With(
		slog.String("task_id", t.id),
		slog.String("file_hash", t.fileHash),
	)
	log.Info("file processing started")

	file, err := t.files.GetByHash(ctx, t.fileHash)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Error("file not found")
			return t.fail(ctx, log, fileNotFoundMessage), nil
		}
		return t.fail(ctx, log, err.Error()), nil
	}

	// A redelivered job must not move a finished file back to processing.
	if file.Status.IsTerminal() {
		return t.settled(ctx, log, file.Status), nil
	}

	if err := t.files.UpdateStatus(ctx, t.fileHash, domain.FileStatusProcessing); err != nil {
		return t.fail(ctx, log, err.Error()), nil
	}

	if t.processor != nil {
		if err := t.processor.Process(ctx, file); err != nil {
			return t.fail(ctx, log, err.Error()), nil
		}
	}

	if err := t.files.UpdateStatus(ctx, t.fileHash, domain.FileStatusProcessed); err != nil {
		return t.fail(ctx, log, err.Error()), nil
	}

	result := Result{Status: ResultSuccess, FileHash: t.fileHash}
	if err := t.statuses.UpdateStatus(ctx, t.id, domain.TaskStatusCompleted, mustJSON(result)); err != nil {
		return t.fail(ctx, log, err.Error()), nil
	}

	log.Info("file processing completed")
	return result, nil
}

// settled reports the outcome already recorded on the file row without
// touching the file.
func (t *FileProcessingTask) settled(ctx context.Context, log *slog.Logger, status domain.FileStatus) Result {
	log.Warn("file already settled, skipping", slog.String("file_status", string(status)))
	if status == domain.FileStatusFailed {
		return t.fail(ctx, log, fileFailedMessage)
	}

	result := Result{Status: ResultSuccess, FileHash: t.fileHash}
	if err := t.statuses.UpdateStatus(ctx, t.id, domain.TaskStatusCompleted, mustJSON(result)); err != nil {
		log.Error("failed to mark task completed", slog.String("error", err.Error()))
	}
	return result
}

func (t *FileProcessingTask) fail(ctx context.Context, log *slog.Logger, msg string) Result {
	log.Error("file processing failed", slog.String("error", msg))

	result := errorResult(t.fileHash, msg)
	if err := t.statuses.UpdateStatus(ctx, t.id, domain.TaskStatusFailed, mustJSON(result)); err != nil {
		log.Error("failed to mark task failed", slog.String("error", err.Error()))
	}
	return result
}

// mustJSON marshals values whose types cannot fail to encode.
func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal %T: %v", v, err))
	}
	return raw
}
