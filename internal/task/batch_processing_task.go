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

var (
	ErrNilEnqueuer    = errors.New("enqueuer cannot be nil")
	ErrNilStateReader = errors.New("state reader cannot be nil")
	ErrNilTxRunner    = errors.New("transaction runner cannot be nil")
)

// BatchProcessingPayload is the wire payload of a batch job.
type BatchProcessingPayload struct {
	FileHashes []string `json:"file_hashes"`
}

// BatchProcessingTask dispatches one file processing job per hash, takes a
// single snapshot of the children's queue state and records the batch
// outcome on its own task status row.
type BatchProcessingTask struct {
	id       string
	hashes   []string
	payload  []byte
	files    FileRepository
	statuses TaskStatusRepository
	enqueuer Enqueuer
	states   StateReader
	tx       TxRunner
	logger   *slog.Logger
}

// BatchDeps groups the collaborators of a batch job.
type BatchDeps struct {
	Files    FileRepository
	Statuses TaskStatusRepository
	Enqueuer Enqueuer
	States   StateReader
	Tx       TxRunner
}

func (d BatchDeps) validate() error {
	switch {
	case d.Files == nil:
		return ErrNilFileRepository
	case d.Statuses == nil:
		return ErrNilTaskStatusRepository
	case d.Enqueuer == nil:
		return ErrNilEnqueuer
	case d.States == nil:
		return ErrNilStateReader
	case d.Tx == nil:
		return ErrNilTxRunner
	}
	return nil
}

// NewBatchProcessingFactory returns a Factory for TaskTypeBatchProcessing.
func NewBatchProcessingFactory(deps BatchDeps, logger *slog.Logger) (Factory, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(msg Message) (Task, error) {
		var p BatchProcessingPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", TaskTypeBatchProcessing, err)
		}
		return &BatchProcessingTask{
			id:       msg.ID,
			hashes:   p.FileHashes,
			payload:  msg.Payload,
			files:    deps.Files,
			statuses: deps.Statuses,
			enqueuer: deps.Enqueuer,
			states:   deps.States,
			tx:       deps.Tx,
			logger:   logger.With(slog.String("task_type", TaskTypeBatchProcessing)),
		}, nil
	}, nil
}

// ID returns the task's unique identifier
func (t *BatchProcessingTask) ID() string {
	return t.id
}

// Type returns the task type identifier
func (t *BatchProcessingTask) Type() string {
	return TaskTypeBatchProcessing
}

// Payload returns the task data as a byte slice
func (t *BatchProcessingTask) Payload() []byte {
	return t.payload
}

type dispatchedChild struct {
	taskID   string
	fileHash string
}

// Execute returns the dispatch-time results, one per input hash. Post-poll
// outcomes only show up on the file rows.
func (t *BatchProcessingTask) Execute(ctx context.Context) (any, error) {
	log := logger.FromContextOrDefault(ctx, t.logger).With(slog.String("task_id", t.id))
	log.Info("batch processing started", slog.Int("file_count", len(t.hashes)))

	results := make([]Result, 0, len(t.hashes))

	parent, err := domain.NewTaskStatus(t.id, domain.TaskStatusPending)
	if err == nil {
		err = t.statuses.Create(ctx, parent)
	}
	if err != nil {
		t.failParent(ctx, log, results, err)
		return results, nil
	}

	children := make([]dispatchedChild, 0, len(t.hashes))
	for _, hash := range t.hashes {
		result := t.dispatch(ctx, log, hash)
		results = append(results, result)
		if result.Status == ResultProcessing {
			children = append(children, dispatchedChild{taskID: result.TaskID, fileHash: hash})
		}
	}

	err = t.tx.RunInTx(ctx, func(ctx context.Context, files FileRepository) error {
		for _, child := range children {
			if err := t.reconcile(ctx, log, files, child); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.failParent(ctx, log, results, err)
		return results, nil
	}

	if err := t.statuses.UpdateStatus(ctx, t.id, domain.TaskStatusCompleted, mustJSON(results)); err != nil {
		t.failParent(ctx, log, results, err)
		return results, nil
	}

	log.Info("batch processing completed", slog.Int("dispatched", len(children)))
	return results, nil
}

// dispatch marks one file processing and enqueues its child job. Errors are
// reported in the returned Result and never stop the batch.
func (t *BatchProcessingTask) dispatch(ctx context.Context, log *slog.Logger, hash string) Result {
	log = log.With(slog.String("file_hash", hash))

	file, err := t.files.GetByHash(ctx, hash)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Error("file not found")
			return errorResult(hash, fileNotFoundMessage)
		}
		log.Error("failed to load file", slog.String("error", err.Error()))
		return errorResult(hash, err.Error())
	}

	// Settled files are reported as they stand; a redelivered batch must not
	// reset them or start a second child job.
	switch file.Status {
	case domain.FileStatusProcessed:
		log.Debug("file already processed, not dispatching")
		return Result{Status: ResultSuccess, FileHash: hash}
	case domain.FileStatusFailed:
		log.Debug("file already failed, not dispatching")
		return errorResult(hash, fileFailedMessage)
	}

	if err := t.files.UpdateStatus(ctx, hash, domain.FileStatusProcessing); err != nil {
		log.Error("failed to mark file processing", slog.String("error", err.Error()))
		return errorResult(hash, err.Error())
	}

	childID, err := t.enqueuer.Enqueue(ctx, TaskTypeFileProcessing, FileProcessingPayload{FileHash: hash})
	if err != nil {
		log.Error("failed to dispatch file task", slog.String("error", err.Error()))
		return errorResult(hash, err.Error())
	}

	log.Debug("file task dispatched", slog.String("child_task_id", childID))
	return Result{Status: ResultProcessing, FileHash: hash, TaskID: childID}
}

// reconcile applies one snapshot of a child's queue state to its file.
// Only a failure to force-mark the file escapes and rolls the poll back.
func (t *BatchProcessingTask) reconcile(
	ctx context.Context,
	log *slog.Logger,
	files FileRepository,
	child dispatchedChild,
) error {
	log = log.With(
		slog.String("child_task_id", child.taskID),
		slog.String("file_hash", child.fileHash),
	)

	err := t.applyChildState(ctx, log, files, child)
	if err == nil {
		return nil
	}

	log.Error("failed to check child task, marking file failed", slog.String("error", err.Error()))
	if err := setFileStatus(ctx, files, child.fileHash, domain.FileStatusFailed); err != nil {
		return fmt.Errorf("failed to mark file %s failed: %w", child.fileHash, err)
	}
	return nil
}

func (t *BatchProcessingTask) applyChildState(
	ctx context.Context,
	log *slog.Logger,
	files FileRepository,
	child dispatchedChild,
) error {
	rec, err := t.states.State(ctx, child.taskID)
	if err != nil {
		return err
	}

	switch rec.State {
	case StateSuccess:
		return setFileStatus(ctx, files, child.fileHash, domain.FileStatusProcessed)
	case StateFailure:
		return setFileStatus(ctx, files, child.fileHash, domain.FileStatusFailed)
	default:
		log.Debug("child task still running", slog.String("state", string(rec.State)))
		return nil
	}
}

// setFileStatus treats a vanished file row as nothing to update.
func setFileStatus(ctx context.Context, files FileRepository, hash string, status domain.FileStatus) error {
	err := files.UpdateStatus(ctx, hash, status)
	if store.IsNotFoundError(err) {
		return nil
	}
	return err
}

func (t *BatchProcessingTask) failParent(ctx context.Context, log *slog.Logger, results []Result, cause error) {
	log.Error("batch processing failed", slog.String("error", cause.Error()))
	if err := t.statuses.UpdateStatus(ctx, t.id, domain.TaskStatusFailed, mustJSON(results)); err != nil {
		log.Error("failed to mark batch failed", slog.String("error", err.Error()))
	}
}
