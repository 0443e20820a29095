package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/task"
	"github.com/phrazzld/fileserver-api/internal/task/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchFixture struct {
	files    *mocks.FileRepository
	statuses *mocks.TaskStatusRepository
	enqueuer *mocks.Enqueuer
	states   *mocks.StateReader
	tx       *mocks.TxRunner
}

func newBatchFixture(t *testing.T, hashes ...string) *batchFixture {
	t.Helper()
	seed := make([]*domain.File, 0, len(hashes))
	for _, h := range hashes {
		seed = append(seed, newPendingFile(t, h))
	}
	files := mocks.NewFileRepository(seed...)
	return &batchFixture{
		files:    files,
		statuses: mocks.NewTaskStatusRepository(),
		enqueuer: &mocks.Enqueuer{},
		states:   mocks.NewStateReader(),
		tx:       &mocks.TxRunner{Files: files},
	}
}

func (f *batchFixture) run(t *testing.T, taskID string, hashes ...string) []task.Result {
	t.Helper()
	factory, err := task.NewBatchProcessingFactory(task.BatchDeps{
		Files:    f.files,
		Statuses: f.statuses,
		Enqueuer: f.enqueuer,
		States:   f.states,
		Tx:       f.tx,
	}, nil)
	require.NoError(t, err)

	payload, err := json.Marshal(task.BatchProcessingPayload{FileHashes: hashes})
	require.NoError(t, err)

	tk, err := factory(task.Message{ID: taskID, Type: task.TaskTypeBatchProcessing, Payload: payload})
	require.NoError(t, err)

	out, err := tk.Execute(context.Background())
	require.NoError(t, err)
	return out.([]task.Result)
}

func TestBatchProcessingTask_MissingFilesYieldErrorEntries(t *testing.T) {
	t.Parallel()

	present := []string{testHash("1"), testHash("2"), testHash("3")}
	missing := []string{testHash("4"), testHash("5")}
	f := newBatchFixture(t, present...)

	input := []string{present[0], missing[0], present[1], missing[1], present[2]}
	results := f.run(t, "batch-1", input...)

	require.Len(t, results, len(input))
	var errorsSeen, processing int
	for i, r := range results {
		assert.Equal(t, input[i], r.FileHash, "results keep input order")
		switch r.Status {
		case task.ResultError:
			errorsSeen++
			assert.Equal(t, "File not found", r.Error)
			assert.Empty(t, r.TaskID)
		case task.ResultProcessing:
			processing++
			assert.NotEmpty(t, r.TaskID)
		}
	}
	assert.Equal(t, len(missing), errorsSeen)
	assert.Equal(t, len(present), processing)

	calls := f.enqueuer.Calls()
	require.Len(t, calls, len(present))
	for _, c := range calls {
		assert.Equal(t, task.TaskTypeFileProcessing, c.TaskType)
	}

	parent := f.statuses.Get("batch-1")
	require.NotNil(t, parent)
	assert.Equal(t, domain.TaskStatusCompleted, parent.Status)

	var stored []task.Result
	require.NoError(t, json.Unmarshal(parent.Result, &stored))
	assert.Equal(t, results, stored)

	// children get no status rows of their own
	for _, c := range calls {
		assert.Nil(t, f.statuses.Get(c.ID))
	}
}

func TestBatchProcessingTask_SnapshotPoll(t *testing.T) {
	t.Parallel()

	hashes := []string{testHash("a"), testHash("b"), testHash("c"), testHash("d")}
	f := newBatchFixture(t, hashes...)

	// children are numbered in dispatch order by the mock enqueuer
	f.states.Set("child-1", task.StateSuccess)
	f.states.Set("child-2", task.StateFailure)
	f.states.Set("child-3", task.StateStarted)
	f.states.Errors["child-4"] = errors.New("backend timeout")

	results := f.run(t, "batch-2", hashes...)
	for _, r := range results {
		assert.Equal(t, task.ResultProcessing, r.Status, "results reflect dispatch, not the poll")
	}

	assert.Equal(t, domain.FileStatusProcessed, f.files.Status(hashes[0]))
	assert.Equal(t, domain.FileStatusFailed, f.files.Status(hashes[1]))
	assert.Equal(t, domain.FileStatusProcessing, f.files.Status(hashes[2]))
	assert.Equal(t, domain.FileStatusFailed, f.files.Status(hashes[3]))
	assert.Equal(t, domain.TaskStatusCompleted, f.statuses.Get("batch-2").Status)
}

func TestBatchProcessingTask_UnknownChildStateForcesFailure(t *testing.T) {
	t.Parallel()

	hash := testHash("e")
	f := newBatchFixture(t, hash)

	f.run(t, "batch-3", hash)

	assert.Equal(t, domain.FileStatusFailed, f.files.Status(hash))
	assert.Equal(t, domain.TaskStatusCompleted, f.statuses.Get("batch-3").Status)
}

func TestBatchProcessingTask_DispatchErrorsAreReported(t *testing.T) {
	t.Parallel()

	hashes := []string{testHash("f"), testHash("0")}
	f := newBatchFixture(t, hashes...)
	f.enqueuer.EnqueueFunc = func(ctx context.Context, taskType string, payload any) (string, error) {
		return "", errors.New("queue full")
	}

	results := f.run(t, "batch-4", hashes...)
	for _, r := range results {
		assert.Equal(t, task.ResultError, r.Status)
		assert.Equal(t, "queue full", r.Error)
	}
	assert.Equal(t, domain.TaskStatusCompleted, f.statuses.Get("batch-4").Status)
}

// failOnFailed rejects marking one file failed.
type failOnFailed struct {
	task.FileRepository
	hash string
}

func (f failOnFailed) UpdateStatus(ctx context.Context, hash string, status domain.FileStatus) error {
	if hash == f.hash && status == domain.FileStatusFailed {
		return errors.New("write conflict")
	}
	return f.FileRepository.UpdateStatus(ctx, hash, status)
}

type failingTx struct {
	inner *mocks.TxRunner
	hash  string
}

func (tx failingTx) RunInTx(ctx context.Context, fn func(ctx context.Context, files task.FileRepository) error) error {
	return tx.inner.RunInTx(ctx, func(ctx context.Context, files task.FileRepository) error {
		return fn(ctx, failOnFailed{FileRepository: files, hash: tx.hash})
	})
}

func TestBatchProcessingTask_PollFailureRollsBack(t *testing.T) {
	t.Parallel()

	hashes := []string{testHash("6"), testHash("7")}
	f := newBatchFixture(t, hashes...)
	f.states.Set("child-1", task.StateSuccess)
	f.states.Errors["child-2"] = errors.New("backend timeout")

	factory, err := task.NewBatchProcessingFactory(task.BatchDeps{
		Files:    f.files,
		Statuses: f.statuses,
		Enqueuer: f.enqueuer,
		States:   f.states,
		Tx:       failingTx{inner: f.tx, hash: hashes[1]},
	}, nil)
	require.NoError(t, err)

	payload, err := json.Marshal(task.BatchProcessingPayload{FileHashes: hashes})
	require.NoError(t, err)
	tk, err := factory(task.Message{ID: "batch-5", Payload: payload})
	require.NoError(t, err)

	out, err := tk.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, out.([]task.Result), 2)

	// child-1's processed update was rolled back with the rest of the poll
	assert.Equal(t, domain.FileStatusProcessing, f.files.Status(hashes[0]))
	assert.Equal(t, domain.FileStatusProcessing, f.files.Status(hashes[1]))

	parent := f.statuses.Get("batch-5")
	require.NotNil(t, parent)
	assert.Equal(t, domain.TaskStatusFailed, parent.Status)
}

func TestBatchProcessingTask_ParentCreateFailure(t *testing.T) {
	t.Parallel()

	hash := testHash("8")
	f := newBatchFixture(t, hash)
	f.statuses.CreateFunc = func(context.Context, *domain.TaskStatus) error {
		return errors.New("db gone")
	}

	results := f.run(t, "batch-6", hash)
	assert.Empty(t, results)
	assert.Empty(t, f.enqueuer.Calls())
	assert.Equal(t, domain.FileStatusPending, f.files.Status(hash))
}

func TestBatchProcessingTask_RedeliveryKeepsParentRow(t *testing.T) {
	t.Parallel()

	hash := testHash("9")
	f := newBatchFixture(t, hash)
	f.states.Set("child-1", task.StateSuccess)
	f.states.Set("child-2", task.StateSuccess)

	f.run(t, "batch-7", hash)
	f.run(t, "batch-7", hash)

	assert.Equal(t, domain.TaskStatusCompleted, f.statuses.Get("batch-7").Status)
	assert.Len(t, f.enqueuer.Calls(), 1, "a processed file is not dispatched again")
}

func TestBatchProcessingTask_RedeliveryLeavesSettledFiles(t *testing.T) {
	t.Parallel()

	processed, failed, pending := testHash("1"), testHash("2"), testHash("3")
	f := newBatchFixture(t, processed, failed, pending)
	ctx := context.Background()
	require.NoError(t, f.files.UpdateStatus(ctx, processed, domain.FileStatusProcessed))
	require.NoError(t, f.files.UpdateStatus(ctx, failed, domain.FileStatusFailed))

	var writes []domain.FileStatus
	f.files.UpdateStatusFunc = func(_ context.Context, hash string, status domain.FileStatus) error {
		if hash != pending {
			writes = append(writes, status)
		}
		return nil
	}

	results := f.run(t, "batch-8", processed, failed, pending)

	assert.Equal(t, []task.Result{
		{Status: task.ResultSuccess, FileHash: processed},
		{Status: task.ResultError, FileHash: failed, Error: "File processing already failed"},
		{Status: task.ResultProcessing, FileHash: pending, TaskID: "child-1"},
	}, results)
	assert.Empty(t, writes, "settled files are never written")

	calls := f.enqueuer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, task.FileProcessingPayload{FileHash: pending}, calls[0].Payload)
}

func TestNewBatchProcessingFactory_Validation(t *testing.T) {
	t.Parallel()

	f := newBatchFixture(t)
	full := task.BatchDeps{Files: f.files, Statuses: f.statuses, Enqueuer: f.enqueuer, States: f.states, Tx: f.tx}

	tests := []struct {
		name   string
		mutate func(d *task.BatchDeps)
		want   error
	}{
		{"files", func(d *task.BatchDeps) { d.Files = nil }, task.ErrNilFileRepository},
		{"statuses", func(d *task.BatchDeps) { d.Statuses = nil }, task.ErrNilTaskStatusRepository},
		{"enqueuer", func(d *task.BatchDeps) { d.Enqueuer = nil }, task.ErrNilEnqueuer},
		{"states", func(d *task.BatchDeps) { d.States = nil }, task.ErrNilStateReader},
		{"tx", func(d *task.BatchDeps) { d.Tx = nil }, task.ErrNilTxRunner},
	}
	for _, tt := range tests {
		deps := full
		tt.mutate(&deps)
		_, err := task.NewBatchProcessingFactory(deps, nil)
		assert.ErrorIs(t, err, tt.want, tt.name)
	}
}
