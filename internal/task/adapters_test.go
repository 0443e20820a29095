package task_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/platform/blob"
	"github.com/phrazzld/fileserver-api/internal/platform/postgres"
	"github.com/phrazzld/fileserver-api/internal/task"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreTxRunner(t *testing.T) {
	t.Parallel()

	updateSQL := `UPDATE file_uploads SET status = \$1, updated_at = \$2 WHERE file_hash = \$3`

	t.Run("commits on success", func(t *testing.T) {
		t.Parallel()
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectExec(updateSQL).
			WithArgs(string(domain.FileStatusProcessed), sqlmock.AnyArg(), testHash("a")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		runner := task.NewStoreTxRunner(db, postgres.NewPostgresFileStore(db, nil))
		err = runner.RunInTx(context.Background(), func(ctx context.Context, files task.FileRepository) error {
			return files.UpdateStatus(ctx, testHash("a"), domain.FileStatusProcessed)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		t.Parallel()
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectExec(updateSQL).
			WithArgs(string(domain.FileStatusFailed), sqlmock.AnyArg(), testHash("b")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		boom := errors.New("boom")
		runner := task.NewStoreTxRunner(db, postgres.NewPostgresFileStore(db, nil))
		err = runner.RunInTx(context.Background(), func(ctx context.Context, files task.FileRepository) error {
			if err := files.UpdateStatus(ctx, testHash("b"), domain.FileStatusFailed); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBlobCheckProcessor(t *testing.T) {
	t.Parallel()

	blobs, err := blob.NewLocalStore(afero.NewMemMapFs(), "uploads", nil)
	require.NoError(t, err)

	location, err := blobs.Put(context.Background(), testHash("c"), []byte("hello"))
	require.NoError(t, err)

	processor := task.NewBlobCheckProcessor(blobs)

	present := &domain.File{FileHash: testHash("c"), FilePath: location, UserID: uuid.New()}
	assert.NoError(t, processor.Process(context.Background(), present))

	missing := &domain.File{FileHash: testHash("d"), FilePath: "uploads/" + testHash("d"), UserID: uuid.New()}
	err = processor.Process(context.Background(), missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
