package task

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/platform/blob"
	"github.com/phrazzld/fileserver-api/internal/store"
)

// StoreTxRunner implements TxRunner with store.RunInTransaction.
type StoreTxRunner struct {
	db    *sql.DB
	files store.FileStore
}

// NewStoreTxRunner creates a TxRunner that rebinds files to each transaction.
func NewStoreTxRunner(db *sql.DB, files store.FileStore) *StoreTxRunner {
	return &StoreTxRunner{db: db, files: files}
}

// RunInTx implements TxRunner.
func (r *StoreTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, files FileRepository) error) error {
	return store.RunInTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, r.files.WithTx(tx))
	})
}

// BlobCheckProcessor verifies that a file's bytes are present in the blob store.
type BlobCheckProcessor struct {
	blobs blob.Store
}

// NewBlobCheckProcessor creates a FileProcessor backed by blobs.
func NewBlobCheckProcessor(blobs blob.Store) *BlobCheckProcessor {
	return &BlobCheckProcessor{blobs: blobs}
}

// Process implements FileProcessor.
func (p *BlobCheckProcessor) Process(ctx context.Context, file *domain.File) error {
	ok, err := p.blobs.Exists(ctx, file.FilePath)
	if err != nil {
		return fmt.Errorf("failed to check blob %s: %w", file.FilePath, err)
	}
	if !ok {
		return fmt.Errorf("blob %s is missing", file.FilePath)
	}
	return nil
}
