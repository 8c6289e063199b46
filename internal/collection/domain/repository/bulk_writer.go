package repository

import (
	"context"

	"firestore-collection/internal/collection/domain/model"
)

// BulkWriteAttempt describes a failed bulk operation handed to the error handler
type BulkWriteAttempt struct {
	Op       model.WriteOp
	Err      error
	Attempts int
}

// WriteErrorHandler decides whether a failed operation is retried
type WriteErrorHandler func(attempt BulkWriteAttempt) (retry bool)

// BulkWriter queues single-document writes and runs them with bounded concurrency.
// Each document is atomic on its own; the batch is not.
type BulkWriter interface {
	Create(ref model.DocumentRef, record model.Record)
	Set(ref model.DocumentRef, record model.Record)
	Update(ref model.DocumentRef, patch model.Record)
	Delete(ref model.DocumentRef)

	// OnWriteError registers the retry policy. The default never retries.
	OnWriteError(handler WriteErrorHandler)

	// Close waits for every queued write. It returns a *errors.BulkWriteError
	// listing each failed document, or nil.
	Close(ctx context.Context) error
}
