package repository

import (
	"context"

	"firestore-collection/internal/collection/domain/model"
)

// DocumentReader defines the read primitives of the document store
type DocumentReader interface {
	// GetAll is a batch point read. The result has one entry per id in the
	// same order; missing documents are nil.
	GetAll(ctx context.Context, collection string, ids []string) ([]model.Record, error)
	// Query evaluates a filter over one collection
	Query(ctx context.Context, collection string, query model.Query) ([]model.Record, error)
}

// DocumentWriter defines the single-document write primitives.
// Create fails with ErrAlreadyExists, Update with ErrNotFound.
// Set replaces the whole document. Delete of a missing document is a no-op.
type DocumentWriter interface {
	Create(ctx context.Context, ref model.DocumentRef, record model.Record) error
	Set(ctx context.Context, ref model.DocumentRef, record model.Record) error
	Update(ctx context.Context, ref model.DocumentRef, patch model.Record) error
	Delete(ctx context.Context, ref model.DocumentRef) error
}

// Transaction is a set of reads and writes that commit atomically.
// A Transaction must not be used from more than one goroutine.
type Transaction interface {
	DocumentReader
	DocumentWriter

	// ID identifies the transaction in logs and summaries
	ID() string
	// AfterCommit registers fn to run once the transaction committed
	AfterCommit(fn func(ctx context.Context))
}

// TransactionFunc is the body of a transaction. It may be run more than once.
type TransactionFunc func(ctx context.Context, tx Transaction) error

// DocumentStore is the document database the collection layer is built on
type DocumentStore interface {
	DocumentReader
	DocumentWriter

	// RunTransaction runs fn atomically, retrying on store-detected conflicts
	RunTransaction(ctx context.Context, fn TransactionFunc) error
	// BulkWriter returns a new non-atomic writer
	BulkWriter(ctx context.Context) BulkWriter
	// ListIDs returns up to limit document ids of a collection
	ListIDs(ctx context.Context, collection string, limit int) ([]string, error)
	// Close releases the store's resources
	Close(ctx context.Context) error
}
