package usecase

import (
	"context"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
)

// PreWriteFunc runs on every record about to be created, set or updated.
// It may modify record in place; tx is nil in bulk mode.
type PreWriteFunc func(ctx context.Context, record model.Record, tx repository.Transaction) error

// PostWriteFunc receives the summary of a finished write.
// For transactional writes it runs after commit.
type PostWriteFunc func(ctx context.Context, summary model.WriteSummary) error

// CanDeleteFunc may block a deletion, typically with errors.NewHasDependenciesError
type CanDeleteFunc func(ctx context.Context, records []model.Record, tx repository.Transaction) error

// ManipulateQueryFunc rewrites every custom query before it runs
type ManipulateQueryFunc func(query model.Query) model.Query

// WriterConfig holds the hooks of one collection. A nil hook is a no-op.
type WriterConfig struct {
	PreWrite        PreWriteFunc
	PostWrite       PostWriteFunc
	CanDelete       CanDeleteFunc
	ManipulateQuery ManipulateQueryFunc
}
