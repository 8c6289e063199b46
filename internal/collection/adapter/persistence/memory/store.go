package memory

import (
	"context"
	"sort"
	"sync"

	"firestore-collection/internal/collection/adapter/persistence/bulkwriter"
	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"
	"firestore-collection/internal/shared/logger"
)

const defaultTransactionRetries = 5

type entry struct {
	data    model.Record
	version int64
}

// Options configures a Store
type Options struct {
	TransactionRetries int
	BulkConcurrency    int
	Logger             logger.Logger
}

// Store is an in-process DocumentStore with optimistic transactions.
// Used for tests and the CLI's memory mode.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*entry
	clock       int64

	retries int
	bulk    bulkwriter.Options
	log     logger.Logger
}

var _ repository.DocumentStore = (*Store)(nil)

// NewStore creates an empty store
func NewStore(opts Options) *Store {
	if opts.TransactionRetries <= 0 {
		opts.TransactionRetries = defaultTransactionRetries
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Store{
		collections: make(map[string]map[string]*entry),
		retries:     opts.TransactionRetries,
		bulk:        bulkwriter.Options{Concurrency: opts.BulkConcurrency, Logger: opts.Logger},
		log:         opts.Logger.WithComponent("memory-store"),
	}
}

// lookupLocked returns the committed entry; callers hold mu
func (s *Store) lookupLocked(ref model.DocumentRef) *entry {
	if docs, ok := s.collections[ref.Collection]; ok {
		return docs[ref.ID]
	}
	return nil
}

// putLocked writes data under a fresh version; callers hold the write lock
func (s *Store) putLocked(ref model.DocumentRef, data model.Record) {
	docs, ok := s.collections[ref.Collection]
	if !ok {
		docs = make(map[string]*entry)
		s.collections[ref.Collection] = docs
	}
	s.clock++
	stored := data.Clone()
	stored[model.FieldID] = ref.ID
	docs[ref.ID] = &entry{data: stored, version: s.clock}
}

func (s *Store) deleteLocked(ref model.DocumentRef) {
	if docs, ok := s.collections[ref.Collection]; ok {
		delete(docs, ref.ID)
	}
}

// GetAll is an order-preserving batch read
func (s *Store) GetAll(ctx context.Context, collection string, ids []string) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Record, len(ids))
	for i, id := range ids {
		if e := s.lookupLocked(model.NewDocumentRef(collection, id)); e != nil {
			out[i] = e.data.Clone()
		}
	}
	return out, nil
}

// Query evaluates a filter over the collection, ordered by _id unless specified
func (s *Store) Query(ctx context.Context, collection string, query model.Query) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	records := s.snapshotLocked(collection)
	s.mu.RUnlock()
	return evaluate(records, query), nil
}

func (s *Store) snapshotLocked(collection string) []model.Record {
	docs := s.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, docs[id].data.Clone())
	}
	return records
}

func (s *Store) Create(ctx context.Context, ref model.DocumentRef, record model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookupLocked(ref) != nil {
		return apperrors.NewAlreadyExistsError(ref.Collection, ref.ID)
	}
	s.putLocked(ref, record)
	return nil
}

func (s *Store) Set(ctx context.Context, ref model.DocumentRef, record model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putLocked(ref, record)
	return nil
}

func (s *Store) Update(ctx context.Context, ref model.DocumentRef, patch model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookupLocked(ref)
	if e == nil {
		return apperrors.NewDocumentNotFoundError(ref.Collection, ref.ID)
	}
	s.putLocked(ref, model.ApplyPatch(e.data.Clone(), patch))
	return nil
}

func (s *Store) Delete(ctx context.Context, ref model.DocumentRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(ref)
	return nil
}

// ListIDs returns up to limit ids in ascending order
func (s *Store) ListIDs(ctx context.Context, collection string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// BulkWriter returns a writer applying each operation on its own
func (s *Store) BulkWriter(ctx context.Context) repository.BulkWriter {
	return bulkwriter.New(ctx, s, s.bulk)
}

// Count returns the number of documents in a collection
func (s *Store) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// Close is a no-op
func (s *Store) Close(ctx context.Context) error {
	return nil
}
