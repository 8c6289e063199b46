package memory

import (
	"context"
	"errors"
	"sort"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"
	"firestore-collection/internal/shared/utils"

	"github.com/google/uuid"
)

var errConflict = errors.New("transaction conflict")

// transaction buffers writes and validates the versions it read at commit
type transaction struct {
	store *Store
	id    string

	// reads holds the committed version seen per path, 0 for absent
	reads map[model.DocumentRef]int64
	// local is the transaction's view of every written document, nil once deleted
	local map[model.DocumentRef]model.Record
	order []model.DocumentRef

	afterCommit []func(ctx context.Context)
}

var _ repository.Transaction = (*transaction)(nil)

func newTransaction(s *Store) *transaction {
	return &transaction{
		store: s,
		id:    uuid.NewString(),
		reads: make(map[model.DocumentRef]int64),
		local: make(map[model.DocumentRef]model.Record),
	}
}

func (t *transaction) ID() string { return t.id }

func (t *transaction) AfterCommit(fn func(ctx context.Context)) {
	t.afterCommit = append(t.afterCommit, fn)
}

// current returns the document as this transaction sees it
func (t *transaction) current(ref model.DocumentRef) model.Record {
	if rec, ok := t.local[ref]; ok {
		return rec
	}
	t.store.mu.RLock()
	e := t.store.lookupLocked(ref)
	t.store.mu.RUnlock()

	if e == nil {
		if _, seen := t.reads[ref]; !seen {
			t.reads[ref] = 0
		}
		return nil
	}
	if _, seen := t.reads[ref]; !seen {
		t.reads[ref] = e.version
	}
	return e.data
}

func (t *transaction) stage(ref model.DocumentRef, rec model.Record) {
	if _, ok := t.local[ref]; !ok {
		t.order = append(t.order, ref)
	}
	t.local[ref] = rec
}

func (t *transaction) GetAll(ctx context.Context, collection string, ids []string) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Record, len(ids))
	for i, id := range ids {
		if rec := t.current(model.NewDocumentRef(collection, id)); rec != nil {
			out[i] = rec.Clone()
		}
	}
	return out, nil
}

// Query evaluates over committed state overlaid with this transaction's writes
func (t *transaction) Query(ctx context.Context, collection string, query model.Query) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.store.mu.RLock()
	committed := t.store.snapshotLocked(collection)
	versions := make(map[string]int64, len(committed))
	for id, e := range t.store.collections[collection] {
		versions[id] = e.version
	}
	t.store.mu.RUnlock()

	byID := make(map[string]model.Record, len(committed))
	for _, r := range committed {
		byID[r.ID()] = r
	}
	for ref, rec := range t.local {
		if ref.Collection != collection {
			continue
		}
		if rec == nil {
			delete(byID, ref.ID)
		} else {
			byID[ref.ID] = rec.Clone()
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	records := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, byID[id])
	}

	result := evaluate(records, query)
	for _, r := range result {
		ref := model.NewDocumentRef(collection, r.ID())
		if _, seen := t.reads[ref]; !seen {
			if _, written := t.local[ref]; !written {
				t.reads[ref] = versions[r.ID()]
			}
		}
	}
	return result, nil
}

func (t *transaction) Create(ctx context.Context, ref model.DocumentRef, record model.Record) error {
	if t.current(ref) != nil {
		return apperrors.NewAlreadyExistsError(ref.Collection, ref.ID)
	}
	rec := record.Clone()
	rec[model.FieldID] = ref.ID
	t.stage(ref, rec)
	return nil
}

func (t *transaction) Set(ctx context.Context, ref model.DocumentRef, record model.Record) error {
	rec := record.Clone()
	rec[model.FieldID] = ref.ID
	t.stage(ref, rec)
	return nil
}

func (t *transaction) Update(ctx context.Context, ref model.DocumentRef, patch model.Record) error {
	cur := t.current(ref)
	if cur == nil {
		return apperrors.NewDocumentNotFoundError(ref.Collection, ref.ID)
	}
	t.stage(ref, model.ApplyPatch(cur.Clone(), patch))
	return nil
}

func (t *transaction) Delete(ctx context.Context, ref model.DocumentRef) error {
	t.current(ref)
	t.stage(ref, nil)
	return nil
}

// commit validates every read version and applies the buffered writes
func (t *transaction) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for ref, seen := range t.reads {
		var now int64
		if e := s.lookupLocked(ref); e != nil {
			now = e.version
		}
		if now != seen {
			return errConflict
		}
	}

	for _, ref := range t.order {
		if rec := t.local[ref]; rec == nil {
			s.deleteLocked(ref)
		} else {
			s.putLocked(ref, rec)
		}
	}
	return nil
}

// RunTransaction runs fn and commits, re-running fn on version conflicts
func (s *Store) RunTransaction(ctx context.Context, fn repository.TransactionFunc) error {
	for attempt := 0; attempt <= s.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		tx := newTransaction(s)
		txCtx := utils.WithTransactionID(ctx, tx.id)

		if err := fn(txCtx, tx); err != nil {
			return err
		}

		if err := tx.commit(); err != nil {
			if errors.Is(err, errConflict) {
				s.log.WithContext(txCtx).Debugf("Transaction conflict, retrying (attempt %d)", attempt+1)
				continue
			}
			return err
		}

		for _, cb := range tx.afterCommit {
			cb(ctx)
		}
		return nil
	}

	return apperrors.NewInfrastructureError("transaction aborted after repeated conflicts").
		WithCode("TRANSACTION_CONTENTION").
		WithCause(apperrors.ErrTransaction)
}
