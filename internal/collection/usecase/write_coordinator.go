package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"
	"firestore-collection/internal/shared/eventbus"
	"firestore-collection/internal/shared/logger"
	"firestore-collection/internal/shared/utils"

	"github.com/samber/lo"
)

const defaultMaxTransactionWrites = 500

// CoordinatorOptions configures a WriteCoordinator
type CoordinatorOptions struct {
	Hooks     WriterConfig
	Validator repository.RecordValidator
	EventBus  eventbus.EventBusInterface
	Logger    logger.Logger
	// MaxTransactionWrites caps a transactional batch
	MaxTransactionWrites int
	Clock                func() time.Time
}

// WriteCoordinator turns create, set, update and delete calls into either
// writes on one transaction or operations on a bulk writer.
type WriteCoordinator struct {
	store       repository.DocumentStore
	def         model.Definition
	hooks       WriterConfig
	validator   repository.RecordValidator
	bus         eventbus.EventBusInterface
	log         logger.Logger
	maxTxWrites int
	clock       func() time.Time
}

// NewWriteCoordinator creates a coordinator for one collection
func NewWriteCoordinator(store repository.DocumentStore, def model.Definition, opts CoordinatorOptions) *WriteCoordinator {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.MaxTransactionWrites <= 0 || opts.MaxTransactionWrites > defaultMaxTransactionWrites {
		opts.MaxTransactionWrites = defaultMaxTransactionWrites
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &WriteCoordinator{
		store:       store,
		def:         def,
		hooks:       opts.Hooks,
		validator:   opts.Validator,
		bus:         opts.EventBus,
		log:         opts.Logger.WithComponent("write-coordinator"),
		maxTxWrites: opts.MaxTransactionWrites,
		clock:       opts.Clock,
	}
}

// pending is one batch item between id assignment and the store write
type pending struct {
	id      string
	record  model.Record
	current model.Record
	verb    model.Verb
	// err is a per-item failure, only kept in bulk mode
	err error
}

type idResolver func(pre model.Record, op string) (string, error)

func (c *WriteCoordinator) now() int64 {
	return c.clock().UnixMilli()
}

func (c *WriteCoordinator) ref(id string) model.DocumentRef {
	return model.NewDocumentRef(c.def.Name, id)
}

func (c *WriteCoordinator) reader(tx repository.Transaction) repository.DocumentReader {
	if tx != nil {
		return tx
	}
	return c.store
}

func (c *WriteCoordinator) writer(tx repository.Transaction) repository.DocumentWriter {
	if tx != nil {
		return tx
	}
	return c.store
}

func (c *WriteCoordinator) opContext(ctx context.Context, op string) context.Context {
	return utils.WithOperation(utils.WithCollection(ctx, c.def.Name), op)
}

func (c *WriteCoordinator) logFor(ctx context.Context, count int, mode WriteMode) logger.Logger {
	return c.log.WithContext(ctx).WithFields(map[string]interface{}{
		"count": count,
		"mode":  mode.String(),
	})
}

func (c *WriteCoordinator) checkTransactionSize(tx repository.Transaction, n int) error {
	if tx != nil && n > c.maxTxWrites {
		return apperrors.NewBatchTooLargeError(n, c.maxTxWrites)
	}
	return nil
}

// composeID is the resolver for records that may be new
func (c *WriteCoordinator) composeID(pre model.Record, _ string) (string, error) {
	return ComposeID(pre, c.def.UniqueKeys)
}

// resolveID is the resolver for records that must already exist.
// Without unique keys the record has to carry its _id.
func (c *WriteCoordinator) resolveID(pre model.Record, op string) (string, error) {
	if id := pre.ID(); id != "" {
		if c.def.HasCompositeKey() && hasAllKeys(pre, c.def.UniqueKeys) {
			return ComposeID(pre, c.def.UniqueKeys)
		}
		return id, nil
	}
	if c.def.HasCompositeKey() {
		return ComposeID(pre, c.def.UniqueKeys)
	}
	return "", apperrors.NewInvalidIDError(op)
}

func hasAllKeys(pre model.Record, keys []string) bool {
	for _, k := range keys {
		if v, ok := pre[k]; !ok || v == nil {
			return false
		}
	}
	return true
}

// assignIDs resolves every id first and rejects duplicates before any write.
// In bulk mode a missing unique key fails only its own item.
func (c *WriteCoordinator) assignIDs(pres []model.Record, mode WriteMode, resolve idResolver, op string, verb model.Verb) ([]*pending, error) {
	_, bulk := mode.(Bulk)
	items := make([]*pending, 0, len(pres))

	for _, pre := range pres {
		p := &pending{record: pre.Clone(), verb: verb}
		id, err := resolve(p.record, op)
		if err != nil {
			if bulk && errors.Is(err, apperrors.ErrMissingField) {
				p.err = err
				items = append(items, p)
				continue
			}
			return nil, err
		}
		p.id = id
		items = append(items, p)
	}

	ids := lo.Map(lo.Filter(items, func(p *pending, _ int) bool { return p.err == nil }),
		func(p *pending, _ int) string { return p.id })
	groups := lo.GroupBy(ids, func(id string) string { return id })
	var dups []string
	for id, group := range groups {
		if len(group) > 1 {
			dups = append(dups, id)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return nil, apperrors.NewDuplicateIDError(op, dups)
	}
	return items, nil
}

func okItems(items []*pending) []*pending {
	return lo.Filter(items, func(p *pending, _ int) bool { return p.err == nil })
}

func (c *WriteCoordinator) validate(ctx context.Context, rec model.Record) error {
	if c.validator == nil {
		return nil
	}
	err := c.validator.Validate(ctx, rec)
	if err == nil {
		return nil
	}
	var ve *apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return ve.ToAppError().WithDetail("id", rec.ID())
	}
	return err
}

func (c *WriteCoordinator) preWrite(ctx context.Context, rec model.Record, tx repository.Transaction) error {
	if c.hooks.PreWrite == nil {
		return nil
	}
	return c.hooks.PreWrite(ctx, rec, tx)
}

// prepareCreate stamps a new record
func (c *WriteCoordinator) prepareCreate(ctx context.Context, p *pending, tx repository.Transaction, now int64) error {
	rec := p.record
	rec[model.FieldID] = p.id
	rec[model.FieldCreated] = now
	rec[model.FieldUpdated] = now
	if _, ok := rec[model.FieldVersion]; !ok {
		rec[model.FieldVersion] = c.def.CurrentVersion()
	}
	p.verb = model.VerbCreate

	if err := c.preWrite(ctx, rec, tx); err != nil {
		return err
	}
	return c.validate(ctx, rec)
}

// prepareOverwrite stamps a full replacement of an existing record
func (c *WriteCoordinator) prepareOverwrite(ctx context.Context, p *pending, tx repository.Transaction, now int64) error {
	rec := p.record
	rec[model.FieldID] = p.id
	if created, ok := p.current[model.FieldCreated]; ok {
		rec[model.FieldCreated] = created
	} else {
		rec[model.FieldCreated] = now
	}
	rec[model.FieldUpdated] = now
	if _, ok := rec[model.FieldVersion]; !ok {
		rec[model.FieldVersion] = c.def.CurrentVersion()
	}
	p.verb = model.VerbSet

	if err := c.preWrite(ctx, rec, tx); err != nil {
		return err
	}
	return c.validate(ctx, rec)
}

// preparePatch turns p.record into a store patch and keeps the merged
// result in p.current for validation and the caller.
func (c *WriteCoordinator) preparePatch(ctx context.Context, p *pending, tx repository.Transaction, now int64) error {
	patch := model.NormalizePatch(p.record)
	delete(patch, model.FieldID)
	delete(patch, model.FieldCreated)
	patch[model.FieldUpdated] = now

	if err := c.preWrite(ctx, patch, tx); err != nil {
		return err
	}
	// hooks may add plain nils
	patch = model.NormalizePatch(patch)
	delete(patch, model.FieldCreated)

	merged := model.ApplyPatch(p.current.Clone(), patch)
	merged[model.FieldID] = p.id
	if err := c.validate(ctx, merged); err != nil {
		return err
	}

	p.record = patch
	p.current = merged
	p.verb = model.VerbUpdate
	return nil
}

// result is the record handed back to the caller for a written item
func (p *pending) result() model.Record {
	if p.verb == model.VerbUpdate || p.verb == model.VerbDelete {
		return p.current
	}
	return p.record
}

// apply writes every item through the transaction one after another.
// Transactions are not safe for concurrent use.
func (c *WriteCoordinator) applyTransactional(ctx context.Context, tx repository.Transaction, items []*pending) error {
	for _, p := range items {
		ref := c.ref(p.id)
		var err error
		switch p.verb {
		case model.VerbCreate:
			err = tx.Create(ctx, ref, p.record)
		case model.VerbSet:
			err = tx.Set(ctx, ref, p.record)
		case model.VerbUpdate:
			err = tx.Update(ctx, ref, p.record)
		case model.VerbDelete:
			err = tx.Delete(ctx, ref)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// applyBulk queues every item on a fresh bulk writer and waits for it.
// It returns the items that were written and every per-item failure.
func (c *WriteCoordinator) applyBulk(ctx context.Context, items []*pending) ([]*pending, error) {
	bw := c.store.BulkWriter(ctx)
	for _, p := range okItems(items) {
		ref := c.ref(p.id)
		switch p.verb {
		case model.VerbCreate:
			bw.Create(ref, p.record)
		case model.VerbSet:
			bw.Set(ref, p.record)
		case model.VerbUpdate:
			bw.Update(ref, p.record)
		case model.VerbDelete:
			bw.Delete(ref)
		}
	}

	closeErr := bw.Close(ctx)
	var bulkErr *apperrors.BulkWriteError
	if closeErr != nil && !errors.As(closeErr, &bulkErr) {
		return nil, closeErr
	}

	failed := map[string]bool{}
	var failures []apperrors.WriteFailure
	for _, p := range items {
		if p.err != nil {
			failures = append(failures, apperrors.WriteFailure{DocumentID: p.id, Operation: string(p.verb), Err: p.err})
		}
	}
	if bulkErr != nil {
		for _, f := range bulkErr.Failures {
			failed[f.DocumentID] = true
		}
		failures = append(failures, bulkErr.Failures...)
	}

	written := lo.Filter(items, func(p *pending, _ int) bool { return p.err == nil && !failed[p.id] })
	return written, apperrors.NewBulkWriteError(failures)
}

// run dispatches prepared items in the given mode and reports the summary
func (c *WriteCoordinator) run(ctx context.Context, mode WriteMode, items []*pending) ([]model.Record, error) {
	switch m := mode.(type) {
	case Transactional:
		if err := c.applyTransactional(ctx, m.Tx, items); err != nil {
			c.logFor(ctx, len(items), mode).Warnf("Transactional write failed: %v", err)
			return nil, err
		}
		if err := c.afterWrite(ctx, m.Tx, summarize(items)); err != nil {
			return nil, err
		}
		return results(items), nil

	default:
		written, bulkErr := c.applyBulk(ctx, items)
		if bulkErr != nil {
			c.logFor(ctx, len(items), mode).Warnf("Bulk write finished with failures: %v", bulkErr)
		}
		if written == nil && bulkErr != nil && !apperrors.IsBulkWrite(bulkErr) {
			return nil, bulkErr
		}
		if err := c.afterWrite(ctx, nil, summarize(written)); err != nil {
			if bulkErr == nil {
				return results(written), err
			}
			c.log.WithContext(ctx).Errorf("Post-write processing failed: %v", err)
		}
		return results(written), bulkErr
	}
}

func results(items []*pending) []model.Record {
	return lo.Map(items, func(p *pending, _ int) model.Record { return p.result() })
}

func summarize(items []*pending) model.WriteSummary {
	var s model.WriteSummary
	for _, p := range items {
		switch p.verb {
		case model.VerbCreate:
			s.Created = append(s.Created, p.record)
		case model.VerbSet, model.VerbUpdate:
			s.Updated = append(s.Updated, p.result())
		case model.VerbDelete:
			s.Deleted = append(s.Deleted, p.current)
		}
	}
	return s
}

// afterWrite runs the post-write hook and publishes the summary.
// Inside a transaction both wait for the commit. Empty summaries are dropped.
func (c *WriteCoordinator) afterWrite(ctx context.Context, tx repository.Transaction, summary model.WriteSummary) error {
	if summary.IsEmpty() {
		return nil
	}
	summary.Collection = c.def.Name
	if tx != nil {
		summary.TransactionID = tx.ID()
		tx.AfterCommit(func(ctx context.Context) {
			if err := c.postWrite(ctx, summary); err != nil {
				c.log.WithContext(ctx).Errorf("Post-write processing failed after commit: %v", err)
			}
		})
		return nil
	}
	return c.postWrite(ctx, summary)
}

func (c *WriteCoordinator) postWrite(ctx context.Context, summary model.WriteSummary) error {
	var hookErr error
	if c.hooks.PostWrite != nil {
		hookErr = c.hooks.PostWrite(ctx, summary)
	}
	if c.bus != nil {
		eventType := eventbus.EventTypeCollectionWritten
		if summary.CollectionDeleted {
			eventType = eventbus.EventTypeCollectionDeleted
		}
		event := eventbus.NewEvent(eventType, summary, "write-coordinator")
		if err := c.bus.Publish(ctx, event); err != nil {
			c.log.WithContext(ctx).Warnf("Failed to publish %s: %v", eventType, err)
		}
	}
	return hookErr
}

func (c *WriteCoordinator) readOne(ctx context.Context, tx repository.Transaction, id string) (model.Record, error) {
	got, err := c.reader(tx).GetAll(ctx, c.def.Name, []string{id})
	if err != nil {
		return nil, err
	}
	return got[0], nil
}

// readCurrent loads the stored version of every ok item in one round trip
func (c *WriteCoordinator) readCurrent(ctx context.Context, tx repository.Transaction, items []*pending) error {
	ok := okItems(items)
	if len(ok) == 0 {
		return nil
	}
	ids := lo.Map(ok, func(p *pending, _ int) string { return p.id })
	got, err := c.reader(tx).GetAll(ctx, c.def.Name, ids)
	if err != nil {
		return err
	}
	for i, p := range ok {
		p.current = got[i]
	}
	return nil
}
