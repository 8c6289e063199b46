package usecase

import (
	"context"
	"time"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"
	"firestore-collection/internal/shared/eventbus"
	"firestore-collection/internal/shared/logger"
	"firestore-collection/internal/shared/utils"
)

// CollectionOptions configures a Collection
type CollectionOptions struct {
	Hooks     WriterConfig
	Validator repository.RecordValidator
	EventBus  eventbus.EventBusInterface
	Logger    logger.Logger

	MaxTransactionWrites int
	// DeleteChunkSize is the page size of DeleteCollection
	DeleteChunkSize int
	Clock           func() time.Time
}

// Collection is the public face of one document collection. Writes are
// grouped in namespaces; every call takes an optional transaction.
type Collection struct {
	def       model.Definition
	store     repository.DocumentStore
	coord     *WriteCoordinator
	log       logger.Logger
	chunkSize int

	Create CreateOps
	Set    SetOps
	Update UpdateOps
	Delete DeleteOps
	Query  QueryOps
	Doc    DocOps
}

// NewCollection creates the facade for def on top of store
func NewCollection(store repository.DocumentStore, def model.Definition, opts CollectionOptions) *Collection {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	log := opts.Logger.WithFields(map[string]interface{}{"collection": def.Name})
	if err := def.CheckName(); err != nil {
		log.Warn(err.Error())
	}

	c := &Collection{
		def:       def,
		store:     store,
		log:       log,
		chunkSize: opts.DeleteChunkSize,
		coord: NewWriteCoordinator(store, def, CoordinatorOptions{
			Hooks:                opts.Hooks,
			Validator:            opts.Validator,
			EventBus:             opts.EventBus,
			Logger:               opts.Logger,
			MaxTransactionWrites: opts.MaxTransactionWrites,
			Clock:                opts.Clock,
		}),
	}
	c.Create = CreateOps{c: c}
	c.Set = SetOps{c: c}
	c.Update = UpdateOps{c: c}
	c.Delete = DeleteOps{c: c, Bulk: BulkDeleteOps{c: c}}
	c.Query = QueryOps{c: c}
	c.Doc = DocOps{c: c}
	return c
}

// Name returns the store collection name
func (c *Collection) Name() string {
	return c.def.Name
}

// Definition returns the collection definition
func (c *Collection) Definition() model.Definition {
	return c.def
}

// RunTransaction runs fn in a store transaction. Pass tx to the
// namespace calls inside fn to make them part of it.
func (c *Collection) RunTransaction(ctx context.Context, fn repository.TransactionFunc) error {
	return c.store.RunTransaction(ctx, fn)
}

// ValidateItem runs the collection validator on record
func (c *Collection) ValidateItem(ctx context.Context, record model.Record) error {
	return c.coord.validate(ctx, record)
}

// DeleteCollection removes every document and returns how many were deleted
func (c *Collection) DeleteCollection(ctx context.Context) (int, error) {
	return c.coord.DeleteCollection(ctx, c.chunkSize)
}

// inTransaction runs fn in tx, or in a fresh transaction when tx is nil
func (c *Collection) inTransaction(ctx context.Context, tx repository.Transaction, fn func(ctx context.Context, tx repository.Transaction) ([]model.Record, error)) ([]model.Record, error) {
	if tx != nil {
		return fn(ctx, tx)
	}
	var out []model.Record
	err := c.store.RunTransaction(ctx, func(ctx context.Context, tx repository.Transaction) error {
		res, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOps creates new documents
type CreateOps struct{ c *Collection }

// Item creates one document
func (o CreateOps) Item(ctx context.Context, pre model.Record, tx repository.Transaction) (model.Record, error) {
	return o.c.coord.CreateOne(ctx, pre, tx)
}

// All creates a batch. Without tx the batch is written in bulk and may partially apply.
func (o CreateOps) All(ctx context.Context, pres []model.Record, tx repository.Transaction) ([]model.Record, error) {
	return o.c.coord.CreateAll(ctx, pres, tx)
}

// SetOps creates or overwrites documents
type SetOps struct{ c *Collection }

// Item creates or overwrites one document
func (o SetOps) Item(ctx context.Context, pre model.Record, tx repository.Transaction) (model.Record, error) {
	return o.c.coord.SetOne(ctx, pre, tx)
}

// All creates or overwrites a batch atomically. Without tx a new
// transaction is started.
func (o SetOps) All(ctx context.Context, pres []model.Record, tx repository.Transaction) ([]model.Record, error) {
	return o.c.inTransaction(ctx, tx, func(ctx context.Context, tx repository.Transaction) ([]model.Record, error) {
		return o.c.coord.SetAll(ctx, pres, tx)
	})
}

// Bulk creates or overwrites a batch through the bulk writer
func (o SetOps) Bulk(ctx context.Context, pres []model.Record) ([]model.Record, error) {
	return o.c.coord.SetAll(ctx, pres, nil)
}

// UpdateOps patches existing documents
type UpdateOps struct{ c *Collection }

// Item patches one document
func (o UpdateOps) Item(ctx context.Context, patch model.Record, tx repository.Transaction) (model.Record, error) {
	return o.c.coord.UpdateOne(ctx, patch, tx)
}

// All patches a batch. Without tx the batch is written in bulk.
func (o UpdateOps) All(ctx context.Context, patches []model.Record, tx repository.Transaction) ([]model.Record, error) {
	return o.c.coord.UpdateAll(ctx, patches, tx)
}

// DeleteOps removes documents. Without tx every call except Query runs in
// a fresh transaction.
type DeleteOps struct {
	c *Collection

	// Bulk holds the non-atomic variants
	Bulk BulkDeleteOps
}

// Unique deletes one document by id. It returns nil when nothing was deleted.
func (o DeleteOps) Unique(ctx context.Context, id string, tx repository.Transaction) (model.Record, error) {
	if id == "" {
		return nil, apperrors.NewInvalidIDError("delete.unique")
	}
	return first(o.All(ctx, []string{id}, tx))
}

// Item deletes the document pre resolves to
func (o DeleteOps) Item(ctx context.Context, pre model.Record, tx repository.Transaction) (model.Record, error) {
	return first(o.AllItems(ctx, []model.Record{pre}, tx))
}

// All deletes documents by id
func (o DeleteOps) All(ctx context.Context, ids []string, tx repository.Transaction) ([]model.Record, error) {
	return o.c.inTransaction(ctx, tx, func(ctx context.Context, tx repository.Transaction) ([]model.Record, error) {
		return o.c.coord.DeleteIDs(ctx, ids, tx)
	})
}

// AllItems deletes the documents the records resolve to
func (o DeleteOps) AllItems(ctx context.Context, pres []model.Record, tx repository.Transaction) ([]model.Record, error) {
	return o.c.inTransaction(ctx, tx, func(ctx context.Context, tx repository.Transaction) ([]model.Record, error) {
		return o.c.coord.DeleteItems(ctx, pres, tx)
	})
}

// Query deletes every match of q. Without tx the matches are deleted in
// bulk, so any number of documents can be removed.
func (o DeleteOps) Query(ctx context.Context, q model.Query, tx repository.Transaction) ([]model.Record, error) {
	return o.c.coord.DeleteQuery(ctx, q, tx)
}

// BulkDeleteOps deletes through the bulk writer
type BulkDeleteOps struct{ c *Collection }

// All deletes documents by id
func (o BulkDeleteOps) All(ctx context.Context, ids []string) ([]model.Record, error) {
	return o.c.coord.DeleteIDs(ctx, ids, nil)
}

// Items deletes the documents the records resolve to
func (o BulkDeleteOps) Items(ctx context.Context, pres []model.Record) ([]model.Record, error) {
	return o.c.coord.DeleteItems(ctx, pres, nil)
}

// QueryOps reads documents
type QueryOps struct{ c *Collection }

// Unique returns the document with id, or nil
func (o QueryOps) Unique(ctx context.Context, id string, tx repository.Transaction) (model.Record, error) {
	if id == "" {
		return nil, apperrors.NewInvalidIDError("query.unique")
	}
	return o.c.coord.readOne(o.c.readContext(ctx, "query.unique"), tx, id)
}

// UniqueAssert is Unique failing with ErrNotFound for a missing document
func (o QueryOps) UniqueAssert(ctx context.Context, id string, tx repository.Transaction) (model.Record, error) {
	rec, err := o.Unique(ctx, id, tx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.NewDocumentNotFoundError(o.c.def.Name, id)
	}
	return rec, nil
}

// UniqueCustom runs q and expects exactly one match
func (o QueryOps) UniqueCustom(ctx context.Context, q model.Query, tx repository.Transaction) (model.Record, error) {
	found, err := o.Custom(ctx, q, tx)
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, apperrors.NewNotFoundError(o.c.def.Entity())
	case 1:
		return found[0], nil
	default:
		return nil, apperrors.NewTooManyResultsError(o.c.def.Name, len(found))
	}
}

// All returns one entry per id in order; missing documents are nil
func (o QueryOps) All(ctx context.Context, ids []string, tx repository.Transaction) ([]model.Record, error) {
	if len(ids) == 0 {
		return []model.Record{}, nil
	}
	return o.c.coord.reader(tx).GetAll(o.c.readContext(ctx, "query.all"), o.c.def.Name, ids)
}

// Custom runs q after the ManipulateQuery hook
func (o QueryOps) Custom(ctx context.Context, q model.Query, tx repository.Transaction) ([]model.Record, error) {
	q = o.c.coord.manipulate(q)
	return o.c.coord.reader(tx).Query(o.c.readContext(ctx, "query.custom"), o.c.def.Name, q)
}

func (c *Collection) readContext(ctx context.Context, op string) context.Context {
	return utils.WithOperation(utils.WithCollection(ctx, c.def.Name), op)
}

func first(records []model.Record, err error) (model.Record, error) {
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}
