package usecase

import (
	"context"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"

	"github.com/samber/lo"
)

const defaultDeleteChunkSize = 200

// DeleteIDs deletes the documents with the given ids and returns them as
// they were. Missing ids are skipped.
func (c *WriteCoordinator) DeleteIDs(ctx context.Context, ids []string, tx repository.Transaction) ([]model.Record, error) {
	ctx = c.opContext(ctx, "delete.all")
	if lo.Contains(ids, "") {
		return nil, apperrors.NewInvalidIDError("delete.all")
	}
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return []model.Record{}, nil
	}
	if err := c.checkTransactionSize(tx, len(ids)); err != nil {
		return nil, err
	}

	got, err := c.reader(tx).GetAll(ctx, c.def.Name, ids)
	if err != nil {
		return nil, err
	}
	return c.deleteRecords(ctx, lo.Filter(got, func(r model.Record, _ int) bool { return r != nil }), tx)
}

// DeleteItems deletes the documents the given records resolve to
func (c *WriteCoordinator) DeleteItems(ctx context.Context, pres []model.Record, tx repository.Transaction) ([]model.Record, error) {
	ids := make([]string, 0, len(pres))
	for _, pre := range pres {
		id, err := c.resolveID(pre, "delete.items")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return c.DeleteIDs(ctx, ids, tx)
}

// DeleteQuery deletes every document matching q. A query without
// conditions is refused; use DeleteCollection to wipe a collection.
func (c *WriteCoordinator) DeleteQuery(ctx context.Context, q model.Query, tx repository.Transaction) ([]model.Record, error) {
	ctx = c.opContext(ctx, "delete.query")
	// checked before ManipulateQuery, which may add its own scope
	if q.IsMatchAll() {
		c.log.WithContext(ctx).Warn("Refusing to delete with an empty query")
		return nil, apperrors.NewRefuseEmptyQueryError("delete.query")
	}
	q = c.manipulate(q)

	found, err := c.reader(tx).Query(ctx, c.def.Name, q)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return []model.Record{}, nil
	}
	if err := c.checkTransactionSize(tx, len(found)); err != nil {
		return nil, err
	}
	return c.deleteRecords(ctx, found, tx)
}

func (c *WriteCoordinator) deleteRecords(ctx context.Context, records []model.Record, tx repository.Transaction) ([]model.Record, error) {
	if len(records) == 0 {
		return []model.Record{}, nil
	}
	mode := ModeFor(tx)
	c.logFor(ctx, len(records), mode).Debug("Deleting items")

	if c.hooks.CanDelete != nil {
		if err := c.hooks.CanDelete(ctx, records, tx); err != nil {
			c.log.WithContext(ctx).Infof("Deletion blocked: %v", err)
			return nil, err
		}
	}

	items := lo.Map(records, func(r model.Record, _ int) *pending {
		return &pending{id: r.ID(), current: r, verb: model.VerbDelete}
	})
	return c.run(ctx, mode, items)
}

// DeleteCollection removes every document of the collection in chunks.
// It skips the CanDelete hook and the empty-query guard and reports one
// summary with CollectionDeleted set.
func (c *WriteCoordinator) DeleteCollection(ctx context.Context, chunkSize int) (int, error) {
	ctx = c.opContext(ctx, "delete.collection")
	if chunkSize <= 0 {
		chunkSize = defaultDeleteChunkSize
	}
	log := c.log.WithContext(ctx)

	deleted := 0
	for {
		ids, err := c.store.ListIDs(ctx, c.def.Name, chunkSize)
		if err != nil {
			return deleted, err
		}
		if len(ids) == 0 {
			break
		}

		bw := c.store.BulkWriter(ctx)
		for _, id := range ids {
			bw.Delete(c.ref(id))
		}
		if err := bw.Close(ctx); err != nil {
			log.Errorf("Wiping collection stopped after %d documents: %v", deleted, err)
			return deleted, err
		}
		deleted += len(ids)
		log.Debugf("Deleted %d documents", deleted)
	}

	log.Infof("Collection wiped, %d documents deleted", deleted)
	if err := c.postWrite(ctx, model.WriteSummary{Collection: c.def.Name, CollectionDeleted: true}); err != nil {
		return deleted, err
	}
	return deleted, nil
}

func (c *WriteCoordinator) manipulate(q model.Query) model.Query {
	if c.hooks.ManipulateQuery == nil {
		return q
	}
	return c.hooks.ManipulateQuery(q)
}
