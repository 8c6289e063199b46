package usecase

import (
	"context"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"

	"github.com/samber/lo"
)

// CreateOne creates a single record. It fails with ErrAlreadyExists when the id is taken.
func (c *WriteCoordinator) CreateOne(ctx context.Context, pre model.Record, tx repository.Transaction) (model.Record, error) {
	ctx = c.opContext(ctx, "create.item")
	c.logFor(ctx, 1, ModeFor(tx)).Debug("Creating item")

	items, err := c.assignIDs([]model.Record{pre}, Transactional{}, c.composeID, "create.item", model.VerbCreate)
	if err != nil {
		return nil, err
	}
	p := items[0]
	if err := c.prepareCreate(ctx, p, tx, c.now()); err != nil {
		return nil, err
	}

	if err := c.writer(tx).Create(ctx, c.ref(p.id), p.record); err != nil {
		c.log.WithContext(ctx).Warnf("Create %s failed: %v", p.id, err)
		return nil, err
	}
	if err := c.afterWrite(ctx, tx, summarize(items)); err != nil {
		return p.record, err
	}
	return p.record, nil
}

// CreateAll creates a batch. With tx every create commits together; without
// it the batch goes through the bulk writer and failures come back as one
// *errors.BulkWriteError next to the records that were written.
func (c *WriteCoordinator) CreateAll(ctx context.Context, pres []model.Record, tx repository.Transaction) ([]model.Record, error) {
	if len(pres) == 0 {
		return []model.Record{}, nil
	}
	if len(pres) == 1 {
		rec, err := c.CreateOne(ctx, pres[0], tx)
		if err != nil {
			return nil, err
		}
		return []model.Record{rec}, nil
	}

	ctx = c.opContext(ctx, "create.all")
	mode := ModeFor(tx)
	c.logFor(ctx, len(pres), mode).Debug("Creating items")

	if err := c.checkTransactionSize(tx, len(pres)); err != nil {
		return nil, err
	}
	items, err := c.assignIDs(pres, mode, c.composeID, "create.all", model.VerbCreate)
	if err != nil {
		return nil, err
	}

	now := c.now()
	for _, p := range okItems(items) {
		if err := c.prepareCreate(ctx, p, tx, now); err != nil {
			return nil, err
		}
	}
	return c.run(ctx, mode, items)
}

// SetOne overwrites the record when it carries an _id that exists and
// creates it otherwise. A record without _id is always a create, so a
// composed id that is taken fails with ErrAlreadyExists. An overwrite keeps __created.
func (c *WriteCoordinator) SetOne(ctx context.Context, pre model.Record, tx repository.Transaction) (model.Record, error) {
	if !pre.HasID() {
		return c.CreateOne(ctx, pre, tx)
	}
	ctx = c.opContext(ctx, "set.item")
	c.logFor(ctx, 1, ModeFor(tx)).Debug("Setting item")

	items, err := c.assignIDs([]model.Record{pre}, Transactional{}, c.composeID, "set.item", model.VerbSet)
	if err != nil {
		return nil, err
	}
	p := items[0]
	if p.current, err = c.readOne(ctx, tx, p.id); err != nil {
		return nil, err
	}

	now := c.now()
	w := c.writer(tx)
	if p.current == nil {
		if err := c.prepareCreate(ctx, p, tx, now); err != nil {
			return nil, err
		}
		err = w.Create(ctx, c.ref(p.id), p.record)
	} else {
		if err := c.prepareOverwrite(ctx, p, tx, now); err != nil {
			return nil, err
		}
		err = w.Set(ctx, c.ref(p.id), p.record)
	}
	if err != nil {
		c.log.WithContext(ctx).Warnf("Set %s failed: %v", p.id, err)
		return nil, err
	}

	if err := c.afterWrite(ctx, tx, summarize(items)); err != nil {
		return p.record, err
	}
	return p.record, nil
}

// SetAll reads the ids of the records sent with an _id in one round trip,
// overwrites those that exist and creates everything else. Result order
// is not guaranteed.
func (c *WriteCoordinator) SetAll(ctx context.Context, pres []model.Record, tx repository.Transaction) ([]model.Record, error) {
	if len(pres) == 0 {
		return []model.Record{}, nil
	}
	if len(pres) == 1 && tx != nil {
		rec, err := c.SetOne(ctx, pres[0], tx)
		if err != nil {
			return nil, err
		}
		return []model.Record{rec}, nil
	}

	ctx = c.opContext(ctx, "set.all")
	mode := ModeFor(tx)
	c.logFor(ctx, len(pres), mode).Debug("Setting items")

	if err := c.checkTransactionSize(tx, len(pres)); err != nil {
		return nil, err
	}
	items, err := c.assignIDs(pres, mode, c.composeID, "set.all", model.VerbSet)
	if err != nil {
		return nil, err
	}
	withID := lo.Filter(items, func(_ *pending, i int) bool { return pres[i].HasID() })
	if err := c.readCurrent(ctx, tx, withID); err != nil {
		return nil, err
	}

	now := c.now()
	for _, p := range okItems(items) {
		if p.current == nil {
			err = c.prepareCreate(ctx, p, tx, now)
		} else {
			err = c.prepareOverwrite(ctx, p, tx, now)
		}
		if err != nil {
			return nil, err
		}
	}
	return c.run(ctx, mode, items)
}

// UpdateOne patches an existing record. nil values delete fields, nested
// objects merge key by key. It fails with ErrNotFound for a missing id.
func (c *WriteCoordinator) UpdateOne(ctx context.Context, patch model.Record, tx repository.Transaction) (model.Record, error) {
	ctx = c.opContext(ctx, "update.item")
	c.logFor(ctx, 1, ModeFor(tx)).Debug("Updating item")

	items, err := c.assignIDs([]model.Record{patch}, Transactional{}, c.resolveID, "update.item", model.VerbUpdate)
	if err != nil {
		return nil, err
	}
	p := items[0]
	if p.current, err = c.readOne(ctx, tx, p.id); err != nil {
		return nil, err
	}
	if p.current == nil {
		return nil, apperrors.NewDocumentNotFoundError(c.def.Name, p.id)
	}
	if err := c.preparePatch(ctx, p, tx, c.now()); err != nil {
		return nil, err
	}

	if err := c.writer(tx).Update(ctx, c.ref(p.id), p.record); err != nil {
		c.log.WithContext(ctx).Warnf("Update %s failed: %v", p.id, err)
		return nil, err
	}
	if err := c.afterWrite(ctx, tx, summarize(items)); err != nil {
		return p.current, err
	}
	return p.current, nil
}

// UpdateAll patches a batch. Without tx a missing document fails only its own item.
func (c *WriteCoordinator) UpdateAll(ctx context.Context, patches []model.Record, tx repository.Transaction) ([]model.Record, error) {
	if len(patches) == 0 {
		return []model.Record{}, nil
	}
	if len(patches) == 1 {
		rec, err := c.UpdateOne(ctx, patches[0], tx)
		if err != nil {
			return nil, err
		}
		return []model.Record{rec}, nil
	}

	ctx = c.opContext(ctx, "update.all")
	mode := ModeFor(tx)
	c.logFor(ctx, len(patches), mode).Debug("Updating items")

	if err := c.checkTransactionSize(tx, len(patches)); err != nil {
		return nil, err
	}
	items, err := c.assignIDs(patches, mode, c.resolveID, "update.all", model.VerbUpdate)
	if err != nil {
		return nil, err
	}
	if err := c.readCurrent(ctx, tx, items); err != nil {
		return nil, err
	}

	now := c.now()
	for _, p := range okItems(items) {
		if p.current == nil {
			notFound := apperrors.NewDocumentNotFoundError(c.def.Name, p.id)
			if tx != nil {
				return nil, notFound
			}
			p.err = notFound
			continue
		}
		if err := c.preparePatch(ctx, p, tx, now); err != nil {
			return nil, err
		}
	}
	return c.run(ctx, mode, items)
}
