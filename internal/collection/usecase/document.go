package usecase

import (
	"context"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"

	"github.com/samber/lo"
)

// Document is a handle on one document of a collection. Its data is
// whatever was last read or written through the handle.
type Document struct {
	coll *Collection
	ref  model.DocumentRef
	data model.Record
}

// Ref returns the document reference
func (d *Document) Ref() model.DocumentRef { return d.ref }

// ID returns the document id
func (d *Document) ID() string { return d.ref.ID }

// Data returns the cached record, nil when unknown or missing
func (d *Document) Data() model.Record { return d.data }

// Exists reports whether the cached record is set
func (d *Document) Exists() bool { return d.data != nil }

// Get reads the document and refreshes the cached record
func (d *Document) Get(ctx context.Context, tx repository.Transaction) (model.Record, error) {
	rec, err := d.coll.Query.Unique(ctx, d.ref.ID, tx)
	if err != nil {
		return nil, err
	}
	d.data = rec
	return rec, nil
}

// Create creates the document with record as content
func (d *Document) Create(ctx context.Context, record model.Record, tx repository.Transaction) (model.Record, error) {
	return d.write(record, func(rec model.Record) (model.Record, error) {
		return d.coll.Create.Item(ctx, rec, tx)
	})
}

// Set creates or overwrites the document
func (d *Document) Set(ctx context.Context, record model.Record, tx repository.Transaction) (model.Record, error) {
	return d.write(record, func(rec model.Record) (model.Record, error) {
		return d.coll.Set.Item(ctx, rec, tx)
	})
}

// Update patches the document
func (d *Document) Update(ctx context.Context, patch model.Record, tx repository.Transaction) (model.Record, error) {
	return d.write(patch, func(rec model.Record) (model.Record, error) {
		return d.coll.Update.Item(ctx, rec, tx)
	})
}

// Delete removes the document
func (d *Document) Delete(ctx context.Context, tx repository.Transaction) error {
	if _, err := d.coll.Delete.Unique(ctx, d.ref.ID, tx); err != nil {
		return err
	}
	d.data = nil
	return nil
}

func (d *Document) write(record model.Record, fn func(model.Record) (model.Record, error)) (model.Record, error) {
	rec := record.Clone()
	if rec == nil {
		rec = model.Record{}
	}
	rec[model.FieldID] = d.ref.ID
	out, err := fn(rec)
	if err != nil {
		return nil, err
	}
	d.data = out
	return out, nil
}

// DocOps builds document handles
type DocOps struct{ c *Collection }

// Unique returns a handle for id without reading it
func (o DocOps) Unique(id string) (*Document, error) {
	if id == "" {
		return nil, apperrors.NewInvalidIDError("doc.unique")
	}
	return o.c.newDocument(id, nil), nil
}

// Item returns a handle for the document pre resolves to, composing the
// id from the unique keys when needed
func (o DocOps) Item(pre model.Record) (*Document, error) {
	id, err := ComposeID(pre, o.c.def.UniqueKeys)
	if err != nil {
		return nil, err
	}
	return o.c.newDocument(id, nil), nil
}

// All returns handles for ids
func (o DocOps) All(ids []string) ([]*Document, error) {
	docs := make([]*Document, 0, len(ids))
	for _, id := range ids {
		doc, err := o.Unique(id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// AllItems returns handles for the documents the records resolve to
func (o DocOps) AllItems(pres []model.Record) ([]*Document, error) {
	docs := make([]*Document, 0, len(pres))
	for _, pre := range pres {
		doc, err := o.Item(pre)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Query returns loaded handles for every match of q
func (o DocOps) Query(ctx context.Context, q model.Query, tx repository.Transaction) ([]*Document, error) {
	found, err := o.c.Query.Custom(ctx, q, tx)
	if err != nil {
		return nil, err
	}
	return lo.Map(found, func(r model.Record, _ int) *Document {
		return o.c.newDocument(r.ID(), r)
	}), nil
}

func (c *Collection) newDocument(id string, data model.Record) *Document {
	return &Document{coll: c, ref: model.NewDocumentRef(c.def.Name, id), data: data}
}
