package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WriteResult reports what a single-document write touched
type WriteResult struct {
	Matched  int64
	Deleted  int64
	Upserted bool
}

// CollectionInterface is the part of a Mongo collection the document store
// needs. Tests replace it with a mock.
type CollectionInterface interface {
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	InsertOne(ctx context.Context, doc interface{}) error
	ReplaceOne(ctx context.Context, filter, replacement interface{}, upsert bool) (WriteResult, error)
	UpdateOne(ctx context.Context, filter, update interface{}) (WriteResult, error)
	DeleteOne(ctx context.Context, filter interface{}) (WriteResult, error)
	Find(ctx context.Context, filter interface{}, opts *options.FindOptions) (CursorInterface, error)
}

// CursorInterface is satisfied by *mongo.Cursor
type CursorInterface interface {
	Next(ctx context.Context) bool
	Decode(val interface{}) error
	Close(ctx context.Context) error
	Err() error
}

// ClientInterface abstracts session creation for testing
type ClientInterface interface {
	StartSession(opts ...*options.SessionOptions) (mongo.Session, error)
}

// MongoCollectionAdapter makes *mongo.Collection satisfy CollectionInterface
type MongoCollectionAdapter struct {
	col *mongo.Collection
}

var _ CollectionInterface = (*MongoCollectionAdapter)(nil)

func NewMongoCollectionAdapter(col *mongo.Collection) *MongoCollectionAdapter {
	return &MongoCollectionAdapter{col: col}
}

func (m *MongoCollectionAdapter) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return m.col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
}

func (m *MongoCollectionAdapter) InsertOne(ctx context.Context, doc interface{}) error {
	_, err := m.col.InsertOne(ctx, doc)
	return err
}

func (m *MongoCollectionAdapter) ReplaceOne(ctx context.Context, filter, replacement interface{}, upsert bool) (WriteResult, error) {
	res, err := m.col.ReplaceOne(ctx, filter, replacement, options.Replace().SetUpsert(upsert))
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Matched: res.MatchedCount, Upserted: res.UpsertedCount > 0}, nil
}

func (m *MongoCollectionAdapter) UpdateOne(ctx context.Context, filter, update interface{}) (WriteResult, error) {
	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Matched: res.MatchedCount}, nil
}

func (m *MongoCollectionAdapter) DeleteOne(ctx context.Context, filter interface{}) (WriteResult, error) {
	res, err := m.col.DeleteOne(ctx, filter)
	if err != nil {
		return WriteResult{}, err
	}
	return WriteResult{Deleted: res.DeletedCount}, nil
}

func (m *MongoCollectionAdapter) Find(ctx context.Context, filter interface{}, opts *options.FindOptions) (CursorInterface, error) {
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return cur, nil
}
