// Package mongodb implements the document store on MongoDB. Each collection
// maps to a Mongo collection of the same name and the document id is _id.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"firestore-collection/internal/collection/adapter/persistence/bulkwriter"
	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	"firestore-collection/internal/shared/database"
	apperrors "firestore-collection/internal/shared/errors"
	"firestore-collection/internal/shared/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// transientTransactionError is the server label marking a retryable transaction
const transientTransactionError = "TransientTransactionError"

// Options configures a DocumentStore
type Options struct {
	BulkConcurrency int
	Logger          logger.Logger
}

// DocumentStore is a repository.DocumentStore backed by one Mongo database
type DocumentStore struct {
	collection func(name string) CollectionInterface
	client     ClientInterface
	closer     func(ctx context.Context) error

	bulk bulkwriter.Options
	log  logger.Logger
}

var _ repository.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore uses the manager's default database. Close closes the manager.
func NewDocumentStore(cm *database.ConnectionManager, opts Options) *DocumentStore {
	db := cm.Database()
	return newDocumentStore(
		func(name string) CollectionInterface { return NewMongoCollectionAdapter(db.Collection(name)) },
		cm.Client(),
		cm.Close,
		opts,
	)
}

func newDocumentStore(collection func(string) CollectionInterface, client ClientInterface, closer func(context.Context) error, opts Options) *DocumentStore {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &DocumentStore{
		collection: collection,
		client:     client,
		closer:     closer,
		bulk:       bulkwriter.Options{Concurrency: opts.BulkConcurrency, Logger: opts.Logger},
		log:        opts.Logger.WithComponent("mongo-store"),
	}
}

func byID(id string) bson.M {
	return bson.M{model.FieldID: id}
}

func document(ref model.DocumentRef, record model.Record) bson.M {
	doc := make(bson.M, len(record)+1)
	for k, v := range record {
		doc[k] = v
	}
	doc[model.FieldID] = ref.ID
	return doc
}

// storeError maps driver errors. Transient transaction errors are returned
// as they are so the session can retry the transaction.
func storeError(op string, ref model.DocumentRef, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return apperrors.NewAlreadyExistsError(ref.Collection, ref.ID)
	}
	var labeled mongo.ServerError
	if errors.As(err, &labeled) && labeled.HasErrorLabel(transientTransactionError) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apperrors.NewInfrastructureError(fmt.Sprintf("mongo %s failed on %s", op, ref.Path())).
		WithCode("STORE_UNAVAILABLE").
		WithCause(err)
}

func (s *DocumentStore) GetAll(ctx context.Context, collection string, ids []string) ([]model.Record, error) {
	out := make([]model.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	filter := bson.M{model.FieldID: bson.M{"$in": ids}}
	found, err := s.find(ctx, collection, filter, options.Find())
	if err != nil {
		return nil, storeError("get", model.NewDocumentRef(collection, ""), err)
	}

	index := make(map[string]model.Record, len(found))
	for _, r := range found {
		index[r.ID()] = r
	}
	for i, id := range ids {
		if r, ok := index[id]; ok {
			out[i] = r.Clone()
		}
	}
	return out, nil
}

func (s *DocumentStore) Query(ctx context.Context, collection string, query model.Query) ([]model.Record, error) {
	filter, err := buildFilter(query)
	if err != nil {
		return nil, err
	}
	records, err := s.find(ctx, collection, filter, buildFindOptions(query))
	if err != nil {
		return nil, storeError("query", model.NewDocumentRef(collection, ""), err)
	}
	return records, nil
}

func (s *DocumentStore) find(ctx context.Context, collection string, filter bson.M, opts *options.FindOptions) ([]model.Record, error) {
	cur, err := s.collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []model.Record
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		records = append(records, toRecord(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

func (s *DocumentStore) Create(ctx context.Context, ref model.DocumentRef, record model.Record) error {
	err := s.collection(ref.Collection).InsertOne(ctx, document(ref, record))
	return storeError("insert", ref, err)
}

func (s *DocumentStore) Set(ctx context.Context, ref model.DocumentRef, record model.Record) error {
	_, err := s.collection(ref.Collection).ReplaceOne(ctx, byID(ref.ID), document(ref, record), true)
	return storeError("replace", ref, err)
}

// Update applies the patch as $set and $unset on dotted paths
func (s *DocumentStore) Update(ctx context.Context, ref model.DocumentRef, patch model.Record) error {
	set, unset := model.FlattenPatch(patch)
	delete(set, model.FieldID)

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = bson.M(set)
	}
	if len(unset) > 0 {
		fields := bson.M{}
		for _, path := range unset {
			fields[path] = ""
		}
		update["$unset"] = fields
	}

	col := s.collection(ref.Collection)
	if len(update) == 0 {
		n, err := col.CountDocuments(ctx, byID(ref.ID))
		if err != nil {
			return storeError("count", ref, err)
		}
		if n == 0 {
			return apperrors.NewDocumentNotFoundError(ref.Collection, ref.ID)
		}
		return nil
	}

	res, err := col.UpdateOne(ctx, byID(ref.ID), update)
	if err != nil {
		return storeError("update", ref, err)
	}
	if res.Matched == 0 {
		return apperrors.NewDocumentNotFoundError(ref.Collection, ref.ID)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, ref model.DocumentRef) error {
	_, err := s.collection(ref.Collection).DeleteOne(ctx, byID(ref.ID))
	return storeError("delete", ref, err)
}

// ListIDs returns up to limit ids in ascending order
func (s *DocumentStore) ListIDs(ctx context.Context, collection string, limit int) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{model.FieldID: 1}).
		SetSort(bson.D{{Key: model.FieldID, Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	records, err := s.find(ctx, collection, bson.M{}, opts)
	if err != nil {
		return nil, storeError("list", model.NewDocumentRef(collection, ""), err)
	}
	return model.IDs(records), nil
}

// BulkWriter returns a writer applying each operation on its own
func (s *DocumentStore) BulkWriter(ctx context.Context) repository.BulkWriter {
	return bulkwriter.New(ctx, s, s.bulk)
}

func (s *DocumentStore) Close(ctx context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer(ctx)
}
