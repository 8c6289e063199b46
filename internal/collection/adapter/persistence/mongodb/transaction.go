package mongodb

import (
	"context"
	"errors"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"
	"firestore-collection/internal/shared/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// transaction runs every operation inside the session of one Mongo transaction
type transaction struct {
	store *DocumentStore
	sess  mongo.Session
	id    string

	afterCommit []func(ctx context.Context)
}

var _ repository.Transaction = (*transaction)(nil)

func (t *transaction) ID() string { return t.id }

func (t *transaction) AfterCommit(fn func(ctx context.Context)) {
	t.afterCommit = append(t.afterCommit, fn)
}

func (t *transaction) bind(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, t.sess)
}

func (t *transaction) GetAll(ctx context.Context, collection string, ids []string) ([]model.Record, error) {
	return t.store.GetAll(t.bind(ctx), collection, ids)
}

func (t *transaction) Query(ctx context.Context, collection string, query model.Query) ([]model.Record, error) {
	return t.store.Query(t.bind(ctx), collection, query)
}

func (t *transaction) Create(ctx context.Context, ref model.DocumentRef, record model.Record) error {
	return t.store.Create(t.bind(ctx), ref, record)
}

func (t *transaction) Set(ctx context.Context, ref model.DocumentRef, record model.Record) error {
	return t.store.Set(t.bind(ctx), ref, record)
}

func (t *transaction) Update(ctx context.Context, ref model.DocumentRef, patch model.Record) error {
	return t.store.Update(t.bind(ctx), ref, patch)
}

func (t *transaction) Delete(ctx context.Context, ref model.DocumentRef) error {
	return t.store.Delete(t.bind(ctx), ref)
}

// RunTransaction runs fn in a session transaction. The driver re-runs fn on
// transient errors, each attempt with a fresh transaction.
func (s *DocumentStore) RunTransaction(ctx context.Context, fn repository.TransactionFunc) error {
	if s.client == nil {
		return apperrors.NewInfrastructureError("store has no client for transactions").WithCause(apperrors.ErrTransaction)
	}
	sess, err := s.client.StartSession()
	if err != nil {
		return apperrors.NewInfrastructureError("failed to start session").WithCause(err)
	}
	defer sess.EndSession(ctx)

	var last *transaction
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		tx := &transaction{store: s, sess: sess, id: uuid.NewString()}
		last = tx
		return nil, fn(utils.WithTransactionID(sc, tx.id), tx)
	})
	if err != nil {
		var labeled mongo.ServerError
		if errors.As(err, &labeled) && labeled.HasErrorLabel(transientTransactionError) {
			s.log.WithContext(ctx).Warnf("Transaction aborted after retries: %v", err)
			return apperrors.NewInfrastructureError("transaction aborted after repeated conflicts").
				WithCode("TRANSACTION_CONTENTION").
				WithCause(apperrors.ErrTransaction)
		}
		return err
	}

	for _, cb := range last.afterCommit {
		cb(ctx)
	}
	return nil
}
