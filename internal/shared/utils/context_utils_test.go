package utils

import (
	"context"
	"testing"

	"firestore-collection/internal/shared/contextkeys"

	"github.com/stretchr/testify/assert"
)

func TestGetSetContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req1")
	ctx = WithCollection(ctx, "users")
	ctx = WithTransactionID(ctx, "tx1")
	ctx = WithComponent(ctx, "componentA")
	ctx = WithOperation(ctx, "opX")

	reqID, err := GetRequestIDFromContext(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "req1", reqID)

	collection, err := GetCollectionFromContext(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "users", collection)

	txID, err := GetTransactionIDFromContext(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "tx1", txID)

	assert.True(t, HasTransactionID(ctx))
	assert.Equal(t, "req1", GetRequestIDOrDefault(ctx, "default"))
	assert.Equal(t, "opX", ctx.Value(contextkeys.OperationKey))
}

func TestContextUtils_MissingValues(t *testing.T) {
	ctx := context.Background()
	_, err := GetRequestIDFromContext(ctx)
	assert.ErrorIs(t, err, ErrRequestIDNotFound)
	assert.Equal(t, "requestID not found in context", err.Error())

	assert.Equal(t, "default", GetRequestIDOrDefault(ctx, "default"))
	assert.False(t, HasTransactionID(ctx))
}

func TestContextUtils_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), contextkeys.CollectionKey, 42)
	_, err := GetCollectionFromContext(ctx)
	assert.ErrorIs(t, err, ErrCollectionNotString)
}
