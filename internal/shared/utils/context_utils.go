package utils

import (
	"context"
	"errors"

	"firestore-collection/internal/shared/contextkeys"
)

// Common context errors
var (
	ErrRequestIDNotFound      = errors.New("requestID not found in context")
	ErrRequestIDNotString     = errors.New("requestID in context is not a string")
	ErrCollectionNotFound     = errors.New("collection not found in context")
	ErrCollectionNotString    = errors.New("collection in context is not a string")
	ErrTransactionIDNotFound  = errors.New("transactionID not found in context")
	ErrTransactionIDNotString = errors.New("transactionID in context is not a string")
)

func stringValue(ctx context.Context, key interface{}, missing, wrongType error) (string, error) {
	val := ctx.Value(key)
	if val == nil {
		return "", missing
	}
	s, ok := val.(string)
	if !ok {
		return "", wrongType
	}
	return s, nil
}

// GetRequestIDFromContext retrieves the request ID from the context.
func GetRequestIDFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.RequestIDKey, ErrRequestIDNotFound, ErrRequestIDNotString)
}

// GetCollectionFromContext retrieves the collection name from the context.
func GetCollectionFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.CollectionKey, ErrCollectionNotFound, ErrCollectionNotString)
}

// GetTransactionIDFromContext retrieves the enclosing transaction id from the context.
func GetTransactionIDFromContext(ctx context.Context) (string, error) {
	return stringValue(ctx, contextkeys.TransactionIDKey, ErrTransactionIDNotFound, ErrTransactionIDNotString)
}

// Context builder functions

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextkeys.RequestIDKey, requestID)
}

// WithCollection adds collection name to context
func WithCollection(ctx context.Context, collection string) context.Context {
	return context.WithValue(ctx, contextkeys.CollectionKey, collection)
}

// WithTransactionID adds transaction id to context
func WithTransactionID(ctx context.Context, txID string) context.Context {
	return context.WithValue(ctx, contextkeys.TransactionIDKey, txID)
}

// WithComponent adds component name to context
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, contextkeys.ComponentKey, component)
}

// WithOperation adds operation name to context
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, contextkeys.OperationKey, operation)
}

// GetRequestIDOrDefault retrieves the request ID from context or returns a default value
func GetRequestIDOrDefault(ctx context.Context, def string) string {
	if v, err := GetRequestIDFromContext(ctx); err == nil {
		return v
	}
	return def
}

// HasTransactionID reports whether the context carries an enclosing transaction
func HasTransactionID(ctx context.Context) bool {
	_, err := GetTransactionIDFromContext(ctx)
	return err == nil
}
