package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Behavior(t *testing.T) {
	err := NewDomainError("invalid input").WithCode("VAL001").WithDetail("field", "name").WithComponent("test-component")
	assert.Equal(t, ErrorTypeDomain, err.Type)
	assert.Equal(t, "invalid input", err.Message)
	assert.Equal(t, "VAL001", err.Code)
	assert.Equal(t, "test-component", err.Component)
	assert.Equal(t, "name", err.Details["field"])
	assert.Equal(t, "invalid input", err.Error())
}

func TestAppError_WithCause_Unwrap(t *testing.T) {
	err := NewNotFoundError("resource")
	assert.Equal(t, ErrNotFound, err.Unwrap())
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
}

func TestConstructors_WrapSentinels(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"missing field", NewMissingFieldError("name"), ErrMissingField},
		{"identity conflict", NewIdentityConflictError("X", "abc"), ErrIdentityConflict},
		{"invalid id", NewInvalidIDError("doc.unique"), ErrInvalidID},
		{"duplicate id", NewDuplicateIDError("create.all", []string{"a"}), ErrDuplicateID},
		{"already exists", NewAlreadyExistsError("users", "a"), ErrAlreadyExists},
		{"not found", NewDocumentNotFoundError("users", "a"), ErrNotFound},
		{"has dependencies", NewHasDependenciesError("user", []string{"b"}), ErrHasDependencies},
		{"empty query", NewRefuseEmptyQueryError("delete.query"), ErrRefuseEmptyQuery},
		{"too many", NewTooManyResultsError("users", 2), ErrTooManyResults},
		{"batch too large", NewBatchTooLargeError(501, 500), ErrBatchTooLarge},
		{"validation", NewValidationError("bad"), ErrValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(tc.err, tc.sentinel))
		})
	}
}

func TestValidationErrors(t *testing.T) {
	ve := NewValidationErrors()
	assert.False(t, ve.HasErrors())
	assert.Nil(t, ve.ToAppError())

	ve.Add("field1", "must be set", "")
	assert.True(t, ve.HasErrors())
	assert.True(t, errors.Is(ve, ErrValidation))

	appErr := ve.ToAppError()
	require.NotNil(t, appErr)
	assert.Equal(t, ErrorTypeValidation, appErr.Type)
	assert.True(t, IsValidation(appErr))

	var unwrapped *ValidationErrors
	require.True(t, errors.As(appErr, &unwrapped))
	assert.Equal(t, "field1", unwrapped.Errors[0].Field)
}

func TestValidationErrors_Merge(t *testing.T) {
	a := NewValidationErrors().Add("a", "bad", 1)
	b := NewValidationErrors().Add("b", "bad", 2)
	a.Merge(b).Merge(nil)
	assert.Len(t, a.Errors, 2)
}

func TestBulkWriteError(t *testing.T) {
	assert.Nil(t, NewBulkWriteError(nil))

	err := NewBulkWriteError([]WriteFailure{
		{DocumentID: "a", Operation: "create", Err: NewAlreadyExistsError("users", "a")},
		{DocumentID: "b", Operation: "update", Err: NewDocumentNotFoundError("users", "b")},
	})
	require.Error(t, err)

	assert.True(t, IsBulkWrite(err))
	assert.True(t, errors.Is(err, ErrAlreadyExists))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrDuplicateID))

	var bulkErr *BulkWriteError
	require.True(t, errors.As(err, &bulkErr))
	assert.Len(t, bulkErr.Causes(), 2)
	assert.Equal(t, []string{"a", "b"}, bulkErr.FailedIDs())
	assert.Contains(t, err.Error(), "2 failed")
}

func TestWrapError(t *testing.T) {
	appErr := NewConflictError("conflict")
	assert.Same(t, appErr, WrapError(fmt.Errorf("outer: %w", appErr), "ignored"))

	wrapped := WrapError(errors.New("boom"), "context")
	assert.Equal(t, ErrorTypeInternal, wrapped.Type)
	assert.Contains(t, wrapped.Error(), "boom")
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(NewConflictError("x")))
	assert.True(t, IsConflict(ErrAlreadyExists))
	assert.False(t, IsConflict(ErrNotFound))
}
