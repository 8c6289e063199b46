package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an AppError
type ErrorType string

const (
	ErrorTypeDomain         ErrorType = "DOMAIN_ERROR"
	ErrorTypeValidation     ErrorType = "VALIDATION_ERROR"
	ErrorTypeInfrastructure ErrorType = "INFRASTRUCTURE_ERROR"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND_ERROR"
	ErrorTypeConflict       ErrorType = "CONFLICT_ERROR"
	ErrorTypeDependency     ErrorType = "DEPENDENCY_ERROR"
	ErrorTypeInternal       ErrorType = "INTERNAL_ERROR"
)

// Store errors, surfaced unchanged from the document store adapters
var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrTransaction   = errors.New("transaction failed")
)

// Write-path errors
var (
	ErrMissingField     = errors.New("unique key field missing")
	ErrIdentityConflict = errors.New("_id does not match the id composed from unique keys")
	ErrInvalidID        = errors.New("invalid document _id")
	ErrDuplicateID      = errors.New("duplicate _id in batch")
	ErrBulkWrite        = errors.New("bulk write failed")
	ErrValidation       = errors.New("validation failed")
	ErrHasDependencies  = errors.New("entity has dependencies")
	ErrRefuseEmptyQuery = errors.New("refusing to run an empty query")
	ErrTooManyResults   = errors.New("too many results for unique query")
	ErrBatchTooLarge    = errors.New("batch exceeds transaction write limit")
)

// AppError is the error every collection operation returns. Cause is usually
// one of the sentinels above, so errors.Is works through it.
type AppError struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Component string                 `json:"component,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(errorType ErrorType, message string) *AppError {
	return &AppError{Type: errorType, Message: message, Details: map[string]interface{}{}}
}

// WithCode sets a stable machine-readable code such as NOT_FOUND
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithComponent names the layer that produced the error
func (e *AppError) WithComponent(component string) *AppError {
	e.Component = component
	return e
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func NewDomainError(message string) *AppError {
	return newAppError(ErrorTypeDomain, message)
}

// NewValidationError wraps ErrValidation; prefer ValidationErrors for per-field diagnostics
func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, message).WithCause(ErrValidation)
}

// NewInfrastructureError is for store and cache failures
func NewInfrastructureError(message string) *AppError {
	return newAppError(ErrorTypeInfrastructure, message)
}

func NewNotFoundError(resource string) *AppError {
	return newAppError(ErrorTypeNotFound, resource+" not found").WithCause(ErrNotFound)
}

func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, message)
}

// NewInternalError is for broken invariants, never for caller mistakes
func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, message)
}

// Write-path constructors. Each one wraps its sentinel so errors.Is keeps working.

// NewMissingFieldError reports a unique key field absent from an item.
func NewMissingFieldError(field string) *AppError {
	return NewInternalError(fmt.Sprintf("unique key missing from db item: %s", field)).
		WithCode("MISSING_FIELD").
		WithDetail("field", field).
		WithCause(ErrMissingField)
}

// NewIdentityConflictError reports an _id that disagrees with its unique keys.
func NewIdentityConflictError(existingID, composedID string) *AppError {
	return NewInternalError("existing _id did not match the _id composed from the unique keys").
		WithCode("IDENTITY_CONFLICT").
		WithDetail("existing_id", existingID).
		WithDetail("composed_id", composedID).
		WithCause(ErrIdentityConflict)
}

// NewInvalidIDError reports an empty or malformed _id handed to a document reference.
func NewInvalidIDError(operation string) *AppError {
	return NewInternalError(fmt.Sprintf("did not receive an _id at %s", operation)).
		WithCode("INVALID_ID").
		WithCause(ErrInvalidID)
}

// NewDuplicateIDError reports two items of one batch resolving to the same _id.
func NewDuplicateIDError(operation string, ids []string) *AppError {
	return NewInternalError(fmt.Sprintf("%s received the same _id twice", operation)).
		WithCode("DUPLICATE_ID").
		WithDetail("ids", ids).
		WithCause(ErrDuplicateID)
}

// NewAlreadyExistsError wraps a store create conflict.
func NewAlreadyExistsError(collection, id string) *AppError {
	return NewConflictError(fmt.Sprintf("%s/%s already exists", collection, id)).
		WithCode("ALREADY_EXISTS").
		WithCause(ErrAlreadyExists)
}

// NewDocumentNotFoundError wraps a store not-found signal.
func NewDocumentNotFoundError(collection, id string) *AppError {
	return NewNotFoundError(fmt.Sprintf("%s/%s", collection, id)).WithCode("NOT_FOUND")
}

// NewHasDependenciesError blocks a deletion with the conflicting dependents.
func NewHasDependenciesError(entity string, dependencies interface{}) *AppError {
	return newAppError(ErrorTypeDependency, entity+" has dependencies").
		WithCode("HAS_DEPENDENCIES").
		WithDetail("dependencies", dependencies).
		WithCause(ErrHasDependencies)
}

// NewRefuseEmptyQueryError guards against unintended full-collection deletes.
func NewRefuseEmptyQueryError(operation string) *AppError {
	return NewInternalError(fmt.Sprintf("an empty query was passed to %s", operation)).
		WithCode("EMPTY_QUERY").
		WithCause(ErrRefuseEmptyQuery)
}

// NewTooManyResultsError reports a unique query matching more than one document.
func NewTooManyResultsError(collection string, count int) *AppError {
	return NewInternalError(fmt.Sprintf("too many results (%d) for unique query in collection: %s", count, collection)).
		WithCode("TOO_MANY_RESULTS").
		WithCause(ErrTooManyResults)
}

// NewBatchTooLargeError reports a transactional batch over the write limit.
func NewBatchTooLargeError(size, limit int) *AppError {
	return NewDomainError(fmt.Sprintf("transactional batch of %d writes exceeds limit of %d", size, limit)).
		WithCode("BATCH_TOO_LARGE").
		WithCause(ErrBatchTooLarge)
}

// ValidationError is one field diagnostic
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// ValidationErrors collects field diagnostics from every validator of a record
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s: %s", ve.Errors[0].Field, ve.Errors[0].Message)
}

// Is lets errors.Is match ErrValidation
func (ve *ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Errors: []ValidationError{}}
}

func (ve *ValidationErrors) Add(field, message string, value interface{}) *ValidationErrors {
	ve.Errors = append(ve.Errors, ValidationError{Field: field, Message: message, Value: value})
	return ve
}

// Merge appends the diagnostics of other
func (ve *ValidationErrors) Merge(other *ValidationErrors) *ValidationErrors {
	if other != nil {
		ve.Errors = append(ve.Errors, other.Errors...)
	}
	return ve
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ToAppError returns nil when there is nothing to report
func (ve *ValidationErrors) ToAppError() *AppError {
	if !ve.HasErrors() {
		return nil
	}
	return newAppError(ErrorTypeValidation, "validation failed").
		WithCode("BAD_INPUT").
		WithDetail("validation_errors", ve.Errors).
		WithCause(ve)
}

// WrapError keeps an existing AppError and wraps anything else as internal
func WrapError(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(message).WithCause(err)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict also matches ErrAlreadyExists
func IsConflict(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Type == ErrorTypeConflict {
		return true
	}
	return errors.Is(err, ErrAlreadyExists)
}

func IsBulkWrite(err error) bool {
	return errors.Is(err, ErrBulkWrite)
}

// Is, As re-exported so callers can stay on this package
var (
	Is = errors.Is
	As = errors.As
)
