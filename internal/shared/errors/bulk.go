package errors

import (
	"fmt"

	"go.uber.org/multierr"
)

// WriteFailure is one document's failure inside a non-transactional batch
type WriteFailure struct {
	DocumentID string `json:"documentId"`
	Operation  string `json:"operation"`
	Err        error  `json:"-"`
}

// Error implements the error interface
func (f WriteFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Operation, f.DocumentID, f.Err)
}

// Unwrap returns the store error
func (f WriteFailure) Unwrap() error {
	return f.Err
}

// BulkWriteError aggregates every failing document of a bulk batch.
// Documents not listed may have been written; nothing is rolled back.
type BulkWriteError struct {
	Failures []WriteFailure `json:"failures"`
}

// NewBulkWriteError returns nil when there are no failures
func NewBulkWriteError(failures []WriteFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return &BulkWriteError{Failures: failures}
}

// Error implements the error interface
func (e *BulkWriteError) Error() string {
	return fmt.Sprintf("%s (%d failed): %v", ErrBulkWrite.Error(), len(e.Failures), e.combined())
}

// Causes returns the underlying error of every failure
func (e *BulkWriteError) Causes() []error {
	causes := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		causes = append(causes, f.Err)
	}
	return causes
}

// Unwrap exposes the failures to errors.Is / errors.As
func (e *BulkWriteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// Is lets errors.Is match ErrBulkWrite
func (e *BulkWriteError) Is(target error) bool {
	return target == ErrBulkWrite
}

// FailedIDs lists the document ids that failed
func (e *BulkWriteError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.DocumentID)
	}
	return ids
}

func (e *BulkWriteError) combined() error {
	var err error
	for _, f := range e.Failures {
		err = multierr.Append(err, f)
	}
	return err
}
