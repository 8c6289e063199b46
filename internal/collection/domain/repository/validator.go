package repository

import (
	"context"

	"firestore-collection/internal/collection/domain/model"
)

// RecordValidator checks a record before it is written.
// Failures are *errors.ValidationErrors or errors wrapping ErrValidation.
type RecordValidator interface {
	Validate(ctx context.Context, record model.Record) error
}
