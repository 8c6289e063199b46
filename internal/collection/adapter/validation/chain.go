// Package validation holds the RecordValidator implementations of the
// collection layer: JSON schema, CEL rules and the managed-field check.
package validation

import (
	"context"
	"errors"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"
)

// Chain runs several validators and merges their field diagnostics
type Chain []repository.RecordValidator

var _ repository.RecordValidator = Chain(nil)

// NewChain skips nil validators
func NewChain(validators ...repository.RecordValidator) Chain {
	out := make(Chain, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// Validate stops at the first error that is not field diagnostics
func (c Chain) Validate(ctx context.Context, record model.Record) error {
	all := apperrors.NewValidationErrors()
	for _, v := range c {
		err := v.Validate(ctx, record)
		if err == nil {
			continue
		}
		var ve *apperrors.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		all.Merge(ve)
	}
	if all.HasErrors() {
		return all
	}
	return nil
}

// ForDefinition builds the validator of a collection: the managed-field
// check, the definition's JSON schema when set, and any extra rules.
func ForDefinition(def model.Definition, rules ...Rule) (Chain, error) {
	validators := []repository.RecordValidator{NewDBObjectValidator()}
	if len(def.Schema) > 0 {
		schema, err := NewJSONSchemaValidator(def.Schema)
		if err != nil {
			return nil, err
		}
		validators = append(validators, schema)
	}
	if len(rules) > 0 {
		celRules, err := NewCELValidator(rules...)
		if err != nil {
			return nil, err
		}
		validators = append(validators, celRules)
	}
	return NewChain(validators...), nil
}
