package validation

import (
	"context"
	"fmt"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchemaValidator checks records against a JSON schema
type JSONSchemaValidator struct {
	schema *gojsonschema.Schema
}

var _ repository.RecordValidator = (*JSONSchemaValidator)(nil)

// NewJSONSchemaValidator compiles schema, usually Definition.Schema
func NewJSONSchemaValidator(schema map[string]interface{}) (*JSONSchemaValidator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid json schema: %w", err)
	}
	return &JSONSchemaValidator{schema: compiled}, nil
}

// Validate returns *errors.ValidationErrors with one entry per schema violation
func (v *JSONSchemaValidator) Validate(_ context.Context, record model.Record) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(map[string]interface{}(record)))
	if err != nil {
		return apperrors.NewValidationError("record could not be checked against the schema").WithCause(err)
	}
	if result.Valid() {
		return nil
	}

	ve := apperrors.NewValidationErrors()
	for _, re := range result.Errors() {
		ve.Add(schemaField(re), re.Description(), re.Value())
	}
	return ve
}

// schemaField names the offending field; required errors point at the parent
func schemaField(re gojsonschema.ResultError) string {
	field := re.Field()
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			if field == gojsonschema.STRING_CONTEXT_ROOT {
				return prop
			}
			return field + "." + prop
		}
	}
	return field
}
