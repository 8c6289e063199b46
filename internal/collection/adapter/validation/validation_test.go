package validation

import (
	"context"
	"errors"
	"testing"

	"firestore-collection/internal/collection/domain/model"
	apperrors "firestore-collection/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() model.Record {
	return model.Record{
		"_id":       "abc",
		"__created": int64(100),
		"__updated": int64(200),
		"_v":        "1.0.0",
		"email":     "ana@example.com",
		"age":       30,
	}
}

func fields(t *testing.T, err error) []string {
	t.Helper()
	var ve *apperrors.ValidationErrors
	require.True(t, errors.As(err, &ve), "expected ValidationErrors, got %v", err)
	out := make([]string, 0, len(ve.Errors))
	for _, e := range ve.Errors {
		out = append(out, e.Field)
	}
	return out
}

var userSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"email"},
	"properties": map[string]interface{}{
		"email": map[string]interface{}{"type": "string"},
		"age":   map[string]interface{}{"type": "integer", "minimum": 0},
	},
}

func TestJSONSchemaValidator(t *testing.T) {
	ctx := context.Background()
	v, err := NewJSONSchemaValidator(userSchema)
	require.NoError(t, err)

	assert.NoError(t, v.Validate(ctx, validRecord()))

	bad := validRecord()
	delete(bad, "email")
	bad["age"] = -1
	err = v.Validate(ctx, bad)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.ElementsMatch(t, []string{"email", "age"}, fields(t, err))
}

func TestJSONSchemaValidator_InvalidSchema(t *testing.T) {
	_, err := NewJSONSchemaValidator(map[string]interface{}{"type": 12})
	assert.Error(t, err)
}

func TestCELValidator(t *testing.T) {
	ctx := context.Background()
	v, err := NewCELValidator(
		Rule{Field: "email", Expression: `has(record.email) && record.email.contains("@")`, Message: "must be an email"},
		Rule{Field: "age", Expression: `!has(record.age) || record.age < 150`},
	)
	require.NoError(t, err)

	assert.NoError(t, v.Validate(ctx, validRecord()))

	bad := validRecord()
	bad["email"] = "nope"
	bad["age"] = 200
	err = v.Validate(ctx, bad)
	assert.Equal(t, []string{"email", "age"}, fields(t, err))

	var ve *apperrors.ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "must be an email", ve.Errors[0].Message)
	assert.Contains(t, ve.Errors[1].Message, "record.age < 150")
}

func TestCELValidator_RejectsBadRules(t *testing.T) {
	_, err := NewCELValidator(Rule{Field: "x", Expression: `record.x +`})
	assert.Error(t, err)

	_, err = NewCELValidator(Rule{Field: "x", Expression: `"text"`})
	assert.Error(t, err)
}

func TestDBObjectValidator(t *testing.T) {
	ctx := context.Background()
	v := NewDBObjectValidator()

	assert.NoError(t, v.Validate(ctx, validRecord()))

	bad := validRecord()
	bad["_id"] = "a/b"
	bad["__updated"] = int64(50)
	delete(bad, "_v")
	assert.ElementsMatch(t, []string{"_id", "__updated", "_v"}, fields(t, v.Validate(ctx, bad)))
}

func TestChain_MergesDiagnostics(t *testing.T) {
	ctx := context.Background()
	def := model.Definition{Name: "users", Schema: userSchema}
	chain, err := ForDefinition(def, Rule{Field: "age", Expression: `record.age >= 18`})
	require.NoError(t, err)
	assert.Len(t, chain, 3)

	assert.NoError(t, chain.Validate(ctx, validRecord()))

	bad := validRecord()
	delete(bad, "__created")
	delete(bad, "email")
	bad["age"] = 10
	assert.ElementsMatch(t, []string{"__created", "email", "age"}, fields(t, chain.Validate(ctx, bad)))
}
