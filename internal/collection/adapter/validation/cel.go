package validation

import (
	"context"
	"fmt"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"

	"github.com/google/cel-go/cel"
)

// Rule is a CEL expression over the variable record that must evaluate to true
type Rule struct {
	Field      string `json:"field"`
	Expression string `json:"expression"`
	Message    string `json:"message"`
}

type compiledRule struct {
	Rule
	program cel.Program
}

// CELValidator checks records against CEL rules, e.g.
// `has(record.email) && record.email.contains("@")`
type CELValidator struct {
	rules []compiledRule
}

var _ repository.RecordValidator = (*CELValidator)(nil)

func createCELEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("record", cel.MapType(cel.StringType, cel.DynType)),
	)
}

// NewCELValidator compiles every rule up front
func NewCELValidator(rules ...Rule) (*CELValidator, error) {
	env, err := createCELEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		ast, issues := env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("CEL compilation error in rule for %s: %w", r.Field, issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("rule for %s must return bool, got %s", r.Field, out)
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to create CEL program: %w", err)
		}
		compiled = append(compiled, compiledRule{Rule: r, program: program})
	}
	return &CELValidator{rules: compiled}, nil
}

// Validate evaluates every rule. A rule that fails to evaluate counts as violated.
func (v *CELValidator) Validate(_ context.Context, record model.Record) error {
	vars := map[string]interface{}{"record": map[string]interface{}(record)}
	ve := apperrors.NewValidationErrors()

	for _, r := range v.rules {
		out, _, err := r.program.Eval(vars)
		if err != nil {
			ve.Add(r.Field, fmt.Sprintf("%s (%v)", r.message(), err), record[r.Field])
			continue
		}
		if ok, isBool := out.Value().(bool); !isBool || !ok {
			ve.Add(r.Field, r.message(), record[r.Field])
		}
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

func (r compiledRule) message() string {
	if r.Message != "" {
		return r.Message
	}
	return "violates " + r.Expression
}
