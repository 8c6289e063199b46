package validation

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"firestore-collection/internal/collection/domain/model"
	"firestore-collection/internal/collection/domain/repository"
	apperrors "firestore-collection/internal/shared/errors"

	"github.com/go-playground/validator/v10"
)

// dbObject holds the fields every stored record carries
type dbObject struct {
	ID      string `json:"_id" validate:"required,max=1500,excludes=/"`
	Created int64  `json:"__created" validate:"required,gt=0"`
	Updated int64  `json:"__updated" validate:"required,gtefield=Created"`
	Version string `json:"_v" validate:"required"`
}

// DBObjectValidator checks the managed fields of a stored record
type DBObjectValidator struct {
	validate *validator.Validate
}

var _ repository.RecordValidator = (*DBObjectValidator)(nil)

// NewDBObjectValidator creates the validator; errors name fields by their record key
func NewDBObjectValidator() *DBObjectValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &DBObjectValidator{validate: v}
}

func (v *DBObjectValidator) Validate(_ context.Context, record model.Record) error {
	obj, err := model.DecodeRecord[dbObject](record)
	if err != nil {
		return apperrors.NewValidationErrors().Add(model.FieldID, "managed fields have the wrong type: "+err.Error(), nil)
	}

	err = v.validate.Struct(obj)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError(err.Error()).WithCause(err)
	}

	ve := apperrors.NewValidationErrors()
	for _, fe := range fieldErrs {
		ve.Add(fe.Field(), "failed on "+fe.Tag(), fe.Value())
	}
	return ve
}
