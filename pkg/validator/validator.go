// Package validator wraps go-playground/validator with the project's custom tags and the
// messages rendered to API clients.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Validator interface {
	Validate(s any) error
}

// Enum is implemented by string enums checked with the "enum" tag.
type Enum interface {
	Validate() error
}

type DefaultValidator struct {
	v *validator.Validate
}

var _ Validator = (*DefaultValidator)(nil)

func NewDefaultValidator() (*DefaultValidator, error) {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	if err := v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
		e, ok := fl.Field().Interface().(Enum)
		return ok && e.Validate() == nil
	}); err != nil {
		return nil, fmt.Errorf("register enum validator: %w", err)
	}

	return &DefaultValidator{v: v}, nil
}

func MustNewDefaultValidator() *DefaultValidator {
	v, err := NewDefaultValidator()
	if err != nil {
		panic(err)
	}
	return v
}

func (v *DefaultValidator) Validate(s any) error {
	return v.v.Struct(s)
}

// jsonFieldName reports fields by the name clients send. Fields without a json name keep
// their Go name.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// IsValidationError reports whether err wraps validator.ValidationErrors.
func IsValidationError(err error) bool {
	var validationErrs validator.ValidationErrors
	return errors.As(err, &validationErrs)
}

var fixedMessages = map[string]string{
	"required": "field is required",
	"uuid":     "must be a valid UUID",
}

var paramMessages = map[string]string{
	"min":   "must be at least %s",
	"max":   "must be at most %s",
	"gte":   "must be greater than or equal to %s",
	"lt":    "must be less than %s",
	"lte":   "must be less than or equal to %s",
	"oneof": "must be one of [%s]",
}

// ValidationErrorMessage renders a client-facing message for a single field failure.
func ValidationErrorMessage(fe validator.FieldError) string {
	if fe.Kind() == reflect.String && (fe.Tag() == "max" || fe.Tag() == "min") {
		return fmt.Sprintf(paramMessages[fe.Tag()]+" characters", fe.Param())
	}
	if msg, ok := fixedMessages[fe.Tag()]; ok {
		return msg
	}
	if format, ok := paramMessages[fe.Tag()]; ok {
		return fmt.Sprintf(format, fe.Param())
	}
	if fe.Tag() == "enum" {
		return fmt.Sprintf("invalid enum value: %v", fe.Value())
	}
	return "is invalid"
}
