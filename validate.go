package ulango

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Validator checks a decoded response value against its schema. Implementations
// return nil for valid values and a *SchemaError describing every violated
// constraint otherwise.
type Validator interface {
	Validate(value any) error
}

// FieldError describes a single schema violation.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

// SchemaError aggregates the schema violations found in a decoded response.
type SchemaError struct {
	Fields []FieldError
}

// Error returns a semicolon-joined summary of all field violations.
func (e *SchemaError) Error() string {
	if len(e.Fields) == 0 {
		return "schema validation failed"
	}
	messages := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		messages = append(messages, f.Field+" "+f.Message)
	}
	return strings.Join(messages, "; ")
}

var (
	structValidate     *validator.Validate
	structValidateOnce sync.Once
)

func getStructValidate() *validator.Validate {
	structValidateOnce.Do(func() {
		structValidate = validator.New(validator.WithRequiredStructEnabled())

		// Use json tag names for field names in error messages
		structValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return structValidate
}

// StructValidator validates decoded responses using `validate:"..."` struct
// tags. Non-struct values pass unchecked, so plain strings, numbers, and
// slices decode without schema constraints.
type StructValidator struct{}

// NewStructValidator creates a tag-driven validator backed by a shared
// validator instance.
func NewStructValidator() *StructValidator {
	return &StructValidator{}
}

// Validate checks the value's `validate` tags and returns a *SchemaError
// listing every violated field.
func (v *StructValidator) Validate(value any) error {
	err := getStructValidate().Struct(value)
	if err == nil {
		return nil
	}

	if _, ok := err.(*validator.InvalidValidationError); ok {
		// Not a struct; nothing to check.
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return &SchemaError{Fields: []FieldError{{Field: "value", Rule: "struct", Message: "is invalid"}}}
	}

	fields := make([]FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		fields = append(fields, FieldError{
			Field:   e.Field(),
			Rule:    e.Tag(),
			Message: fieldMessage(e),
		})
	}
	return &SchemaError{Fields: fields}
}

// fieldMessage creates a human-readable error message for a violation.
func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "is invalid"
	}
}
