package ulango

import (
	"errors"
	"strings"
	"testing"
)

type validatedOrder struct {
	ID       string  `json:"id" validate:"required,uuid"`
	Quantity int     `json:"quantity" validate:"gte=1,lte=100"`
	Total    float64 `json:"total" validate:"gte=0"`
	Contact  string  `json:"contact" validate:"omitempty,email"`
}

func TestStructValidatorValid(t *testing.T) {
	v := NewStructValidator()
	order := validatedOrder{
		ID:       "9f4ef46e-7a3c-4c0e-a3f5-1b0c2d3e4f5a",
		Quantity: 5,
		Total:    19.99,
		Contact:  "buyer@example.com",
	}

	if err := v.Validate(order); err != nil {
		t.Errorf("Expected valid order to pass, got %v", err)
	}
}

func TestStructValidatorPointer(t *testing.T) {
	v := NewStructValidator()
	order := &validatedOrder{
		ID:       "9f4ef46e-7a3c-4c0e-a3f5-1b0c2d3e4f5a",
		Quantity: 1,
	}

	if err := v.Validate(order); err != nil {
		t.Errorf("Expected valid order pointer to pass, got %v", err)
	}
}

func TestStructValidatorViolations(t *testing.T) {
	v := NewStructValidator()
	order := validatedOrder{
		ID:       "not-a-uuid",
		Quantity: 0,
		Total:    -1,
		Contact:  "nope",
	}

	err := v.Validate(order)
	if err == nil {
		t.Fatal("Expected validation to fail")
	}

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected a *SchemaError, got %T", err)
	}
	if len(schemaErr.Fields) != 4 {
		t.Errorf("Expected 4 field violations, got %d: %+v", len(schemaErr.Fields), schemaErr.Fields)
	}

	// Field names come from the json tags, not the Go identifiers.
	byField := map[string]FieldError{}
	for _, field := range schemaErr.Fields {
		byField[field.Field] = field
	}
	for _, name := range []string{"id", "quantity", "total", "contact"} {
		if _, ok := byField[name]; !ok {
			t.Errorf("Expected a violation for field %s", name)
		}
	}
	if byField["quantity"].Rule != "gte" {
		t.Errorf("Expected gte rule on quantity, got %s", byField["quantity"].Rule)
	}
}

func TestStructValidatorNonStruct(t *testing.T) {
	v := NewStructValidator()

	// Values without struct shape are not validated at all.
	values := []any{42, "text", []int{1, 2, 3}, map[string]int{"a": 1}, nil}
	for _, value := range values {
		if err := v.Validate(value); err != nil {
			t.Errorf("Expected %T to pass without validation, got %v", value, err)
		}
	}
}

func TestSchemaErrorMessage(t *testing.T) {
	err := &SchemaError{Fields: []FieldError{
		{Field: "name", Rule: "required", Message: "is required"},
		{Field: "email", Rule: "email", Message: "must be a valid email address"},
	}}

	msg := err.Error()
	if !strings.Contains(msg, "name is required") {
		t.Errorf("Expected message to mention the name violation, got %s", msg)
	}
	if !strings.Contains(msg, "email must be a valid email address") {
		t.Errorf("Expected message to mention the email violation, got %s", msg)
	}
}

func TestSchemaErrorMessageEmpty(t *testing.T) {
	err := &SchemaError{}
	if err.Error() != "schema validation failed" {
		t.Errorf("Expected generic message for empty violations, got %s", err.Error())
	}
}

func TestFieldMessages(t *testing.T) {
	v := NewStructValidator()

	type constrained struct {
		Name string `json:"name" validate:"required"`
		Age  int    `json:"age" validate:"gte=18"`
	}

	err := v.Validate(constrained{Age: 3})
	if err == nil {
		t.Fatal("Expected validation to fail")
	}

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("Expected a *SchemaError, got %T", err)
	}
	byField := map[string]string{}
	for _, field := range schemaErr.Fields {
		byField[field.Field] = field.Message
	}
	if byField["name"] != "is required" {
		t.Errorf("Expected required message for name, got %q", byField["name"])
	}
	if byField["age"] != "must be greater than or equal to 18" {
		t.Errorf("Expected gte message for age, got %q", byField["age"])
	}
}
