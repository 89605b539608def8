// Package validation provides request field validators for the
// allocation API's input payloads.
package validation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/trafficbandit/allocator/internal/apperr"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "validation errors: " + strings.Join(msgs, "; ")
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator accumulates field validation errors for a single request.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// AddError adds a validation error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Errors returns all validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Err returns the accumulated errors as a single *apperr.Error, or nil if
// none were recorded. A single field error is returned with its Field set;
// multiple errors are collapsed into one Validation error listing them all.
func (v *Validator) Err() *apperr.Error {
	if !v.HasErrors() {
		return nil
	}
	if len(v.errors) == 1 {
		return apperr.Field(v.errors[0].Field, v.errors[0].Message)
	}
	return apperr.New(apperr.Validation, v.errors.Error())
}

// Required validates that a string is not empty.
func (v *Validator) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
	}
}

// MinLength validates minimum string length.
func (v *Validator) MinLength(field, value string, min int) {
	if len(value) < min {
		v.AddError(field, fmt.Sprintf("must be at least %d characters", min))
	}
}

// MaxLength validates maximum string length.
func (v *Validator) MaxLength(field, value string, max int) {
	if len(value) > max {
		v.AddError(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// NonNegative validates that a number is non-negative.
func (v *Validator) NonNegative(field string, value float64) {
	if value < 0 {
		v.AddError(field, "must be non-negative")
	}
}

// OneOf validates that a value is one of the allowed values.
func (v *Validator) OneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
}

// UUID validates UUID format.
func (v *Validator) UUID(field, value string) {
	if _, err := uuid.Parse(value); err != nil {
		v.AddError(field, "must be a valid UUID")
	}
}
