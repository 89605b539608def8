// Package apperr defines the domain error kinds raised by the storage
// layer and allocation orchestrator, and carried through to the ingress
// layer for translation into HTTP responses.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a domain error.
type Kind string

const (
	// Validation covers shape, range, and invariant violations.
	Validation Kind = "validation"
	// NotFound covers missing experiments or variants.
	NotFound Kind = "not_found"
	// NameConflict covers duplicate experiment names.
	NameConflict Kind = "name_conflict"
	// RateLimited covers rejected requests over the configured limit.
	RateLimited Kind = "rate_limited"
	// UpstreamUnavailable covers warehouse connection or query failures.
	UpstreamUnavailable Kind = "upstream_unavailable"
	// Internal covers unexpected failures with no more specific kind.
	Internal Kind = "internal"
)

// Error is a typed domain error carrying its Kind and, for Validation
// errors, an optional field name the violation applies to.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs a domain error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs a domain error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Field constructs a Validation error naming the offending field.
func Field(field, message string) *Error {
	return &Error{Kind: Validation, Field: field, Message: message}
}

// Wrap constructs a domain error of the given kind around a causing error,
// typically one returned by the database driver.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As reports whether err is (or wraps) an *Error, and returns it.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
