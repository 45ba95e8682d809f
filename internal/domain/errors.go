package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Lookup and input failures.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
)

// Caller identity failures: bad or stale signature, actor not on the allow-list.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Workflow failures. ErrConflict is a lost conditional write; ErrInvalidState
// is a status guard that did not hold.
var (
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrDependency   = errors.New("dependency unavailable")
	ErrExecution    = errors.New("execution failed")
)

// FieldError is one rejected input field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects field errors. It unwraps to ErrValidation.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add records a field error.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns e when it holds any field error and nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// StateError reports a status guard failure on a diff record.
type StateError struct {
	DiffID   string
	Expected DiffStatus
	Actual   DiffStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("diff %s: expected status %s, got %s", e.DiffID, e.Expected, e.Actual)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }
