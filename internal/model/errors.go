package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Engine error taxonomy. Layers wrap these with fmt.Errorf("...: %w", ...) so the
// violated rule travels with the error and callers classify with errors.Is.
var (
	// ErrNotFound is returned when a task, step or related entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the actor may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition is returned when the status table rejects a transition.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidStepAction is returned when a workflow step can't take the requested action.
	ErrInvalidStepAction = errors.New("invalid step action")
	// ErrValidation is returned when a payload is malformed.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when the record changed between read and write.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries field level detail for a rejected payload.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a validation error for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
