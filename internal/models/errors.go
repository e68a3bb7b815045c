package models

import (
	"errors"
	"fmt"
)

// ValidationError reports a record or context that does not match its
// expected shape. Retrying with the same input reproduces it.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s.%s: %s", e.Entity, e.Field, e.Reason)
}

// NewValidationError creates a ValidationError.
func NewValidationError(entity, field, reason string) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Reason: reason}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
