package model

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or structurally invalid input: an empty
// snapshot set, a duplicate filer id, an unknown correction field. Fatal to
// the affected filer's run, never silently skipped.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether any error in the chain is a
// ValidationError. Wrapping preserves the kind.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// SchemaError reports a correction or configuration document that violates
// its declared schema: wrong value types, an unresolvable state-qualified
// key. Surfaced before any numeric computation for the filer begins.
type SchemaError struct {
	msg string
}

func (e *SchemaError) Error() string { return e.msg }

// NewSchemaError builds a SchemaError from a format string.
func NewSchemaError(format string, args ...any) error {
	return &SchemaError{msg: fmt.Sprintf(format, args...)}
}

// IsSchemaError reports whether any error in the chain is a SchemaError.
func IsSchemaError(err error) bool {
	var target *SchemaError
	return errors.As(err, &target)
}
