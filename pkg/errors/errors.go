// Package errors defines the error taxonomy shared by the filter packages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// UnknownFieldError indicates a field path (or an entity type) that does not
// resolve against the registered schema.
type UnknownFieldError struct {
	Entity string
	Field  string
}

func (e *UnknownFieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("unknown entity type '%s'", e.Entity)
	}
	return fmt.Sprintf("unknown field '%s' on '%s'", e.Field, e.Entity)
}

// ValidationError indicates a submission that cannot be saved.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError indicates a filter set that does not exist or is not owned by
// the requesting user.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ErrUnknownField creates an UnknownFieldError.
func ErrUnknownField(entity, field string) *UnknownFieldError {
	return &UnknownFieldError{Entity: entity, Field: field}
}

// ErrUnknownEntity creates an UnknownFieldError for a missing entity type.
func ErrUnknownEntity(entity string) *UnknownFieldError {
	return &UnknownFieldError{Entity: entity}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

func IsUnknownField(err error) bool {
	var e *UnknownFieldError
	return stderrors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return stderrors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return stderrors.As(err, &e)
}
