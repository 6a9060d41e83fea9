package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input. It aborts an optimization run.
	ErrValidation = errors.New("validation error")
	// ErrExternalService marks a failed travel-time provider call. It is recovered locally.
	ErrExternalService = errors.New("external service error")
	ErrNotFound        = errors.New("not found")
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field string
	Msg   string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ExternalServiceError wraps a provider failure with the operation that produced it.
type ExternalServiceError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }
