package model

import (
	"errors"
	"fmt"
)

// Domain errors shared by repositories, services and handlers.
var (
	// ErrNotFound covers both missing entities and entities owned by someone else.
	ErrNotFound          = errors.New("not found")
	ErrAttemptClosed     = errors.New("attempt is already completed")
	ErrAttemptOpen       = errors.New("attempt is not completed yet")
	ErrAttemptInProgress = errors.New("an attempt for this test is already in progress")
	ErrValidation        = errors.New("validation failed")
	ErrStore             = errors.New("store unavailable")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError wraps a persistence failure. It is safe to retry RecordAnswer and
// SubmitAttempt after one.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err as a StoreError for op.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}
