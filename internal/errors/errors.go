package errors

import (
	"errors"
	"fmt"
	"time"
)

// Base error types
var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConnectionFailed = errors.New("connection failed")
	ErrInternalError    = errors.New("internal error")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeConnection ErrorType = "connection"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
)

// StoreError is a structured error for data-layer operations. Op names the
// failing operation (e.g. "agents.get"), Resource identifies the record when
// one is involved.
type StoreError struct {
	Type      ErrorType
	Op        string
	Resource  string
	Err       error
	Timestamp time.Time
}

func (e *StoreError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Resource, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is matching against the base error types.
func (e *StoreError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrNotFound:
		return e.Type == ErrorTypeNotFound
	case ErrUnauthorized, ErrForbidden:
		return e.Type == ErrorTypeAuth
	case ErrConflict:
		return e.Type == ErrorTypeConflict
	case ErrInvalidInput:
		return e.Type == ErrorTypeValidation
	case ErrConnectionFailed:
		return e.Type == ErrorTypeConnection
	}

	return errors.Is(e.Err, target)
}

// NewStoreError creates a new StoreError
func NewStoreError(errorType ErrorType, op, resource string, err error) *StoreError {
	return &StoreError{
		Type:      errorType,
		Op:        op,
		Resource:  resource,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// NotFound wraps a missing-record condition for the given resource.
func NotFound(op, resource string) error {
	return NewStoreError(ErrorTypeNotFound, op, resource, ErrNotFound)
}

// Conflict wraps a duplicate-record condition for the given resource.
func Conflict(op, resource string) error {
	return NewStoreError(ErrorTypeConflict, op, resource, ErrConflict)
}

// Validation wraps an invalid-input condition.
func Validation(op string, err error) error {
	return NewStoreError(ErrorTypeValidation, op, "", err)
}
