package errors

import (
	"context"
	"errors"
	"fmt"
)

// Completion and agent error kinds

var (
	// ErrInvalidInput indicates a malformed prompt or options, rejected before any network call
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates no rate-limit slot became available within the wait budget
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates a provider call exceeded its per-attempt deadline
	ErrTimeout = errors.New("operation timeout")

	// ErrProviderUnavailable indicates the provider kept failing after all retry attempts
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrResponseValidationFailed indicates a provider response was rejected by the content checks
	ErrResponseValidationFailed = errors.New("response validation failed")

	// ErrUnsupportedOperation indicates a completion was requested from the deterministic model
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrInternal indicates an unexpected failure in the deterministic path
	ErrInternal = errors.New("internal error")
)

// Resource errors

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrCanceled indicates the caller abandoned the operation
	ErrCanceled = errors.New("operation canceled")
)

// Kind classifies an error into one of the kinds callers branch on.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindRateLimited
	KindTimeout
	KindProviderUnavailable
	KindResponseValidationFailed
	KindUnsupportedOperation
	KindInternal
	KindNotFound
	KindCanceled
)

var kindNames = map[Kind]string{
	KindUnknown:                  "unknown",
	KindInvalidInput:             "invalid_input",
	KindRateLimited:              "rate_limited",
	KindTimeout:                  "timeout",
	KindProviderUnavailable:      "provider_unavailable",
	KindResponseValidationFailed: "response_validation_failed",
	KindUnsupportedOperation:     "unsupported_operation",
	KindInternal:                 "internal_error",
	KindNotFound:                 "not_found",
	KindCanceled:                 "canceled",
}

// String returns the snake_case name used in logs and metric labels
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Sentinel returns the sentinel error for the kind, or nil for KindUnknown
func (k Kind) Sentinel() error {
	switch k {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindRateLimited:
		return ErrRateLimited
	case KindTimeout:
		return ErrTimeout
	case KindProviderUnavailable:
		return ErrProviderUnavailable
	case KindResponseValidationFailed:
		return ErrResponseValidationFailed
	case KindUnsupportedOperation:
		return ErrUnsupportedOperation
	case KindInternal:
		return ErrInternal
	case KindNotFound:
		return ErrNotFound
	case KindCanceled:
		return ErrCanceled
	default:
		return nil
	}
}

// Kinded is implemented by errors that carry an authoritative kind, such as a
// completion failure wrapping the cause of its last attempt.
type Kinded interface {
	ErrorKind() Kind
}

// KindOf maps err to its kind by walking the wrap chain.
// A Kinded error decides for itself; otherwise caller cancellation is checked
// first so a canceled retry loop is never reported as a timeout.
func KindOf(err error) Kind {
	var kinded Kinded
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}

	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrProviderUnavailable):
		return KindProviderUnavailable
	case errors.Is(err, ErrResponseValidationFailed):
		return KindResponseValidationFailed
	case errors.Is(err, ErrUnsupportedOperation):
		return KindUnsupportedOperation
	case errors.Is(err, ErrInternal):
		return KindInternal
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindUnknown
	}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// Unwrap makes every validation error an ErrInvalidInput
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// MultiError wraps multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("multiple errors (%d): %v", len(m.Errors), m.Errors[0])
}

// Unwrap exposes the collected errors to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
