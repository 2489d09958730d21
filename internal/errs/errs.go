// Package errs holds the error kinds shared by every component: malformed input and
// transient storage failures. Business-rule violations live next to the component that
// raises them.
package errs

import (
	"errors"
	"fmt"
)

// ErrStorageUnavailable marks a transient storage failure. Callers may retry.
var ErrStorageUnavailable = errors.New("storage unavailable")

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// storageError wraps a driver error so that errors.Is(err, ErrStorageUnavailable) holds
// while the original error stays reachable.
type storageError struct {
	err error
}

func (e *storageError) Error() string { return "storage unavailable: " + e.err.Error() }

func (e *storageError) Unwrap() []error { return []error{ErrStorageUnavailable, e.err} }

// Storage wraps err as a transient storage failure. Nil stays nil and already-wrapped
// errors are returned unchanged.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return &storageError{err: err}
}

// IsRetryable reports whether err is a transient storage failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
