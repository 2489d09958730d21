package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestStorageWrapsAndKeepsCause(t *testing.T) {
	cause := context.DeadlineExceeded
	err := fmt.Errorf("adjust balance: %w", Storage(cause))

	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cause to stay reachable, got %v", err)
	}
	if Storage(nil) != nil {
		t.Fatalf("expected nil for nil input")
	}
	wrapped := Storage(cause)
	if Storage(wrapped) != wrapped {
		t.Fatalf("expected already-wrapped error to be returned unchanged")
	}
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("create account: %w", Invalid("email", "missing @"))

	if !IsValidation(err) {
		t.Fatalf("expected validation error")
	}
	if IsRetryable(err) {
		t.Fatalf("validation errors must not be retryable")
	}
	if got := Invalid("", "empty body").Error(); got != "invalid input: empty body" {
		t.Fatalf("unexpected message %q", got)
	}
}
