package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError_Error(t *testing.T) {
	err := &ExecutionError{
		Category: ErrCategoryDispatch,
		Code:     "test_error",
		Message:  "test message",
	}

	if got := err.Error(); got != "test message" {
		t.Errorf("Error() = %q, want %q", got, "test message")
	}
}

func TestExecutionError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Category: ErrCategoryDispatch,
		Code:     "test_error",
		Message:  "test message",
		Cause:    cause,
	}

	got := err.Error()
	if !strings.Contains(got, "test message") {
		t.Errorf("Error() = %q, should contain 'test message'", got)
	}
	if !strings.Contains(got, "underlying error") {
		t.Errorf("Error() = %q, should contain 'underlying error'", got)
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &ExecutionError{
		Message: "wrapper",
		Cause:   cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("Unwrap() = %v, want %v", got, cause)
	}
}

func TestExecutionError_WithCause(t *testing.T) {
	original := ErrNoTargetAtCoordinate
	cause := errors.New("custom cause")

	newErr := original.WithCause(cause)

	if newErr.Cause != cause {
		t.Error("WithCause() did not set cause")
	}
	if newErr.Code != original.Code {
		t.Error("WithCause() changed code")
	}
	if original.Cause != nil {
		t.Error("WithCause() modified original error")
	}
}

func TestExecutionError_WithMessage(t *testing.T) {
	original := ErrTimeout
	newErr := original.WithMessage("custom timeout message")

	if newErr.Message != "custom timeout message" {
		t.Errorf("Message = %q, want 'custom timeout message'", newErr.Message)
	}
	if newErr.Code != original.Code {
		t.Error("WithMessage() changed code")
	}
	if original.Message == "custom timeout message" {
		t.Error("WithMessage() modified original error")
	}
}

func TestExecutionError_WithDetails(t *testing.T) {
	original := &ExecutionError{
		Code:    "test",
		Message: "test",
		Details: map[string]interface{}{"existing": "value"},
	}

	newErr := original.WithDetails(map[string]interface{}{
		"x": 10,
		"y": 20,
	})

	if newErr.Details["x"] != 10 {
		t.Error("WithDetails() did not add new details")
	}
	if newErr.Details["existing"] != "value" {
		t.Error("WithDetails() did not preserve existing details")
	}
	if _, ok := original.Details["x"]; ok {
		t.Error("WithDetails() modified original error")
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err      *ExecutionError
		category ErrorCategory
		code     string
	}{
		{ErrNoTargetAtCoordinate, ErrCategoryDispatch, "no_target_at_coordinate"},
		{ErrInvalidGestureArguments, ErrCategoryArguments, "invalid_gesture_arguments"},
		{ErrTargetNotFound, ErrCategoryAssertion, "target_not_found"},
		{ErrAssertionFailed, ErrCategoryAssertion, "assertion_failed"},
		{ErrTimeout, ErrCategoryTimeout, "timeout"},
		{ErrInvalidConfig, ErrCategoryConfig, "invalid_config"},
		{ErrMissingRequired, ErrCategoryConfig, "missing_required"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Category != tt.category {
				t.Errorf("Category = %s, want %s", tt.err.Category, tt.category)
			}
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Message == "" {
				t.Error("Message should not be empty")
			}
		})
	}
}

func TestNewExecutionError(t *testing.T) {
	err := NewExecutionError(ErrCategoryConfig, "custom_error", "custom message")

	if err.Category != ErrCategoryConfig {
		t.Errorf("Category = %s, want %s", err.Category, ErrCategoryConfig)
	}
	if err.Code != "custom_error" {
		t.Errorf("Code = %s, want 'custom_error'", err.Code)
	}
	if err.Message != "custom message" {
		t.Errorf("Message = %s, want 'custom message'", err.Message)
	}
}

func TestExecutionError_ErrorsIs(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrTimeout.WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find the cause")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is() should match the predefined error by code")
	}
	if errors.Is(err, ErrNoTargetAtCoordinate) {
		t.Error("errors.Is() should not match a different code")
	}
}

func TestExecutionError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("tap start: %w", ErrNoTargetAtCoordinate.WithDetails(map[string]interface{}{"x": -1}))

	if !errors.Is(err, ErrNoTargetAtCoordinate) {
		t.Error("errors.Is() should see through fmt.Errorf wrapping")
	}
	if got := CategoryOf(err); got != ErrCategoryDispatch {
		t.Errorf("CategoryOf() = %s, want dispatch", got)
	}
	if got := CategoryOf(errors.New("plain")); got != ErrCategoryNone {
		t.Errorf("CategoryOf(plain) = %s, want none", got)
	}
}
