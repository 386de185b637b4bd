package core

import "errors"

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion failed (expected events didn't occur)
	StatusErrored                   // Unexpected error (dispatch, timeout, bad arguments)
	StatusSkipped                   // Previous step failed
	StatusWarned                    // Optional step failed (non-blocking)
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	case StatusWarned:
		return "warned"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped, StatusWarned:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success (passed or warned)
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone      ErrorCategory = iota // No error
	ErrCategoryAssertion                      // Target not found, recorded events don't match
	ErrCategoryTimeout                        // Gesture did not complete in time
	ErrCategoryConfig                         // Invalid configuration, missing required field
	ErrCategoryDispatch                       // Hit test found nothing to dispatch on
	ErrCategoryArguments                      // Gesture called with unusable arguments
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryDispatch:
		return "dispatch"
	case ErrCategoryArguments:
		return "arguments"
	default:
		return "unknown"
	}
}

// CategoryOf returns the category of err if it wraps an ExecutionError.
func CategoryOf(err error) ErrorCategory {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryNone
}
