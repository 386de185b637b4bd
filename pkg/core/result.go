package core

import (
	"time"
)

// EventRecord is one dispatched pointer event as observed by a recorder.
type EventRecord struct {
	Name   string        `json:"name"`
	Target string        `json:"target"` // Path of the resolved element
	X      int           `json:"x"`
	Y      int           `json:"y"`
	At     time.Duration `json:"at"` // Offset from flow start
}

// StepResult captures the complete outcome of executing a single step
type StepResult struct {
	// Identity
	Index   int    `json:"index"`   // 0-based position in flow
	Command string `json:"command"` // Command type: tap, move, assertEvents, etc.
	Label   string `json:"label,omitempty"`

	// Status
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Output
	Message string        `json:"message,omitempty"` // Human-readable explanation
	Events  []EventRecord `json:"events,omitempty"`  // Events dispatched while the step ran

	// Error Details
	Error string `json:"error,omitempty"` // Technical error message
}

// FlowResult captures the complete outcome of executing a flow
type FlowResult struct {
	// Identity
	Name     string   `json:"name"`
	FilePath string   `json:"filePath"`
	Tags     []string `json:"tags,omitempty"`

	// Status (aggregated from steps)
	Status StepStatus `json:"status"`

	// Timing
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	// Results
	Steps  []StepResult  `json:"steps"`
	Events []EventRecord `json:"events"`

	// Summary (computed)
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
	WarnedSteps  int `json:"warnedSteps"`

	// Error info (if flow failed)
	Error string `json:"error,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (f *FlowResult) ComputeSummary() {
	f.TotalSteps = len(f.Steps)
	f.PassedSteps = 0
	f.FailedSteps = 0
	f.SkippedSteps = 0
	f.WarnedSteps = 0

	for _, step := range f.Steps {
		switch step.Status {
		case StatusPassed:
			f.PassedSteps++
		case StatusFailed, StatusErrored:
			f.FailedSteps++
		case StatusSkipped:
			f.SkippedSteps++
		case StatusWarned:
			f.WarnedSteps++
		}
	}
}

// AggregateStatus determines the flow status from step results
// Rules:
// - Any failed/errored step → StatusFailed
// - All passed with some warned → StatusWarned
// - Otherwise → StatusPassed
func (f *FlowResult) AggregateStatus() StepStatus {
	warned := false
	for _, step := range f.Steps {
		switch step.Status {
		case StatusFailed, StatusErrored:
			return StatusFailed
		case StatusWarned:
			warned = true
		}
	}
	if warned {
		return StatusWarned
	}
	return StatusPassed
}
