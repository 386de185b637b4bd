// Package report provides JSON-based run reporting.
//
// Layout of a report directory:
//   - report.json: the whole run, with every flow's steps and event trace
//   - report.html: optional human-readable rendering of the same data
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
	StatusWarned  Status = "warned"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s != StatusPending && s != StatusRunning
}

// Report is the content of report.json.
type Report struct {
	Version   string    `json:"version"`
	Status    Status    `json:"status"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Summary   Summary   `json:"summary"`
	Flows     []Flow    `json:"flows"`
}

// Summary contains aggregated flow counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Warned  int `json:"warned"`
}

// Flow is one executed flow.
type Flow struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SourceFile string    `json:"sourceFile"`
	Tags       []string  `json:"tags,omitempty"`
	Status     Status    `json:"status"`
	StartTime  time.Time `json:"startTime"`
	Duration   int64     `json:"duration"` // milliseconds
	Steps      []Step    `json:"steps"`
	Events     []Event   `json:"events"` // Full trace, in dispatch order
	Error      string    `json:"error,omitempty"`
}

// Step is one executed command of a flow.
type Step struct {
	Index    int    `json:"index"`
	Type     string `json:"type"`
	Label    string `json:"label,omitempty"`
	YAML     string `json:"yaml,omitempty"` // Human-readable description of the step
	Status   Status `json:"status"`
	Duration int64  `json:"duration"` // milliseconds
	Events   int    `json:"events"`   // Number of events dispatched while it ran
	Error    *Error `json:"error,omitempty"`
}

// Event is one dispatched pointer event.
type Event struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	At     int64  `json:"at"` // milliseconds since flow start
}

// Error contains error details.
type Error struct {
	Type    string `json:"type"` // assertion, timeout, dispatch, arguments, config, unknown
	Message string `json:"message"`
}
