package report

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/virtual-pointer/pkg/core"
)

// Build assembles a report from flow results. start and end bound the run.
func Build(results []*core.FlowResult, start, end time.Time) *Report {
	r := &Report{
		Version:   Version,
		StartTime: start,
		EndTime:   end,
		Flows:     make([]Flow, 0, len(results)),
	}

	for i, res := range results {
		if res == nil {
			continue
		}
		r.Flows = append(r.Flows, buildFlow(i, res))
	}
	r.Summary = computeSummary(r.Flows)
	r.Status = runStatus(r.Summary)
	return r
}

func buildFlow(idx int, res *core.FlowResult) Flow {
	f := Flow{
		ID:         fmt.Sprintf("flow-%03d", idx),
		Name:       res.Name,
		SourceFile: res.FilePath,
		Tags:       res.Tags,
		Status:     statusOf(res.Status),
		StartTime:  res.StartTime,
		Duration:   res.Duration.Milliseconds(),
		Steps:      make([]Step, len(res.Steps)),
		Events:     make([]Event, len(res.Events)),
		Error:      res.Error,
	}

	for i, s := range res.Steps {
		step := Step{
			Index:    s.Index,
			Type:     s.Command,
			Label:    s.Label,
			YAML:     s.Message,
			Status:   statusOf(s.Status),
			Duration: s.Duration.Milliseconds(),
			Events:   len(s.Events),
		}
		if s.Error != "" {
			step.Error = &Error{Type: errorType(s.Category), Message: s.Error}
		}
		f.Steps[i] = step
	}

	for i, ev := range res.Events {
		f.Events[i] = Event{
			Name:   ev.Name,
			Target: ev.Target,
			X:      ev.X,
			Y:      ev.Y,
			At:     ev.At.Milliseconds(),
		}
	}
	return f
}

// statusOf maps an executor status to its report form.
func statusOf(s core.StepStatus) Status {
	switch s {
	case core.StatusPending:
		return StatusPending
	case core.StatusRunning:
		return StatusRunning
	case core.StatusPassed:
		return StatusPassed
	case core.StatusFailed:
		return StatusFailed
	case core.StatusErrored:
		return StatusErrored
	case core.StatusSkipped:
		return StatusSkipped
	case core.StatusWarned:
		return StatusWarned
	default:
		return StatusFailed
	}
}

func errorType(c core.ErrorCategory) string {
	if c == core.ErrCategoryNone {
		return "unknown"
	}
	return c.String()
}

func computeSummary(flows []Flow) Summary {
	s := Summary{Total: len(flows)}
	for _, f := range flows {
		switch f.Status {
		case StatusPassed:
			s.Passed++
		case StatusWarned:
			s.Warned++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// runStatus is failed when any flow failed, skipped when nothing ran, and
// passed otherwise.
func runStatus(s Summary) Status {
	switch {
	case s.Failed > 0:
		return StatusFailed
	case s.Total > 0 && s.Skipped == s.Total:
		return StatusSkipped
	default:
		return StatusPassed
	}
}
