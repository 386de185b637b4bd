package executor

import (
	"fmt"

	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/dom"
	"github.com/devicelab-dev/virtual-pointer/pkg/flow"
)

// assertEvents checks the recorded events against s. The window is every
// event since the previous assertEvents step, or the whole trace with All.
// The window advances even when the assertion fails.
func (fr *FlowRunner) assertEvents(s *flow.AssertEventsStep) error {
	var target *dom.Element
	if !s.Target.IsEmpty() {
		el, err := fr.resolve(s.Target)
		if err != nil {
			return err
		}
		target = el
	}
	name := fr.sim.Profile().Resolve(s.Name)

	fr.mu.Lock()
	from := fr.assertedAt
	if s.All {
		from = 0
	}
	window := fr.events[from:]
	fr.assertedAt = len(fr.events)
	var matched []recordedEvent
	for _, ev := range window {
		if name != "" && ev.Name != name {
			continue
		}
		if target != nil && !target.Contains(ev.el) {
			continue
		}
		matched = append(matched, ev)
	}
	fr.mu.Unlock()

	what := describeMatch(name, s.Target)
	switch {
	case s.Count != nil:
		if len(matched) != *s.Count {
			return assertionError(fmt.Sprintf("expected %d %s, got %d", *s.Count, what, len(matched)), window)
		}
	case s.MinCount > 0:
		if len(matched) < s.MinCount {
			return assertionError(fmt.Sprintf("expected at least %d %s, got %d", s.MinCount, what, len(matched)), window)
		}
	default:
		if len(matched) == 0 {
			return assertionError("expected "+what+", got none", window)
		}
	}

	if s.Last != nil {
		if len(matched) == 0 {
			return assertionError(fmt.Sprintf("expected last %s at (%d, %d), got none", what, s.Last.X, s.Last.Y), window)
		}
		last := matched[len(matched)-1]
		if last.X != s.Last.X || last.Y != s.Last.Y {
			return assertionError(fmt.Sprintf("expected last %s at (%d, %d), got (%d, %d)",
				what, s.Last.X, s.Last.Y, last.X, last.Y), window)
		}
	}
	return nil
}

func describeMatch(name string, target flow.Selector) string {
	what := "events"
	if name != "" {
		what = name + " events"
	}
	if !target.IsEmpty() {
		what += " on " + target.DescribeQuoted()
	}
	return what
}

func assertionError(msg string, window []recordedEvent) error {
	names := make([]string, len(window))
	for i, ev := range window {
		names[i] = ev.Name
	}
	return core.ErrAssertionFailed.WithMessage(msg).WithDetails(map[string]interface{}{
		"window": names,
	})
}
