package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/devicelab-dev/virtual-pointer/pkg/clock"
	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/dom"
	"github.com/devicelab-dev/virtual-pointer/pkg/flow"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// testScene is a mouse-only board: #card (with #label inside) and #drop.
const testScene = `
viewport:
  width: 400
  height: 300
elements:
  - type: body
    bounds: {x: 0, y: 0, width: 400, height: 300}
    children:
      - id: card
        class: card
        bounds: {x: 100, y: 100, width: 50, height: 50}
        children:
          - id: label
            type: span
            bounds: {x: 110, y: 110, width: 10, height: 10}
      - id: drop
        bounds: {x: 300, y: 200, width: 60, height: 60}
`

func newDoc(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.ParseScene([]byte(testScene))
	if err != nil {
		t.Fatalf("ParseScene() error: %v", err)
	}
	return doc
}

func parseFlow(t *testing.T, yaml string) *flow.Flow {
	t.Helper()
	f, err := flow.Parse([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	return f
}

// runFlow runs yaml against the test scene on a fake clock.
func runFlow(t *testing.T, yaml string, cfg RunnerConfig) *core.FlowResult {
	t.Helper()
	if cfg.Clock == nil {
		cfg.Clock = clock.NewFake(epoch)
	}
	res, err := New(cfg).Run(context.Background(), parseFlow(t, yaml), newDoc(t))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return res
}

func eventNames(events []core.EventRecord) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Name
	}
	return out
}

func boolPtr(b bool) *bool { return &b }

func TestRunner_Run_AllPassed(t *testing.T) {
	res := runFlow(t, `
- tap: "#card"
- assertEvents:
    name: start
    target: "#card"
    count: 1
- move:
    x: 20
    y: 0
    duration: 10
- assertEvents:
    name: stop
    count: 1
    last: {x: 20, y: 0}
- assertEvents:
    name: click
    count: 0
    all: true
`, RunnerConfig{})

	if res.Status != core.StatusPassed {
		t.Fatalf("Status = %s, want passed (error: %s)", res.Status, res.Error)
	}
	if res.TotalSteps != 5 || res.PassedSteps != 5 {
		t.Errorf("steps = %d total / %d passed, want 5/5", res.TotalSteps, res.PassedSteps)
	}
	if res.Name != "test" {
		t.Errorf("Name = %q, want test", res.Name)
	}

	tap := res.Steps[0]
	if got := strings.Join(eventNames(tap.Events), ","); got != "mousedown,mouseup" {
		t.Errorf("tap events = %s", got)
	}
	if !strings.HasSuffix(tap.Events[0].Target, "#card") {
		t.Errorf("tap target = %q, want the card", tap.Events[0].Target)
	}
	if tap.Events[0].X != 100 || tap.Events[0].Y != 100 {
		t.Errorf("tap at (%d, %d), want (100, 100)", tap.Events[0].X, tap.Events[0].Y)
	}

	move := res.Steps[2]
	if move.Duration != 11*time.Millisecond {
		t.Errorf("move duration = %s, want 11ms", move.Duration)
	}
	last := res.Events[len(res.Events)-1]
	if last.Name != dom.EventMouseUp || last.At != 11*time.Millisecond {
		t.Errorf("last event = %s at %s, want mouseup at 11ms", last.Name, last.At)
	}
	if len(res.Events) != len(tap.Events)+len(move.Events) {
		t.Errorf("flow trace has %d events, steps recorded %d", len(res.Events), len(tap.Events)+len(move.Events))
	}
}

func TestRunner_Run_AssertionFailureSkipsRest(t *testing.T) {
	res := runFlow(t, `
- tap: "#card"
- assertEvents:
    name: click
    count: 1
- tap: "#drop"
`, RunnerConfig{})

	if res.Status != core.StatusFailed {
		t.Fatalf("Status = %s, want failed", res.Status)
	}
	if res.Steps[1].Status != core.StatusFailed {
		t.Errorf("assertion status = %s, want failed", res.Steps[1].Status)
	}
	if res.Steps[1].Category != core.ErrCategoryAssertion {
		t.Errorf("assertion category = %s, want assertion", res.Steps[1].Category)
	}
	if !strings.Contains(res.Steps[1].Error, "expected 1 click events, got 0") {
		t.Errorf("assertion error = %q", res.Steps[1].Error)
	}
	if res.Steps[2].Status != core.StatusSkipped {
		t.Errorf("step after failure = %s, want skipped", res.Steps[2].Status)
	}
	if res.FailedSteps != 1 || res.SkippedSteps != 1 || res.PassedSteps != 1 {
		t.Errorf("summary = %d passed / %d failed / %d skipped", res.PassedSteps, res.FailedSteps, res.SkippedSteps)
	}
	if res.Error != res.Steps[1].Error {
		t.Errorf("flow error = %q, want the failing step's", res.Error)
	}
}

func TestRunner_Run_OptionalStepWarns(t *testing.T) {
	res := runFlow(t, `
- click: "#card"
- assertEvents:
    name: stop
    optional: true
- assertEvents:
    name: click
    all: true
`, RunnerConfig{})

	if res.Steps[1].Status != core.StatusWarned {
		t.Errorf("optional step = %s, want warned", res.Steps[1].Status)
	}
	if res.Steps[2].Status != core.StatusPassed {
		t.Errorf("step after optional failure = %s, want passed", res.Steps[2].Status)
	}
	if res.Status != core.StatusWarned {
		t.Errorf("Status = %s, want warned", res.Status)
	}
}

func TestRunner_Run_DispatchError(t *testing.T) {
	res := runFlow(t, `
- setPosition:
    x: 500
    y: 500
    autoReset: false
- tapStart
`, RunnerConfig{})

	step := res.Steps[1]
	if step.Status != core.StatusErrored {
		t.Fatalf("tapStart status = %s, want errored", step.Status)
	}
	if step.Category != core.ErrCategoryDispatch {
		t.Errorf("category = %s, want dispatch", step.Category)
	}
	if res.Status != core.StatusFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
}

func TestRunner_Run_TargetNotFound(t *testing.T) {
	res := runFlow(t, `
- tap: "#missing"
- tap:
    query: ".card"
    index: 3
`, RunnerConfig{})

	if res.Steps[0].Status != core.StatusFailed || res.Steps[0].Category != core.ErrCategoryAssertion {
		t.Errorf("missing target = %s/%s, want failed/assertion", res.Steps[0].Status, res.Steps[0].Category)
	}
	if len(res.Events) != 0 {
		t.Errorf("events dispatched for a missing target: %v", eventNames(res.Events))
	}
}

func TestRunner_Run_PressWaitsOnFakeClock(t *testing.T) {
	res := runFlow(t, `
- press:
    query: "#card"
    duration: 200
`, RunnerConfig{})

	if res.Status != core.StatusPassed {
		t.Fatalf("Status = %s, want passed (error: %s)", res.Status, res.Error)
	}
	if got := res.Steps[0].Duration; got != 200*time.Millisecond {
		t.Errorf("press duration = %s, want 200ms", got)
	}
	if len(res.Events) != 2 || res.Events[1].At != 200*time.Millisecond {
		t.Errorf("events = %+v, want mouseup at 200ms", res.Events)
	}
}

func TestRunner_Run_DurationsFromFlowConfig(t *testing.T) {
	res := runFlow(t, `
durations:
  press: 100
---
- press: "#card"
`, RunnerConfig{Durations: flow.Durations{Press: 40}})

	// Default press holds for PressDuration×1.5
	if got := res.Steps[0].Duration; got != 150*time.Millisecond {
		t.Errorf("press duration = %s, want 150ms", got)
	}
}

func TestRunner_Run_DoubleTap(t *testing.T) {
	res := runFlow(t, `
- doubleTap:
    query: "#drop"
    duration: 30
- assertEvents:
    name: start
    target: "#drop"
    count: 2
`, RunnerConfig{})

	if res.Status != core.StatusPassed {
		t.Fatalf("Status = %s, want passed (error: %s)", res.Status, res.Error)
	}
	if res.Events[2].At != 30*time.Millisecond {
		t.Errorf("second tap at %s, want 30ms", res.Events[2].At)
	}
}

func TestRunner_Run_TouchOverride(t *testing.T) {
	res := runFlow(t, `
- tap: "#card"
- assertEvents:
    name: start
    count: 1
`, RunnerConfig{Touch: boolPtr(true)})

	if res.Status != core.StatusPassed {
		t.Fatalf("Status = %s, want passed (error: %s)", res.Status, res.Error)
	}
	if got := strings.Join(eventNames(res.Events), ","); got != "touchstart,touchend" {
		t.Errorf("events = %s, want touchstart,touchend", got)
	}
}

func TestRunner_Run_FlowTouchWinsOverRunner(t *testing.T) {
	res := runFlow(t, `
touch: false
---
- tap: "#card"
`, RunnerConfig{Touch: boolPtr(true)})

	if got := eventNames(res.Events); got[0] != dom.EventMouseDown {
		t.Errorf("events = %v, want mouse events", got)
	}
}

func TestRunner_Run_TargetMatchesDescendant(t *testing.T) {
	res := runFlow(t, `
- tap: "#label"
- assertEvents:
    name: mousedown
    target: "#card"
    count: 1
- assertEvents:
    target: "#drop"
    count: 0
    all: true
`, RunnerConfig{})

	if res.Status != core.StatusPassed {
		t.Fatalf("Status = %s, want passed (error: %s)", res.Status, res.Error)
	}
	if !strings.HasSuffix(res.Events[0].Target, "#label") {
		t.Errorf("target = %q, want the label", res.Events[0].Target)
	}
}

func TestRunner_Run_DragToElement(t *testing.T) {
	res := runFlow(t, `
- setPosition:
    x: 0
    y: 0
    autoReset: false
- drag:
    query: "#drop"
    duration: 20
- assertEvents:
    name: stop
    target: "#drop"
    last: {x: 300, y: 200}
`, RunnerConfig{})

	if res.Status != core.StatusPassed {
		t.Fatalf("Status = %s, want passed (error: %s)", res.Status, res.Error)
	}
	moves := 0
	for _, ev := range res.Steps[1].Events {
		if ev.Name == dom.EventMouseMove {
			moves++
		}
	}
	if moves < 2 {
		t.Errorf("drag dispatched %d moves, want intermediates", moves)
	}
}

func TestRunner_Run_FlickOutOfBoundsErrors(t *testing.T) {
	res := runFlow(t, `
- setPosition:
    x: 100
    y: 100
    autoReset: false
- flick:
    query: "#drop"
`, RunnerConfig{})

	// (100,100) + (300,200) leaves the viewport
	if res.Steps[1].Status != core.StatusErrored || res.Steps[1].Category != core.ErrCategoryDispatch {
		t.Errorf("flick = %s/%s, want errored/dispatch", res.Steps[1].Status, res.Steps[1].Category)
	}
}

func TestRunner_Run_Variables(t *testing.T) {
	res := runFlow(t, `
env:
  TARGET: "#drop"
---
- tap: "${TARGET}"
- defineVariables:
    env:
      OTHER: "#card"
- tap: "$OTHER"
- assertEvents:
    name: start
    target: "#card"
    count: 1
`, RunnerConfig{})

	if res.Status != core.StatusPassed {
		t.Fatalf("Status = %s, want passed (error: %s)", res.Status, res.Error)
	}
	if !strings.HasSuffix(res.Events[0].Target, "#drop") {
		t.Errorf("first tap target = %q, want #drop", res.Events[0].Target)
	}
}

func TestRunner_Run_Repeat(t *testing.T) {
	res := runFlow(t, `
- repeat:
    times: 3
    commands:
      - tap: "#card"
- assertEvents:
    name: start
    count: 3
`, RunnerConfig{})

	if res.Status != core.StatusPassed {
		t.Fatalf("Status = %s, want passed (error: %s)", res.Status, res.Error)
	}
	if len(res.Steps[0].Events) != 6 {
		t.Errorf("repeat recorded %d events, want 6", len(res.Steps[0].Events))
	}
}

func TestRunner_Run_RepeatInvalidTimes(t *testing.T) {
	res := runFlow(t, `
- repeat:
    times: many
    commands:
      - tap
`, RunnerConfig{})

	if res.Steps[0].Status != core.StatusErrored || res.Steps[0].Category != core.ErrCategoryConfig {
		t.Errorf("repeat = %s/%s, want errored/config", res.Steps[0].Status, res.Steps[0].Category)
	}
}

func TestRunner_Run_ScriptsSeePointer(t *testing.T) {
	res := runFlow(t, `
- tap: "#drop"
- evalScript: "${output.where = pointer.x + ',' + pointer.y}"
- assertTrue: "${output.where == '300,200' && pointer.startEvent == 'mousedown'}"
- assertTrue: "${pointer.x == 0}"
`, RunnerConfig{})

	if res.Steps[2].Status != core.StatusPassed {
		t.Errorf("assertTrue = %s (%s), want passed", res.Steps[2].Status, res.Steps[2].Error)
	}
	if res.Steps[3].Status != core.StatusFailed {
		t.Errorf("false assertTrue = %s, want failed", res.Steps[3].Status)
	}
}

func TestRunner_Run_Wait(t *testing.T) {
	res := runFlow(t, `
- wait: 100
- tap: "#card"
`, RunnerConfig{})

	if got := res.Steps[0].Duration; got != 100*time.Millisecond {
		t.Errorf("wait duration = %s, want 100ms", got)
	}
	if res.Events[0].At != 100*time.Millisecond {
		t.Errorf("tap at %s, want 100ms", res.Events[0].At)
	}
}

func TestRunner_Run_StepTimeoutOnFakeClock(t *testing.T) {
	res := runFlow(t, `
- press:
    query: "#card"
    duration: 5000
    timeout: 100
`, RunnerConfig{})

	step := res.Steps[0]
	if step.Status != core.StatusErrored || step.Category != core.ErrCategoryTimeout {
		t.Errorf("press = %s/%s, want errored/timeout", step.Status, step.Category)
	}
}

func TestRunner_Run_TimedOutGestureIsCancelled(t *testing.T) {
	res := runFlow(t, `
- press:
    query: "#card"
    duration: 500
    optional: true
- tap: "#drop"
- wait: 1000
`, RunnerConfig{StepTimeout: 100 * time.Millisecond})

	if res.Steps[0].Status != core.StatusWarned {
		t.Errorf("press = %s, want warned", res.Steps[0].Status)
	}
	for i, s := range res.Steps[1:] {
		if s.Status != core.StatusPassed {
			t.Errorf("step %d = %s, want passed", i+1, s.Status)
		}
	}

	want := []string{dom.EventMouseDown, dom.EventMouseDown, dom.EventMouseUp}
	got := eventNames(res.Events)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v, want %v (the abandoned press must not lift later)", got, want)
	}
}

func TestRunner_Run_RealClock(t *testing.T) {
	f := parseFlow(t, `
- move:
    x: 5
    y: 5
    duration: 5
- assertEvents:
    name: stop
    last: {x: 5, y: 5}
`)
	res, err := New(RunnerConfig{Clock: clock.Real(), StepTimeout: 2 * time.Second}).Run(context.Background(), f, newDoc(t))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Status != core.StatusPassed {
		t.Errorf("Status = %s, want passed (error: %s)", res.Status, res.Error)
	}
}

func TestRunner_Run_Hooks(t *testing.T) {
	res := runFlow(t, `
onFlowStart:
  - defineVariables:
      env:
        START: "#card"
onFlowComplete:
  - tap: "#drop"
---
- tap: "${START}"
`, RunnerConfig{})

	if res.Status != core.StatusPassed {
		t.Fatalf("Status = %s, want passed (error: %s)", res.Status, res.Error)
	}
	if !strings.HasSuffix(res.Events[0].Target, "#card") {
		t.Errorf("target = %q, want #card", res.Events[0].Target)
	}
}

func TestRunner_Run_OnFlowStartFailure(t *testing.T) {
	res := runFlow(t, `
onFlowStart:
  - assertTrue: "${false}"
---
- tap: "#card"
- tap: "#drop"
`, RunnerConfig{})

	if res.Status != core.StatusFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
	if !strings.HasPrefix(res.Error, "onFlowStart failed") {
		t.Errorf("Error = %q", res.Error)
	}
	if res.SkippedSteps != 2 || len(res.Events) != 0 {
		t.Errorf("skipped = %d, events = %d; want 2 skipped, no events", res.SkippedSteps, len(res.Events))
	}
}

func TestRunner_Run_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(RunnerConfig{Clock: clock.NewFake(epoch)}).Run(ctx, parseFlow(t, "- tap\n- tap\n"), newDoc(t))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.SkippedSteps != 2 {
		t.Errorf("skipped = %d, want 2", res.SkippedSteps)
	}
	if res.Error != "execution cancelled" || res.Status != core.StatusFailed {
		t.Errorf("result = %s / %q", res.Status, res.Error)
	}
}

func TestRunner_Run_InvalidInput(t *testing.T) {
	r := New(RunnerConfig{})
	if _, err := r.Run(context.Background(), nil, newDoc(t)); !errors.Is(err, core.ErrMissingRequired) {
		t.Errorf("nil flow: err = %v, want ErrMissingRequired", err)
	}
	if _, err := r.Run(context.Background(), &flow.Flow{}, nil); !errors.Is(err, core.ErrMissingRequired) {
		t.Errorf("nil document: err = %v, want ErrMissingRequired", err)
	}
}

func TestRunner_Run_RemovesRecorder(t *testing.T) {
	doc := newDoc(t)
	f := parseFlow(t, "- tap: \"#card\"\n")
	r := New(RunnerConfig{Clock: clock.NewFake(epoch)})
	first, _ := r.Run(context.Background(), f, doc)
	second, _ := r.Run(context.Background(), f, doc)

	if len(first.Events) != 2 || len(second.Events) != 2 {
		t.Errorf("events = %d then %d, want 2 each", len(first.Events), len(second.Events))
	}
}

func TestRunner_Run_OnStepComplete(t *testing.T) {
	var descs []string
	res := runFlow(t, "- tap: \"#card\"\n- wait: 5\n", RunnerConfig{
		OnStepComplete: func(idx int, desc string, status core.StepStatus, durationMs int64, err string) {
			descs = append(descs, desc)
		},
	})
	if res.Status != core.StatusPassed {
		t.Fatalf("Status = %s", res.Status)
	}
	if strings.Join(descs, "|") != `tap: "#card"|wait: 5ms` {
		t.Errorf("callbacks = %q", descs)
	}
}

func TestRunner_RunAll(t *testing.T) {
	flows := []flow.Flow{
		*parseFlow(t, "name: one\n---\n- tap: \"#card\"\n"),
		*parseFlow(t, "name: two\n---\n- assertEvents:\n    name: click\n"),
		*parseFlow(t, "name: three\n---\n- tap: \"#drop\"\n"),
	}
	load := func(*flow.Flow) (*dom.Document, error) { return newDoc(t), nil }

	var mu sync.Mutex
	var ended []string
	r := New(RunnerConfig{
		Clock: clock.NewFake(epoch),
		OnFlowEnd: func(name string, status core.StepStatus, durationMs int64) {
			mu.Lock()
			ended = append(ended, name+"="+status.String())
			mu.Unlock()
		},
	})

	res := r.RunAll(context.Background(), flows, load)
	if res.TotalFlows != 3 || res.PassedFlows != 2 || res.FailedFlows != 1 {
		t.Errorf("flows = %d total / %d passed / %d failed", res.TotalFlows, res.PassedFlows, res.FailedFlows)
	}
	if res.Status != core.StatusFailed {
		t.Errorf("Status = %s, want failed", res.Status)
	}
	if strings.Join(ended, ",") != "one=passed,two=failed,three=passed" {
		t.Errorf("OnFlowEnd = %v", ended)
	}
}

func TestRunner_RunAll_StopOnFail(t *testing.T) {
	flows := []flow.Flow{
		*parseFlow(t, "- assertEvents:\n    name: click\n"),
		*parseFlow(t, "- tap\n"),
	}
	load := func(*flow.Flow) (*dom.Document, error) { return newDoc(t), nil }

	res := New(RunnerConfig{Clock: clock.NewFake(epoch), StopOnFail: true}).RunAll(context.Background(), flows, load)
	if res.Flows[1].Status != core.StatusSkipped {
		t.Errorf("second flow = %s, want skipped", res.Flows[1].Status)
	}
	if res.SkippedFlows != 1 {
		t.Errorf("SkippedFlows = %d, want 1", res.SkippedFlows)
	}
}

func TestRunner_RunAll_Parallel(t *testing.T) {
	var flows []flow.Flow
	for i := 0; i < 4; i++ {
		flows = append(flows, *parseFlow(t, "- tap: \"#card\"\n- assertEvents:\n    name: start\n    count: 1\n"))
	}
	load := func(*flow.Flow) (*dom.Document, error) { return newDoc(t), nil }

	res := New(RunnerConfig{Parallelism: 2}).RunAll(context.Background(), flows, load)
	if res.PassedFlows != 4 {
		for _, f := range res.Flows {
			t.Logf("flow %s: %s %s", f.Name, f.Status, f.Error)
		}
		t.Errorf("PassedFlows = %d, want 4", res.PassedFlows)
	}
}

func TestRunner_RunAll_LoadError(t *testing.T) {
	flows := []flow.Flow{*parseFlow(t, "- tap\n")}
	load := func(*flow.Flow) (*dom.Document, error) {
		return nil, errors.New("no such scene")
	}

	res := New(RunnerConfig{}).RunAll(context.Background(), flows, load)
	f := res.Flows[0]
	if f.Status != core.StatusFailed || !strings.Contains(f.Error, "no such scene") {
		t.Errorf("flow = %s / %q, want failed with the load error", f.Status, f.Error)
	}
	if f.SkippedSteps != 1 {
		t.Errorf("SkippedSteps = %d, want 1", f.SkippedSteps)
	}
}
