package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/virtual-pointer/pkg/clock"
	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/dom"
	"github.com/devicelab-dev/virtual-pointer/pkg/flow"
	"github.com/devicelab-dev/virtual-pointer/pkg/logger"
	"github.com/devicelab-dev/virtual-pointer/pkg/pointer"
)

// fakeIdleLimit bounds how much fake time a single gesture may consume when
// no step or runner timeout is set.
const fakeIdleLimit = time.Minute

// recordedEvent keeps the element next to the report record so target
// assertions can match descendants.
type recordedEvent struct {
	core.EventRecord
	el *dom.Element
}

// FlowRunner executes a single flow against one document.
type FlowRunner struct {
	ctx    context.Context
	flow   *flow.Flow
	doc    *dom.Document
	config RunnerConfig
	clock  clock.Clock
	sim    *pointer.Simulator
	script *ScriptEngine
	start  time.Time

	mu         sync.Mutex
	events     []recordedEvent
	assertedAt int // Index of the first event not yet covered by an assertion
}

func newFlowRunner(ctx context.Context, f *flow.Flow, doc *dom.Document, cfg RunnerConfig) *FlowRunner {
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	return &FlowRunner{ctx: ctx, flow: f, doc: doc, config: cfg, clock: c}
}

// simulatorOptions merges runner defaults with the flow's own settings. The
// flow wins when both set a value.
func (fr *FlowRunner) simulatorOptions() []pointer.Option {
	opts := []pointer.Option{pointer.WithClock(fr.clock)}

	d := fr.config.Durations
	fd := fr.flow.Config.Durations
	if fd.Press > 0 {
		d.Press = fd.Press
	}
	if fd.DoubleTap > 0 {
		d.DoubleTap = fd.DoubleTap
	}
	if fd.Flick > 0 {
		d.Flick = fd.Flick
	}
	opts = append(opts, pointer.WithDurations(d.PressDuration(), d.DoubleTapDuration(), d.FlickDuration()))

	touch := fr.config.Touch
	if fr.flow.Config.Touch != nil {
		touch = fr.flow.Config.Touch
	}
	if touch != nil {
		opts = append(opts, pointer.WithProfile(pointer.ProfileFor(*touch)))
	}

	autoReset := fr.config.AutoReset
	if fr.flow.Config.AutoReset != nil {
		autoReset = fr.flow.Config.AutoReset
	}
	if autoReset != nil {
		opts = append(opts, pointer.WithAutoReset(*autoReset))
	}
	return opts
}

// Run executes the flow and returns the result.
func (fr *FlowRunner) Run() *core.FlowResult {
	fr.start = fr.clock.Now()
	result := &core.FlowResult{
		Name:      flowName(fr.flow),
		FilePath:  fr.flow.SourcePath,
		Tags:      fr.flow.Config.Tags,
		StartTime: fr.start,
	}

	if fr.flow.Config.Timeout > 0 {
		var cancel context.CancelFunc
		fr.ctx, cancel = context.WithTimeout(fr.ctx, time.Duration(fr.flow.Config.Timeout)*time.Millisecond)
		defer cancel()
	}

	scope := fr.config.Scope
	if scope == nil {
		scope = fr.doc
	}
	fr.sim = pointer.New(fr.doc, scope, fr.simulatorOptions()...)

	id := fr.doc.On(fr.doc.Root(), strings.Join(dom.PointerEvents, " "), fr.record, dom.SyntheticOnly())
	defer fr.doc.Off(id)

	fr.script = NewScriptEngine()
	defer fr.script.Close()
	fr.script.ImportSystemEnv()
	if fr.flow.SourcePath != "" {
		fr.script.SetFlowDir(filepath.Dir(fr.flow.SourcePath))
	}
	fr.script.SetVariables(fr.flow.Config.Env)
	fr.script.BindPointer(fr.sim)

	logger.Info("flow %s: start (%s profile, %d steps)", result.Name, fr.sim.StartEvent(), len(fr.flow.Steps))

	// onFlowComplete runs even when the flow failed
	defer func() {
		for _, step := range fr.flow.Config.OnFlowComplete {
			if err := fr.executeStep(step); err != nil {
				logger.Warn("flow %s: onFlowComplete %s: %v", result.Name, step.Describe(), err)
			}
		}
	}()

	if err := fr.runHooks(fr.flow.Config.OnFlowStart); err != nil {
		result.Error = fmt.Sprintf("onFlowStart failed: %v", err)
		for i, step := range fr.flow.Steps {
			result.Steps = append(result.Steps, skippedResult(i, step, fr.clock.Now()))
		}
		fr.finish(result)
		return result
	}

	failed := false
	for i, step := range fr.flow.Steps {
		if failed {
			result.Steps = append(result.Steps, skippedResult(i, step, fr.clock.Now()))
			continue
		}
		if fr.ctx.Err() != nil {
			result.Steps = append(result.Steps, skippedResult(i, step, fr.clock.Now()))
			if result.Error == "" {
				result.Error = "execution cancelled"
			}
			continue
		}

		sr := fr.runStep(i, step)
		result.Steps = append(result.Steps, sr)

		if fr.config.OnStepComplete != nil {
			fr.config.OnStepComplete(i, step.Describe(), sr.Status, sr.Duration.Milliseconds(), sr.Error)
		}

		if sr.Status == core.StatusFailed || sr.Status == core.StatusErrored {
			failed = true
			result.Error = sr.Error
		}
	}

	fr.finish(result)
	return result
}

func (fr *FlowRunner) runHooks(steps []flow.Step) error {
	for _, step := range steps {
		if err := fr.executeStep(step); err != nil && !step.IsOptional() {
			return fmt.Errorf("%s: %w", step.Describe(), err)
		}
	}
	return nil
}

func (fr *FlowRunner) finish(result *core.FlowResult) {
	fr.mu.Lock()
	result.Events = make([]core.EventRecord, len(fr.events))
	for i, ev := range fr.events {
		result.Events[i] = ev.EventRecord
	}
	fr.mu.Unlock()

	result.Duration = fr.clock.Now().Sub(fr.start)
	result.ComputeSummary()
	result.Status = result.AggregateStatus()
	if result.Error != "" && result.Status != core.StatusFailed {
		result.Status = core.StatusFailed
	}
	logger.Info("flow %s: %s in %s (%d events)", result.Name, result.Status, result.Duration, len(result.Events))
}

// runStep executes one top-level step and records its outcome.
func (fr *FlowRunner) runStep(idx int, step flow.Step) core.StepResult {
	sr := core.StepResult{
		Index:     idx,
		Command:   string(step.Type()),
		Label:     step.Label(),
		StartTime: fr.clock.Now(),
		Message:   step.Describe(),
	}

	before := fr.eventCount()
	err := fr.executeStep(step)
	sr.Duration = fr.clock.Now().Sub(sr.StartTime)
	sr.Events = fr.eventsSince(before)

	switch {
	case err == nil:
		sr.Status = core.StatusPassed
	case step.IsOptional():
		sr.Status = core.StatusWarned
	case core.CategoryOf(err) == core.ErrCategoryAssertion:
		sr.Status = core.StatusFailed
	default:
		sr.Status = core.StatusErrored
	}
	if err != nil {
		sr.Category = core.CategoryOf(err)
		sr.Error = err.Error()
		logger.Warn("step %d %s: %s: %v", idx, step.Describe(), sr.Status, err)
	} else {
		logger.Debug("step %d %s: passed in %s", idx, step.Describe(), sr.Duration)
	}
	return sr
}

func skippedResult(idx int, step flow.Step, now time.Time) core.StepResult {
	return core.StepResult{
		Index:     idx,
		Command:   string(step.Type()),
		Label:     step.Label(),
		Status:    core.StatusSkipped,
		StartTime: now,
		Message:   step.Describe(),
	}
}

// executeStep routes a step to its handler after expanding its variables.
func (fr *FlowRunner) executeStep(step flow.Step) error {
	step = fr.script.ExpandStep(step)

	switch s := step.(type) {
	// Pointer steps
	case *flow.PointerStep:
		return fr.executePointer(s)
	case *flow.PressStep:
		el, err := fr.resolve(s.Selector)
		if err != nil {
			return err
		}
		return fr.wait(fr.sim.Press(nil, ms(s.DurationMs), el), s.Timeout())
	case *flow.DoubleTapStep:
		el, err := fr.resolve(s.Selector)
		if err != nil {
			return err
		}
		return fr.wait(fr.sim.DoubleTap(nil, ms(s.DurationMs), el), s.Timeout())

	// Movement steps
	case *flow.MoveStep:
		return fr.executeMove(s)
	case *flow.SetPositionStep:
		fr.sim.SetPosition(s.X, s.Y)
		if s.AutoReset != nil {
			fr.sim.SetAutoReset(*s.AutoReset)
		}
		return nil

	// Assertions
	case *flow.AssertEventsStep:
		return fr.assertEvents(s)
	case *flow.AssertTrueStep:
		return fr.script.ExecuteAssertTrue(s)

	// Flow control and scripting
	case *flow.RepeatStep:
		return fr.executeRepeat(s)
	case *flow.RunScriptStep:
		return fr.script.ExecuteRunScript(s)
	case *flow.EvalScriptStep:
		return fr.script.ExecuteEvalScript(s)
	case *flow.DefineVariablesStep:
		return fr.script.ExecuteDefineVariables(s)
	case *flow.WaitStep:
		return fr.sleep(ms(s.DurationMs))
	}

	return core.ErrInvalidConfig.WithMessage("unsupported step type: " + string(step.Type()))
}

func (fr *FlowRunner) executePointer(s *flow.PointerStep) error {
	el, err := fr.resolve(s.Selector)
	if err != nil {
		return err
	}
	switch s.Type() {
	case flow.StepTapStart:
		return fr.sim.TapStart(el)
	case flow.StepTapEnd:
		return fr.sim.TapEnd(el)
	case flow.StepClick:
		return fr.sim.Click(el)
	case flow.StepTap:
		return fr.sim.Tap(el)
	}
	return core.ErrInvalidConfig.WithMessage("unsupported pointer step: " + string(s.Type()))
}

func (fr *FlowRunner) executeMove(s *flow.MoveStep) error {
	var dst pointer.Destination
	if s.HasDelta() {
		dst = pointer.By(s.Delta())
	} else {
		el, err := fr.resolve(s.Selector)
		if err != nil {
			return err
		}
		dst = pointer.ToElement(el)
	}

	d := ms(s.DurationMs)
	var g *pointer.Gesture
	switch s.Type() {
	case flow.StepDrag:
		g = fr.sim.Drag(dst, nil, d)
	case flow.StepFlick:
		g = fr.sim.Flick(dst, nil, d)
	default:
		g = fr.sim.Move(dst, d, nil)
	}
	return fr.wait(g, s.Timeout())
}

func (fr *FlowRunner) executeRepeat(s *flow.RepeatStep) error {
	times := fr.script.ParseInt(s.Times, -1)
	if times < 0 {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("repeat: invalid times %q", s.Times))
	}
	for i := 0; i < times; i++ {
		fr.script.SetVariable("REPEAT_INDEX", fmt.Sprintf("%d", i))
		for _, step := range s.Steps {
			if fr.ctx.Err() != nil {
				return core.ErrTimeout.WithMessage("repeat cancelled").WithCause(fr.ctx.Err())
			}
			if err := fr.executeStep(step); err != nil {
				if step.IsOptional() {
					logger.Warn("repeat %d: optional %s: %v", i, step.Describe(), err)
					continue
				}
				return fmt.Errorf("iteration %d: %s: %w", i, step.Describe(), err)
			}
		}
	}
	return nil
}

// resolve maps a selector to an element of the document. An empty selector
// resolves to nil, which the gestures read as "where the pointer is".
func (fr *FlowRunner) resolve(sel flow.Selector) (*dom.Element, error) {
	if sel.IsEmpty() {
		return nil, nil
	}
	expr := sel.Expression()
	if err := dom.ParseQuery(expr); err != nil {
		return nil, core.ErrTargetNotFound.WithMessage("invalid selector " + sel.DescribeQuoted()).WithCause(err)
	}
	all := fr.doc.FindAll(expr)
	if sel.Index < 0 || sel.Index >= len(all) {
		return nil, core.ErrTargetNotFound.WithDetails(map[string]interface{}{
			"selector": sel.Describe(),
			"matches":  len(all),
		})
	}
	return all[sel.Index], nil
}

// wait blocks until g is over. A fake clock is driven forward here; a real
// one is waited on with the step timeout. A gesture still running when the
// wait gives up is cancelled so it cannot dispatch into later steps.
func (fr *FlowRunner) wait(g *pointer.Gesture, stepTimeout time.Duration) error {
	timeout := stepTimeout
	if timeout <= 0 {
		timeout = fr.config.StepTimeout
	}

	if fake, ok := fr.clock.(*clock.Fake); ok {
		limit := timeout
		if limit <= 0 {
			limit = fakeIdleLimit
		}
		fake.RunUntilIdle(limit)
		select {
		case <-g.Done():
			return g.Err()
		default:
			err := core.ErrTimeout.WithDetails(map[string]interface{}{"gesture": g.Name(), "limit": limit.String()})
			g.Cancel(err)
			return err
		}
	}

	ctx := fr.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	err := g.Wait(ctx)
	if err != nil && g.Cancel(err) {
		logger.Warn("gesture %s abandoned: %v", g.Name(), err)
	}
	return err
}

// sleep lets d of clock time pass.
func (fr *FlowRunner) sleep(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if fake, ok := fr.clock.(*clock.Fake); ok {
		fake.Advance(d)
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-fr.ctx.Done():
		return core.ErrTimeout.WithMessage("wait cancelled").WithCause(fr.ctx.Err())
	}
}

// record is the root listener. It runs on whatever goroutine dispatched.
func (fr *FlowRunner) record(ev *dom.Event) {
	rec := recordedEvent{
		EventRecord: core.EventRecord{
			Name:   ev.Name,
			Target: ev.Target.Path(),
			X:      ev.PageX,
			Y:      ev.PageY,
			At:     ev.Time.Sub(fr.start),
		},
		el: ev.Target,
	}
	fr.mu.Lock()
	fr.events = append(fr.events, rec)
	fr.mu.Unlock()
}

func (fr *FlowRunner) eventCount() int {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	return len(fr.events)
}

func (fr *FlowRunner) eventsSince(idx int) []core.EventRecord {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if idx >= len(fr.events) {
		return nil
	}
	out := make([]core.EventRecord, 0, len(fr.events)-idx)
	for _, ev := range fr.events[idx:] {
		out = append(out, ev.EventRecord)
	}
	return out
}

func flowName(f *flow.Flow) string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	if f.SourcePath == "" {
		return "flow"
	}
	base := filepath.Base(f.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
