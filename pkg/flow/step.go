package flow

import (
	"fmt"
	"strconv"
	"time"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Pointer
	StepTapStart  StepType = "tapStart"
	StepTapEnd    StepType = "tapEnd"
	StepClick     StepType = "click"
	StepTap       StepType = "tap"
	StepPress     StepType = "press"
	StepDoubleTap StepType = "doubleTap"

	// Movement
	StepMove        StepType = "move"
	StepDrag        StepType = "drag"
	StepFlick       StepType = "flick"
	StepSetPosition StepType = "setPosition"

	// Assertions
	StepAssertEvents StepType = "assertEvents"
	StepAssertTrue   StepType = "assertTrue"

	// Flow Control
	StepRepeat          StepType = "repeat"
	StepRunScript       StepType = "runScript"
	StepEvalScript      StepType = "evalScript"
	StepDefineVariables StepType = "defineVariables"
	StepWait            StepType = "wait"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType  StepType `yaml:"-"`
	Optional  bool     `yaml:"optional"`
	StepLabel string   `yaml:"label"`
	TimeoutMs int      `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// Timeout returns TimeoutMs as a time.Duration.
func (b *BaseStep) Timeout() time.Duration { return ms(b.TimeoutMs) }

// ============================================
// Pointer Steps
// ============================================

// PointerStep is tapStart, tapEnd, click or tap. An empty selector keeps the
// pointer where it is.
type PointerStep struct {
	BaseStep `yaml:",inline"`
	Selector Selector `yaml:",inline"`
}

// PressStep holds the pointer down for DurationMs (0 for the default).
type PressStep struct {
	BaseStep   `yaml:",inline"`
	Selector   Selector `yaml:",inline"`
	DurationMs int      `yaml:"duration"`
}

// DoubleTapStep taps twice, DurationMs apart (0 for the default).
type DoubleTapStep struct {
	BaseStep   `yaml:",inline"`
	Selector   Selector `yaml:",inline"`
	DurationMs int      `yaml:"duration"`
}

// ============================================
// Movement Steps
// ============================================

// MoveStep is move, drag or flick. It goes either to the selected element or
// by the X, Y delta.
type MoveStep struct {
	BaseStep   `yaml:",inline"`
	Selector   Selector `yaml:",inline"`
	X          *int     `yaml:"x"`
	Y          *int     `yaml:"y"`
	DurationMs int      `yaml:"duration"`
}

// HasDelta reports whether a delta was given.
func (s *MoveStep) HasDelta() bool { return s.X != nil || s.Y != nil }

// Delta returns the delta, missing components being zero.
func (s *MoveStep) Delta() (dx, dy int) {
	if s.X != nil {
		dx = *s.X
	}
	if s.Y != nil {
		dy = *s.Y
	}
	return dx, dy
}

// SetPositionStep places the pointer without dispatching anything.
type SetPositionStep struct {
	BaseStep  `yaml:",inline"`
	X         int   `yaml:"x"`
	Y         int   `yaml:"y"`
	AutoReset *bool `yaml:"autoReset"`
}

// ============================================
// Assertion Steps
// ============================================

// ExpectedPoint is an expected coordinate pair.
type ExpectedPoint struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// AssertEventsStep checks the events recorded since the previous assertion,
// or the whole log with All. Name may be a literal event name or one of the
// profile aliases start, move and stop.
type AssertEventsStep struct {
	BaseStep `yaml:",inline"`
	Name     string         `yaml:"name"`
	Target   Selector       `yaml:"target"`
	Count    *int           `yaml:"count"`
	MinCount int            `yaml:"minCount"`
	Last     *ExpectedPoint `yaml:"last"`
	All      bool           `yaml:"all"`
}

// AssertTrueStep asserts a JavaScript condition.
type AssertTrueStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}

// ============================================
// Flow Control Steps
// ============================================

// RepeatStep repeats the nested steps Times times.
type RepeatStep struct {
	BaseStep `yaml:",inline"`
	Times    string `yaml:"times"` // String for variable support
	Steps    []Step `yaml:"-"`
}

// RunScriptStep runs a JavaScript file, relative to the flow file.
type RunScriptStep struct {
	BaseStep `yaml:",inline"`
	File     string            `yaml:"file"`
	Env      map[string]string `yaml:"env"`
}

// EvalScriptStep evaluates JavaScript.
type EvalScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
}

// DefineVariablesStep defines variables.
type DefineVariablesStep struct {
	BaseStep `yaml:",inline"`
	Env      map[string]string `yaml:"env"`
}

// WaitStep lets DurationMs of clock time pass.
type WaitStep struct {
	BaseStep   `yaml:",inline"`
	DurationMs int `yaml:"duration"`
}

// ============================================
// Describe() implementations for detailed output
// ============================================

// Describe returns a human-readable description of the pointer step.
func (s *PointerStep) Describe() string {
	if s.Selector.IsEmpty() {
		return string(s.StepType)
	}
	return string(s.StepType) + ": " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the press step.
func (s *PressStep) Describe() string {
	d := "press"
	if !s.Selector.IsEmpty() {
		d += ": " + s.Selector.DescribeQuoted()
	}
	if s.DurationMs > 0 {
		d += " for " + strconv.Itoa(s.DurationMs) + "ms"
	}
	return d
}

// Describe returns a human-readable description of the double tap step.
func (s *DoubleTapStep) Describe() string {
	if s.Selector.IsEmpty() {
		return "doubleTap"
	}
	return "doubleTap: " + s.Selector.DescribeQuoted()
}

// Describe returns a human-readable description of the move step.
func (s *MoveStep) Describe() string {
	d := string(s.StepType)
	switch {
	case s.HasDelta():
		dx, dy := s.Delta()
		d = fmt.Sprintf("%s by (%d, %d)", s.StepType, dx, dy)
	case !s.Selector.IsEmpty():
		d += " to " + s.Selector.DescribeQuoted()
	}
	if s.DurationMs > 0 {
		d += " in " + strconv.Itoa(s.DurationMs) + "ms"
	}
	return d
}

// Describe returns a human-readable description of the set position step.
func (s *SetPositionStep) Describe() string {
	return fmt.Sprintf("setPosition: (%d, %d)", s.X, s.Y)
}

// Describe returns a human-readable description of the assertion.
func (s *AssertEventsStep) Describe() string {
	d := "assertEvents"
	if s.Name != "" {
		d += ": " + s.Name
	}
	if !s.Target.IsEmpty() {
		d += " on " + s.Target.DescribeQuoted()
	}
	return d
}

// Describe returns a human-readable description of the assert true step.
func (s *AssertTrueStep) Describe() string {
	return "assertTrue: " + s.Script
}

// Describe returns a human-readable description of the repeat step.
func (s *RepeatStep) Describe() string {
	return fmt.Sprintf("repeat %s times (%d steps)", s.Times, len(s.Steps))
}

// Describe returns a human-readable description of the run script step.
func (s *RunScriptStep) Describe() string {
	return "runScript: " + s.File
}

// Describe returns a human-readable description of the wait step.
func (s *WaitStep) Describe() string {
	return "wait: " + strconv.Itoa(s.DurationMs) + "ms"
}
