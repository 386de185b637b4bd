// Package validator validates gesture flow files before execution.
// It parses all files upfront, loads each flow's scene and checks every step
// against it, collecting all problems rather than stopping at the first.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devicelab-dev/virtual-pointer/pkg/dom"
	"github.com/devicelab-dev/virtual-pointer/pkg/flow"
	"github.com/devicelab-dev/virtual-pointer/pkg/pointer"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Step    string // Step position, "3" or "2.1" inside a repeat; empty for file-level errors
	Message string
}

func (e *ValidationError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: step %s: %s", e.File, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of flow file paths in execution order.
	Files []string
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates flow files.
type Validator struct {
	includeTags []string
	excludeTags []string
	scene       string
}

// Option configures a Validator.
type Option func(*Validator)

// WithScene sets the scene used by flows that do not name one.
func WithScene(path string) Option {
	return func(v *Validator) {
		v.scene = path
	}
}

// New creates a new Validator.
func New(includeTags, excludeTags []string, opts ...Option) *Validator {
	v := &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate validates a file or directory.
func (v *Validator) Validate(path string) *Result {
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("cannot access: %v", err),
		})
		return result
	}

	var files []string
	if info.IsDir() {
		files, err = collectFlowFiles(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("failed to scan directory: %v", err),
			})
			return result
		}
	} else {
		files = []string{path}
	}

	for _, file := range files {
		v.validateFile(file, result)
	}

	return result
}

// collectFlowFiles finds all .yaml/.yml files in a directory, skipping scenes.
func collectFlowFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		base := strings.ToLower(filepath.Base(path))
		if strings.HasSuffix(base, ".scene.yaml") || strings.HasSuffix(base, ".scene.yml") {
			return nil
		}
		ext := filepath.Ext(base)
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func (v *Validator) validateFile(filePath string, result *Result) {
	f, err := flow.ParseFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	if !flow.ShouldIncludeFlow(f, v.includeTags, v.excludeTags) {
		return
	}
	result.Files = append(result.Files, filePath)

	scene := f.ScenePath(v.scene)
	if scene == "" {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: "no scene: set scene in the flow config or pass one",
		})
		return
	}
	doc, err := dom.LoadDocument(scene)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("scene error: %v", err),
		})
		return
	}

	result.Errors = append(result.Errors, CheckFlow(f, doc)...)
}

// CheckFlow checks every step of f, including lifecycle hooks, against doc.
func CheckFlow(f *flow.Flow, doc *dom.Document) []error {
	c := &checker{flow: f, doc: doc}
	c.steps(f.Config.OnFlowStart, "onFlowStart.")
	c.steps(f.Steps, "")
	c.steps(f.Config.OnFlowComplete, "onFlowComplete.")
	if f.Config.Timeout < 0 {
		c.errs = append(c.errs, &ValidationError{File: f.SourcePath, Message: "timeout must not be negative"})
	}
	d := f.Config.Durations
	if d.Press < 0 || d.DoubleTap < 0 || d.Flick < 0 {
		c.errs = append(c.errs, &ValidationError{File: f.SourcePath, Message: "durations must not be negative"})
	}
	return c.errs
}

type checker struct {
	flow *flow.Flow
	doc  *dom.Document
	errs []error
}

func (c *checker) fail(pos string, step flow.Step, format string, args ...interface{}) {
	c.errs = append(c.errs, &ValidationError{
		File:    c.flow.SourcePath,
		Step:    pos,
		Message: step.Describe() + ": " + fmt.Sprintf(format, args...),
	})
}

func (c *checker) steps(steps []flow.Step, prefix string) {
	for i, step := range steps {
		c.step(step, prefix+strconv.Itoa(i+1))
	}
}

//nolint:gocyclo
func (c *checker) step(step flow.Step, pos string) {
	switch s := step.(type) {
	case *flow.PointerStep:
		c.selector(pos, step, s.Selector)

	case *flow.PressStep:
		c.selector(pos, step, s.Selector)
		c.duration(pos, step, s.DurationMs)

	case *flow.DoubleTapStep:
		c.selector(pos, step, s.Selector)
		c.duration(pos, step, s.DurationMs)

	case *flow.MoveStep:
		if s.HasDelta() == !s.Selector.IsEmpty() {
			c.fail(pos, step, "needs exactly one of a target or an x/y delta")
		}
		c.selector(pos, step, s.Selector)
		c.duration(pos, step, s.DurationMs)

	case *flow.AssertEventsStep:
		c.selector(pos, step, s.Target)
		if s.Name != "" && !knownEvent(s.Name) {
			c.fail(pos, step, "unknown event name %q", s.Name)
		}
		if s.Count != nil && *s.Count < 0 {
			c.fail(pos, step, "count must not be negative")
		}
		if s.MinCount < 0 {
			c.fail(pos, step, "minCount must not be negative")
		}

	case *flow.AssertTrueStep:
		if s.Script == "" {
			c.fail(pos, step, "script is required")
		}

	case *flow.RepeatStep:
		if !isDynamic(s.Times) {
			if n, err := strconv.Atoi(s.Times); err != nil || n < 0 {
				c.fail(pos, step, "times must be a non-negative integer, got %q", s.Times)
			}
		}
		c.steps(s.Steps, pos+".")

	case *flow.RunScriptStep:
		if s.File == "" {
			c.fail(pos, step, "file is required")
		} else if _, err := os.Stat(c.flow.ResolvePath(s.File)); err != nil {
			c.fail(pos, step, "cannot access script: %v", err)
		}

	case *flow.EvalScriptStep:
		if s.Script == "" {
			c.fail(pos, step, "script is required")
		}

	case *flow.WaitStep:
		c.duration(pos, step, s.DurationMs)
	}
}

// selector checks that a static selector parses and matches enough elements.
// Selectors with ${...} expressions are resolved at run time only.
func (c *checker) selector(pos string, step flow.Step, sel flow.Selector) {
	if sel.IsEmpty() {
		return
	}
	expr := sel.Expression()
	if isDynamic(expr) {
		return
	}
	if err := dom.ParseQuery(expr); err != nil {
		c.fail(pos, step, "invalid selector: %v", err)
		return
	}
	if sel.Index < 0 {
		c.fail(pos, step, "index must not be negative")
		return
	}
	matches := c.doc.FindAll(expr)
	switch {
	case len(matches) == 0:
		c.fail(pos, step, "selector matches no element")
	case sel.Index >= len(matches):
		c.fail(pos, step, "index %d out of range, selector matches %d elements", sel.Index, len(matches))
	}
}

func (c *checker) duration(pos string, step flow.Step, ms int) {
	if ms < 0 {
		c.fail(pos, step, "duration must not be negative")
	}
}

func knownEvent(name string) bool {
	for _, n := range pointer.EventAliases {
		if n == name {
			return true
		}
	}
	for _, n := range dom.PointerEvents {
		if n == name {
			return true
		}
	}
	return false
}

func isDynamic(s string) bool {
	return strings.Contains(s, "${")
}
