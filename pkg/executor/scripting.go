package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/devicelab-dev/virtual-pointer/pkg/core"
	"github.com/devicelab-dev/virtual-pointer/pkg/flow"
	"github.com/devicelab-dev/virtual-pointer/pkg/jsengine"
	"github.com/devicelab-dev/virtual-pointer/pkg/pointer"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)

// ScriptEngine handles JavaScript execution and variable management.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
	flowDir   string // Directory of current flow (for resolving relative paths)
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// Close cleans up the script engine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetFlowDir sets the current flow directory for relative path resolution.
func (se *ScriptEngine) SetFlowDir(dir string) {
	se.flowDir = dir
}

// BindPointer exposes the simulator's position and event names to scripts
// as the read-only pointer object.
func (se *ScriptEngine) BindPointer(sim *pointer.Simulator) {
	se.js.SetPointer(func() (int, int) {
		p := sim.Position()
		return p.X, p.Y
	}, sim.StartEvent(), sim.MoveEvent(), sim.StopEvent())
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv imports system environment variables into the script engine.
// Only imports variables matching the pattern (uppercase with underscores).
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// GetOutput returns the JS output variables.
func (se *ScriptEngine) GetOutput() map[string]interface{} {
	return se.js.GetOutput()
}

// SyncOutputToVariables copies JS output back to variables.
func (se *ScriptEngine) SyncOutputToVariables() {
	for k, v := range se.js.GetOutput() {
		se.SetVariable(k, fmt.Sprintf("%v", v))
	}
}

// ExpandVariables expands ${expr} and $VAR syntax in text.
func (se *ScriptEngine) ExpandVariables(text string) string {
	// First pass: JS engine for ${expression} syntax
	if result, err := se.js.ExpandVariables(text); err == nil {
		text = result
	}
	// Second pass: $VAR syntax (without braces)
	return se.expandDollarVars(text)
}

// expandDollarVars expands $VAR syntax using stored variables, longest names
// first so $COUNT does not eat the prefix of $COUNTER.
func (se *ScriptEngine) expandDollarVars(text string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		text = expandDollarVar(text, name, se.variables[name])
	}
	return text
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// Followed by an identifier character: a different variable
		endPos := pos + len(pattern)
		if endPos < len(text) && isIdentChar(text[endPos]) {
			idx = endPos
			continue
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

func isIdentChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_'
}

// predefine declares env-looking names used by script as undefined, so a
// missing variable is falsy instead of a ReferenceError.
func (se *ScriptEngine) predefine(script string) {
	for _, name := range envVarPattern.FindAllString(script, -1) {
		se.js.DefineUndefinedIfMissing(name)
	}
}

// RunScript executes a JavaScript script.
func (se *ScriptEngine) RunScript(script string, env map[string]string) error {
	script = se.ExpandVariables(script)

	for k, v := range env {
		se.SetVariable(k, se.ExpandVariables(v))
	}

	se.predefine(script)
	if err := se.js.RunScript(script); err != nil {
		return err
	}

	se.SyncOutputToVariables()
	return nil
}

// EvalCondition evaluates a script condition and returns true/false.
func (se *ScriptEngine) EvalCondition(script string) (bool, error) {
	script = extractJS(script)
	script = se.expandDollarVars(script)
	se.predefine(script)

	result, err := se.js.Eval(script)
	if err != nil {
		return false, err
	}

	switch v := result.(type) {
	case bool:
		return v, nil
	case string:
		return v == "true", nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	default:
		return result != nil, nil
	}
}

// ResolvePath resolves a relative path against the flow directory.
func (se *ScriptEngine) ResolvePath(path string) string {
	if filepath.IsAbs(path) || se.flowDir == "" {
		return path
	}
	return filepath.Join(se.flowDir, path)
}

// ============================================
// Step Execution Helpers
// ============================================

// ExecuteDefineVariables handles defineVariables step.
func (se *ScriptEngine) ExecuteDefineVariables(step *flow.DefineVariablesStep) error {
	for k, v := range step.Env {
		se.SetVariable(k, se.ExpandVariables(v))
	}
	return nil
}

// ExecuteRunScript handles runScript step. The file is read relative to the
// flow directory.
func (se *ScriptEngine) ExecuteRunScript(step *flow.RunScriptStep) error {
	if step.File == "" {
		return core.ErrMissingRequired.WithMessage("runScript: file is required")
	}
	path := se.ResolvePath(step.File)
	content, err := os.ReadFile(path)
	if err != nil {
		return core.ErrInvalidConfig.WithMessage("cannot read script file " + path).WithCause(err)
	}

	restore := se.withEnvVars(step.Env)
	defer restore()

	if err := se.RunScript(string(content), nil); err != nil {
		return fmt.Errorf("script %s: %w", step.File, err)
	}
	return nil
}

// ExecuteEvalScript handles evalScript step.
func (se *ScriptEngine) ExecuteEvalScript(step *flow.EvalScriptStep) error {
	script := extractJS(step.Script)
	se.predefine(script)
	if err := se.js.RunScript(script); err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	se.SyncOutputToVariables()
	return nil
}

// ExecuteAssertTrue handles assertTrue step.
func (se *ScriptEngine) ExecuteAssertTrue(step *flow.AssertTrueStep) error {
	ok, err := se.EvalCondition(step.Script)
	if err != nil {
		return core.ErrAssertionFailed.WithMessage("assertTrue evaluation failed").WithCause(err)
	}
	if !ok {
		return core.ErrAssertionFailed.WithMessage("assertTrue failed: " + step.Script)
	}
	return nil
}

// extractJS extracts JavaScript from ${...} wrapper if present.
func extractJS(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "${") && strings.HasSuffix(script, "}") {
		return script[2 : len(script)-1]
	}
	return script
}

// withEnvVars applies environment variables and returns a restore function.
func (se *ScriptEngine) withEnvVars(env map[string]string) func() {
	oldVars := make(map[string]string)
	for k, v := range env {
		oldVars[k] = se.GetVariable(k)
		se.SetVariable(k, se.ExpandVariables(v))
	}
	return func() {
		for k, v := range oldVars {
			se.SetVariable(k, v)
		}
	}
}

// ParseInt parses an integer from string, supporting variable expansion.
func (se *ScriptEngine) ParseInt(s string, defaultVal int) int {
	s = se.ExpandVariables(s)
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "") // Support 10_000 format
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultVal
}

// ExpandStep returns a copy of step with variables expanded in its string
// fields. The original is left untouched so repeated steps expand afresh.
func (se *ScriptEngine) ExpandStep(step flow.Step) flow.Step {
	switch s := step.(type) {
	case *flow.PointerStep:
		c := *s
		c.Selector = se.expandSelector(s.Selector)
		return &c
	case *flow.PressStep:
		c := *s
		c.Selector = se.expandSelector(s.Selector)
		return &c
	case *flow.DoubleTapStep:
		c := *s
		c.Selector = se.expandSelector(s.Selector)
		return &c
	case *flow.MoveStep:
		c := *s
		c.Selector = se.expandSelector(s.Selector)
		return &c
	case *flow.AssertEventsStep:
		c := *s
		c.Name = se.ExpandVariables(s.Name)
		c.Target = se.expandSelector(s.Target)
		return &c
	case *flow.RunScriptStep:
		c := *s
		c.File = se.ExpandVariables(s.File)
		return &c
	}
	return step
}

// expandSelector expands variables in selector fields and returns a copy.
func (se *ScriptEngine) expandSelector(sel flow.Selector) flow.Selector {
	sel.Query = se.ExpandVariables(sel.Query)
	sel.ID = se.ExpandVariables(sel.ID)
	return sel
}
