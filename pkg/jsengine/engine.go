// Package jsengine provides JavaScript expression evaluation for gesture flows.
package jsengine

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/virtual-pointer/pkg/logger"
)

// PositionFunc reports the live pointer position.
type PositionFunc func() (x, y int)

// Engine wraps a goja runtime with the flow globals: console, json, output and pointer.
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]interface{}
	output    map[string]interface{}

	position   PositionFunc
	startEvent string
	moveEvent  string
	stopEvent  string

	mu        sync.Mutex
	closeOnce sync.Once
}

// New creates a new JS engine instance
func New() *Engine {
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]interface{}),
		output:    make(map[string]interface{}),
		position:  func() (int, int) { return 0, 0 },
	}

	e.setupBuiltins()
	return e
}

// setupBuiltins registers all built-in functions and objects
func (e *Engine) setupBuiltins() {
	e.setupConsole()

	// JSON helper
	e.runtime.Set("json", e.jsonFunc())

	// Output object (for storing values to pass back to flow)
	e.runtime.Set("output", e.output)

	e.runtime.Set("pointer", e.pointerObject())
}

// setupConsole routes console.log, console.warn and console.error to the logger.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(logf func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprint(arg.Export())
			}
			logf("js: %s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(logger.Info))
	console.Set("info", makeConsoleFunc(logger.Info))
	console.Set("debug", makeConsoleFunc(logger.Debug))
	console.Set("warn", makeConsoleFunc(logger.Warn))
	console.Set("error", makeConsoleFunc(logger.Error))
	e.runtime.Set("console", console)
}

// jsonFunc returns the json() helper function
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}

		str := call.Arguments[0].String()

		result, err := e.runtime.RunString(fmt.Sprintf("JSON.parse(%q)", str))
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}

		return result
	}
}

// pointerObject returns the read-only pointer global. Accessors run while the
// engine lock is held, so they read fields directly.
func (e *Engine) pointerObject() *goja.Object {
	obj := e.runtime.NewObject()

	accessor := func(name string, get func() interface{}) {
		obj.DefineAccessorProperty(name, e.runtime.ToValue(get), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	accessor("x", func() interface{} {
		x, _ := e.position()
		return x
	})
	accessor("y", func() interface{} {
		_, y := e.position()
		return y
	})
	accessor("startEvent", func() interface{} { return e.startEvent })
	accessor("moveEvent", func() interface{} { return e.moveEvent })
	accessor("stopEvent", func() interface{} { return e.stopEvent })

	return obj
}

// SetPointer binds the pointer global to a live position and the event names
// of the active profile.
func (e *Engine) SetPointer(position PositionFunc, start, move, stop string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if position != nil {
		e.position = position
	}
	e.startEvent = start
	e.moveEvent = move
	e.stopEvent = stop
}

// SetVariable sets a variable accessible in JS as a global
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetVariables sets multiple variables
func (e *Engine) SetVariables(vars map[string]interface{}) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// Variables returns a copy of the variables set from Go.
func (e *Engine) Variables() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make(map[string]interface{}, len(e.variables))
	for k, v := range e.variables {
		result[k] = v
	}
	return result
}

// GetOutput returns a copy of the output object (values set by scripts)
func (e *Engine) GetOutput() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	outputVal := e.runtime.Get("output")
	var source map[string]interface{}

	if outputVal != nil && !goja.IsUndefined(outputVal) {
		if m, ok := outputVal.Export().(map[string]interface{}); ok {
			source = m
		}
	}

	if source == nil {
		source = e.output
	}

	result := make(map[string]interface{}, len(source))
	for k, v := range source {
		result[k] = v
	}
	return result
}

// Eval evaluates a JavaScript expression and returns the result
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}

	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and returns string result
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}

	if result == nil {
		return "", nil
	}

	return fmt.Sprintf("%v", result), nil
}

// EvalInt evaluates a JavaScript expression that must yield a finite number.
// Fractions are truncated.
func (e *Engine) EvalInt(script string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return 0, fmt.Errorf("JS eval error: %w", err)
	}

	switch v := result.Export().(type) {
	case int64:
		return int(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("expression %q is not a finite number", script)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("expression %q yields %T, not a number", script, v)
	}
}

// EvalBool evaluates a JavaScript expression for its truthiness.
func (e *Engine) EvalBool(script string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return false, fmt.Errorf("JS eval error: %w", err)
	}
	return result.ToBoolean(), nil
}

// RunScript runs a JavaScript file/script
func (e *Engine) RunScript(script string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.runtime.RunString(script)
	if err != nil {
		return fmt.Errorf("JS runtime error: %w", err)
	}

	return nil
}

// DefineUndefinedIfMissing defines a variable as undefined if it's not already defined.
// This prevents ReferenceError when scripts reference variables that may not exist.
func (e *Engine) DefineUndefinedIfMissing(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	val := e.runtime.Get(name)
	if val == nil || goja.IsUndefined(val) {
		if _, exists := e.variables[name]; !exists {
			e.runtime.Set(name, goja.Undefined())
		}
	}
}

// ExpandVariables expands ${...} expressions in a string using JS evaluation.
// Expressions that fail to evaluate are left in place.
func (e *Engine) ExpandVariables(text string) (string, error) {
	result := text
	start := 0

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		// Find matching }
		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			if result[end] == '{' {
				depth++
			} else if result[end] == '}' {
				depth--
			}
			end++
		}

		if depth != 0 {
			start = idx + 2
			continue
		}

		expr := result[idx+2 : end-1]

		value, err := e.EvalString(expr)
		if err != nil {
			start = end
			continue
		}

		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return result, nil
}

// Close interrupts any running script. The engine must not be used afterwards.
// Safe to call multiple times.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.runtime.Interrupt("engine closed")
	})
}
