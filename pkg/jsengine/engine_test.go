package jsengine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/devicelab-dev/virtual-pointer/pkg/logger"
)

func TestNew(t *testing.T) {
	engine := New()
	defer engine.Close()

	if engine == nil {
		t.Fatal("expected engine to be created")
	}
	if engine.runtime == nil {
		t.Fatal("expected runtime to be initialized")
	}
}

func TestEval(t *testing.T) {
	engine := New()
	defer engine.Close()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"array length", "[1, 2, 3].length", int64(3)},
		{"object property", "({name: 'test'}).name", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestSetVariable(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("username", "john")
	engine.SetVariable("count", 42)

	// Test string variable
	result, err := engine.EvalString("username")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "john" {
		t.Errorf("expected 'john', got %q", result)
	}

	// Test number variable
	result, err = engine.EvalString("count")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "42" {
		t.Errorf("expected '42', got %q", result)
	}
}

func TestExpandVariables(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("name", "John")
	engine.SetVariable("age", 30)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple var", "Hello ${name}", "Hello John"},
		{"expression", "Age: ${age + 5}", "Age: 35"},
		{"multiple vars", "${name} is ${age}", "John is 30"},
		{"no vars", "plain text", "plain text"},
		{"string concat", "${name + ' Doe'}", "John Doe"},
		{"nested braces", "${({a: 1}).a}", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.ExpandVariables(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestJSON(t *testing.T) {
	engine := New()
	defer engine.Close()

	err := engine.RunScript(`
		var data = json('{"name": "test", "value": 123}');
		parsedName = data.name;
		parsedValue = data.value;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, _ := engine.EvalString("parsedName")
	if name != "test" {
		t.Errorf("expected 'test', got %q", name)
	}

	value, _ := engine.EvalString("parsedValue")
	if value != "123" {
		t.Errorf("expected '123', got %q", value)
	}
}

func TestOutput(t *testing.T) {
	engine := New()
	defer engine.Close()

	err := engine.RunScript(`
		output.result = "success";
		output.count = 42;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := engine.GetOutput()
	if output["result"] != "success" {
		t.Errorf("expected output.result = 'success', got %v", output["result"])
	}
	if output["count"] != int64(42) {
		t.Errorf("expected output.count = 42, got %v", output["count"])
	}
}

func TestPromise(t *testing.T) {
	engine := New()
	defer engine.Close()

	err := engine.RunScript(`
		var promiseResult = "pending";

		new Promise(function(resolve, reject) {
			resolve("resolved value");
		}).then(function(value) {
			promiseResult = value;
		});
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := engine.EvalString("promiseResult")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "resolved value" {
		t.Errorf("expected 'resolved value', got %q", result)
	}
}

func TestArrowFunctions(t *testing.T) {
	engine := New()
	defer engine.Close()

	result, err := engine.Eval(`
		const add = (a, b) => a + b;
		add(2, 3);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != int64(5) {
		t.Errorf("expected 5, got %v", result)
	}
}

func TestTemplateLiterals(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("name", "World")

	result, err := engine.EvalString("`Hello, ${name}!`")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Hello, World!" {
		t.Errorf("expected 'Hello, World!', got %q", result)
	}
}

func TestDestructuring(t *testing.T) {
	engine := New()
	defer engine.Close()

	err := engine.RunScript(`
		const {a, b} = {a: 1, b: 2};
		const [x, y] = [3, 4];
		destructured = a + b + x + y;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := engine.Eval("destructured")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != int64(10) {
		t.Errorf("expected 10, got %v", result)
	}
}

func TestRunScriptError(t *testing.T) {
	engine := New()
	defer engine.Close()

	err := engine.RunScript("invalid javascript {{{{")
	if err == nil {
		t.Error("expected error for invalid javascript")
	}
}

func TestEvalError(t *testing.T) {
	engine := New()
	defer engine.Close()

	_, err := engine.Eval("undefinedVariable.property")
	if err == nil {
		t.Error("expected error for undefined variable")
	}
}

func TestExpandVariablesWithError(t *testing.T) {
	engine := New()
	defer engine.Close()

	// Should not fail, just leave invalid expression as-is
	result, err := engine.ExpandVariables("Value: ${undefinedVar}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The expression evaluation fails, so it should continue
	if !strings.Contains(result, "Value:") {
		t.Errorf("expected result to contain 'Value:', got %q", result)
	}
}

func TestConsoleRoutedToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf)
	defer logger.Close()

	engine := New()
	defer engine.Close()

	err := engine.RunScript(`
		console.log("test message", 1);
		console.error("error message");
		console.warn("warning message");
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"js: test message 1", "js: error message", "js: warning message"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestPointerObject(t *testing.T) {
	engine := New()
	defer engine.Close()

	x, y := 0, 0
	engine.SetPointer(func() (int, int) { return x, y }, "touchstart", "touchmove", "touchend")

	x, y = 120, 45
	result, err := engine.EvalString("pointer.x + ',' + pointer.y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "120,45" {
		t.Errorf("expected live position '120,45', got %q", result)
	}

	result, err = engine.EvalString("[pointer.startEvent, pointer.moveEvent, pointer.stopEvent].join(' ')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "touchstart touchmove touchend" {
		t.Errorf("unexpected event names %q", result)
	}

	// Read-only: assignment is ignored outside strict mode.
	if err := engine.RunScript("pointer.x = 999"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := engine.EvalInt("pointer.x"); n != 120 {
		t.Errorf("pointer.x changed to %d", n)
	}
}

func TestPointerObject_Unbound(t *testing.T) {
	engine := New()
	defer engine.Close()

	n, err := engine.EvalInt("pointer.x + pointer.y")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected origin, got %d", n)
	}
}

func TestEvalInt(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("base", 40)

	tests := []struct {
		name    string
		script  string
		want    int
		wantErr bool
	}{
		{"integer", "base + 2", 42, false},
		{"fraction truncated", "10 / 4", 2, false},
		{"negative", "-base", -40, false},
		{"string", "'abc'", 0, true},
		{"NaN", "0 / 0", 0, true},
		{"infinity", "1 / 0", 0, true},
		{"syntax error", "(((", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.EvalInt(tt.script)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EvalInt(%q) error = %v, wantErr %v", tt.script, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("EvalInt(%q) = %d, want %d", tt.script, got, tt.want)
			}
		})
	}
}

func TestEvalBool(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("count", 3)

	for script, want := range map[string]bool{
		"count > 2":  true,
		"count == 0": false,
		"''":         false,
		"'x'":        true,
	} {
		got, err := engine.EvalBool(script)
		if err != nil {
			t.Fatalf("EvalBool(%q) error = %v", script, err)
		}
		if got != want {
			t.Errorf("EvalBool(%q) = %v, want %v", script, got, want)
		}
	}
}

func TestVariables(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariables(map[string]interface{}{"a": 1, "b": "two"})

	vars := engine.Variables()
	if len(vars) != 2 || vars["a"] != 1 || vars["b"] != "two" {
		t.Errorf("unexpected variables %v", vars)
	}

	vars["c"] = 3
	if _, ok := engine.Variables()["c"]; ok {
		t.Error("Variables should return a copy")
	}
}

func TestDefineUndefinedIfMissing(t *testing.T) {
	engine := New()
	defer engine.Close()

	engine.SetVariable("present", "yes")
	engine.DefineUndefinedIfMissing("present")
	engine.DefineUndefinedIfMissing("absent")

	result, err := engine.EvalString("typeof absent + ' ' + present")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "undefined yes" {
		t.Errorf("got %q", result)
	}
}
