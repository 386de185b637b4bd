package logger

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWriterAndLevels(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf)
	defer Close()

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error: %v", err)
	}
	Debug("tap at %d,%d", 10, 20)
	Info("flow %s", "login")

	out := buf.String()
	if !strings.Contains(out, "tap at 10,20") {
		t.Errorf("debug message missing: %q", out)
	}
	if !strings.Contains(out, "flow login") {
		t.Errorf("info message missing: %q", out)
	}

	buf.Reset()
	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel() error: %v", err)
	}
	Info("hidden")
	Warn("shown %d", 1)
	Error("failed %s", "x")

	out = buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged below warn level: %q", out)
	}
	if !strings.Contains(out, "shown 1") || !strings.Contains(out, "failed x") {
		t.Errorf("warn/error missing: %q", out)
	}
}

func TestSetLevelInvalid(t *testing.T) {
	if err := SetLevel("loud"); err == nil {
		t.Error("SetLevel(loud) should fail")
	}
}

func TestInitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(path); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if err := SetLevel("info"); err != nil {
		t.Fatal(err)
	}
	Info("written to file")
	if GetWriter() == io.Discard {
		t.Error("GetWriter() should return the log file")
	}
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file content = %q", data)
	}
	if GetWriter() != io.Discard {
		t.Error("GetWriter() after Close should discard")
	}
}

func TestInitBadPath(t *testing.T) {
	if err := Init(filepath.Join(t.TempDir(), "missing", "dir", "run.log")); err == nil {
		t.Error("Init() with unwritable path should fail")
	}
}
