// Package flow handles parsing and representation of YAML gesture flow files.
package flow

import (
	"path/filepath"
	"time"
)

// Flow represents a parsed gesture flow file.
type Flow struct {
	SourcePath string // Path to the source file
	Config     Config // Flow configuration (scene, tags, etc.)
	Steps      []Step // Steps to execute
}

// Config represents flow-level configuration.
type Config struct {
	Name           string            `yaml:"name"`
	Scene          string            `yaml:"scene"` // Scene file, relative to the flow file
	Tags           []string          `yaml:"tags"`
	Env            map[string]string `yaml:"env"`
	AutoReset      *bool             `yaml:"autoReset"`
	Touch          *bool             `yaml:"touch"` // Overrides the scene's touch capability
	Durations      Durations         `yaml:"durations"`
	Timeout        int               `yaml:"timeout"` // Flow timeout in ms
	OnFlowStart    []Step            `yaml:"-"`       // Lifecycle hook: runs before commands
	OnFlowComplete []Step            `yaml:"-"`       // Lifecycle hook: runs after commands
}

// Durations are the pointer timing tunables in milliseconds. Zero keeps the default.
type Durations struct {
	Press     int `yaml:"press"`
	DoubleTap int `yaml:"doubleTap"`
	Flick     int `yaml:"flick"`
}

// PressDuration returns Press as a time.Duration.
func (d Durations) PressDuration() time.Duration { return ms(d.Press) }

// DoubleTapDuration returns DoubleTap as a time.Duration.
func (d Durations) DoubleTapDuration() time.Duration { return ms(d.DoubleTap) }

// FlickDuration returns Flick as a time.Duration.
func (d Durations) FlickDuration() time.Duration { return ms(d.Flick) }

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// ScenePath returns the scene file for the flow: Config.Scene resolved
// against the flow file's directory, or fallback when the flow names none.
func (f *Flow) ScenePath(fallback string) string {
	if f.Config.Scene == "" {
		return fallback
	}
	return f.ResolvePath(f.Config.Scene)
}

// ResolvePath resolves a path relative to the flow file's directory.
func (f *Flow) ResolvePath(p string) string {
	if filepath.IsAbs(p) || f.SourcePath == "" {
		return p
	}
	return filepath.Join(filepath.Dir(f.SourcePath), p)
}
