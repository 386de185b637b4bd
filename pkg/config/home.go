package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "VPOINTER_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the virtual-pointer home directory.
//
// Resolution order:
//  1. $VPOINTER_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. <user config dir>/virtual-pointer
//  4. Current working directory
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetScenesDir returns <home>/scenes, where scene names without a path are
// looked up.
func GetScenesDir() string {
	return filepath.Join(GetHome(), "scenes")
}

// GetReportsDir returns <home>/reports.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "virtual-pointer")
	}

	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
