package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the report file written into the output directory.
const FileName = "report.json"

// Write stores r as dir/report.json, creating dir if needed. It returns the
// path written.
func Write(dir string, r *Report) (string, error) {
	if err := ensureDir(dir); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := atomicWriteJSON(path, r); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Load reads a report file. path may be the file or its directory.
func Load(path string) (*Report, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided report path
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &r, nil
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteJSON writes v to a temp file next to path and renames it into
// place, so readers never see a partial report.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
