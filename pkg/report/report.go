// Package report saves and loads the analysis report.
//
// The JSON file is the only state shared between analyze and the query
// commands. It carries no timestamps, so the same input always produces the
// same bytes.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
)

// MissingReportError means a query ran before analyze wrote a report
type MissingReportError struct {
	Path string
}

func (e *MissingReportError) Error() string {
	return fmt.Sprintf("no report at %s: run analyze first", e.Path)
}

// Marshal renders the report as indented JSON with a trailing newline
func Marshal(r *model.Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the JSON report to path, replacing any previous report atomically
func Save(path string, r *model.Report) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// Load reads a report written by Save
func Load(path string) (*model.Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingReportError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	var r model.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return &r, nil
}

// writeFile writes data to a temp file next to path and renames it into place
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
