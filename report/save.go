package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the default report name for a run created at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("backtest_%s.json", t.UTC().Format("20060102_150405"))
}

// Save writes r as indented JSON. Reports carrying an Error are refused
// with ErrEmptyReport and nothing is written.
func Save(path string, r Report) error {
	if r.Empty() {
		return ErrEmptyReport
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func Load(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, err
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("report: parse %s: %w", path, err)
	}
	return r, nil
}
