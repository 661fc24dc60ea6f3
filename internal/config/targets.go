package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/keepwarm/internal/domain"
)

// TargetEntry is one item of the targets file. The file is a YAML or JSON
// list; min_delay/max_delay (whole minutes) are the older interval form.
type TargetEntry struct {
	URL           string `yaml:"url"`
	Method        string `yaml:"method"`
	MinIntervalMS int64  `yaml:"min_interval_ms"`
	MaxIntervalMS int64  `yaml:"max_interval_ms"`
	TimeoutMS     int64  `yaml:"timeout_ms"`
	AutoStart     bool   `yaml:"auto_start"`

	MinDelay int64 `yaml:"min_delay"`
	MaxDelay int64 `yaml:"max_delay"`
}

// Spec converts the entry, translating minute delays when no millisecond
// interval is given.
func (e TargetEntry) Spec() domain.TargetSpec {
	s := domain.TargetSpec{
		URL:           e.URL,
		Method:        e.Method,
		MinIntervalMS: e.MinIntervalMS,
		MaxIntervalMS: e.MaxIntervalMS,
		TimeoutMS:     e.TimeoutMS,
	}
	if s.MinIntervalMS == 0 && e.MinDelay > 0 {
		s.MinIntervalMS = e.MinDelay * 60_000
	}
	if s.MaxIntervalMS == 0 && e.MaxDelay > 0 {
		s.MaxIntervalMS = e.MaxDelay * 60_000
	}
	return s
}

// LoadTargets reads the initial targets. A missing file yields no targets.
func LoadTargets(path string) ([]TargetEntry, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	var entries []TargetEntry
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse targets file %s: %w", path, err)
	}
	return entries, nil
}
