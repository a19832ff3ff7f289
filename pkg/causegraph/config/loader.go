package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileSettings is the on-disk shape of a settings file. ApprovalTimeout is
// typed any so files may write either a duration string ("90s") or a bare
// number of seconds.
type fileSettings struct {
	LedgerID         string `yaml:"ledger_id" json:"ledger_id"`
	ApprovalTimeout  any    `yaml:"approval_timeout" json:"approval_timeout"`
	ApprovalStrategy string `yaml:"approval_strategy" json:"approval_strategy"`
	JournalPath      string `yaml:"journal_path" json:"journal_path"`
}

// Load reads settings from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(data)
	default:
		return Settings{}, fmt.Errorf("unsupported settings file extension: %s", ext)
	}
}

// ParseYAML parses YAML data into validated Settings.
func ParseYAML(data []byte) (Settings, error) {
	var f fileSettings
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Settings{}, fmt.Errorf("parse yaml: %w", err)
	}
	return f.settings()
}

// ParseJSON parses JSON data into validated Settings.
func ParseJSON(data []byte) (Settings, error) {
	var f fileSettings
	if err := json.Unmarshal(data, &f); err != nil {
		return Settings{}, fmt.Errorf("parse json: %w", err)
	}
	return f.settings()
}

// settings applies defaults for omitted keys and validates the result.
func (f fileSettings) settings() (Settings, error) {
	s := Default()
	if f.LedgerID != "" {
		s.LedgerID = f.LedgerID
	}
	if f.ApprovalStrategy != "" {
		s.ApprovalStrategy = f.ApprovalStrategy
	}
	s.JournalPath = f.JournalPath

	timeout, err := coerceDuration(f.ApprovalTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("approval_timeout: %w", err)
	}
	s.ApprovalTimeout = timeout

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// coerceDuration converts an approval_timeout value: duration strings parse
// with time.ParseDuration, bare numbers are taken as seconds.
func coerceDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", val, err)
		}
		return d, nil
	case int:
		return time.Duration(val) * time.Second, nil
	case int64:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}
