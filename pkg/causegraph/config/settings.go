package config

import (
	"fmt"
	"time"
)

// Settings are the runtime-level knobs a deployment typically sets from a
// YAML or JSON file. Zero values defer to the runtime's own defaults.
type Settings struct {
	// LedgerID names the ledger for journal keying. Default: "default".
	LedgerID string

	// ApprovalTimeout is the default deadline for approval requests.
	// Zero means no deadline.
	ApprovalTimeout time.Duration

	// ApprovalStrategy is the default consensus strategy:
	// "all", "any", or "majority".
	ApprovalStrategy string

	// JournalPath is the SQLite journal file path. Empty disables the
	// durable journal.
	JournalPath string
}

// Default returns the settings a runtime uses when no file is loaded.
func Default() Settings {
	return Settings{
		LedgerID:         "default",
		ApprovalStrategy: "all",
	}
}

// Validate reports whether the settings can be honored by a runtime.
func (s Settings) Validate() error {
	switch s.ApprovalStrategy {
	case "all", "any", "majority":
	default:
		return fmt.Errorf("unknown approval strategy: %q", s.ApprovalStrategy)
	}
	if s.ApprovalTimeout < 0 {
		return fmt.Errorf("negative approval timeout: %s", s.ApprovalTimeout)
	}
	return nil
}
