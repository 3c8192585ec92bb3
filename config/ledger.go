package config

import (
	"fmt"
	"path/filepath"
)

// LedgerConfig defines settings for the run ledger and its rotation.
type LedgerConfig struct {
	// Backend selects the store type: "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the ledger.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	// Only used by the jsonl backend; zero disables rotation.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults. The ledger lives next to the results
// unless a path is given.
func (c *LedgerConfig) SetDefaults(resultsDir string) {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		name := "ledger.jsonl"
		if c.Backend == "sqlite" {
			name = "ledger.db"
		}
		c.Path = filepath.Join(resultsDir, name)
	}
}

// Validate checks mandatory fields.
func (c LedgerConfig) Validate() error {
	if c.Backend != "jsonl" && c.Backend != "sqlite" {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("rotation limits must not be negative")
	}
	return nil
}
