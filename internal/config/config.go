// Package config loads and validates the settings a composition root
// needs to build session stores.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/harun/sessfile/internal/logger"
)

// Config represents the full sessfile configuration
type Config struct {
	// Store settings
	Store StoreConfig `mapstructure:"store"`

	// Logging
	Logging logger.Config `mapstructure:"logging"`
}

// StoreConfig holds session store configuration
type StoreConfig struct {
	// Dir is the session directory. Required; there is no implicit
	// default directory.
	Dir string `mapstructure:"dir"`

	// FileMode is the octal mode for session files, e.g. "0600".
	FileMode string `mapstructure:"file_mode"`

	// LockTimeout bounds the wait for the file lock. Zero blocks
	// until the lock is granted.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`

	// Sweep controls removal of stale session files.
	Sweep SweepConfig `mapstructure:"sweep"`
}

// SweepConfig holds sweeper configuration
type SweepConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Schedule string        `mapstructure:"schedule"` // five-field cron expression
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// DefaultConfig returns a config with default values. Store.Dir has
// no default and must be set.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			FileMode:    "0600",
			LockTimeout: 0,
			Sweep: SweepConfig{
				Enabled:  false,
				Schedule: "0 3 * * *",
				MaxAge:   7 * 24 * time.Hour,
			},
		},
		Logging: logger.DefaultConfig(),
	}
}

// Mode parses the configured file mode.
func (c StoreConfig) Mode() (uint32, error) {
	mode, err := strconv.ParseUint(c.FileMode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file mode %q: %w", c.FileMode, err)
	}
	return uint32(mode), nil
}
