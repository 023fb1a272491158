package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole configuration.
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateStore(cfg.Store); err != nil {
		return err
	}
	return nil
}

// ValidateStore checks store settings.
func (v *Validator) ValidateStore(cfg StoreConfig) error {
	if cfg.Dir == "" {
		return fmt.Errorf("store dir cannot be empty")
	}

	if _, err := cfg.Mode(); err != nil {
		return err
	}

	if cfg.LockTimeout < 0 {
		return fmt.Errorf("lock timeout cannot be negative")
	}

	if cfg.Sweep.Enabled {
		if cfg.Sweep.MaxAge <= 0 {
			return fmt.Errorf("sweep max age must be positive")
		}
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(cfg.Sweep.Schedule); err != nil {
			return fmt.Errorf("invalid sweep schedule %q: %w", cfg.Sweep.Schedule, err)
		}
	}

	return nil
}
