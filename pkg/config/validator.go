package config

import "fmt"

// Validator validates a Config comprehensively with clear error messages,
// grounded on the teacher's pkg/config/validator.go ("Validator{cfg},
// ValidateAll dispatches to one validate<Section> per concern, fail-fast
// at the first error, each wrapped with its section name").
type Validator struct {
	cfg *Config
}

// NewValidator returns a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll validates every section in order, stopping at the first
// failure.
func (v *Validator) ValidateAll() error {
	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}
	if err := v.validateQuota(); err != nil {
		return fmt.Errorf("quota validation failed: %w", err)
	}
	if err := v.validateMaker(); err != nil {
		return fmt.Errorf("maker validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateRetention() error {
	if v.cfg.SoftDeleteRetentionDays < 0 {
		return fmt.Errorf("soft_delete_retention_days must be non-negative, got %d", v.cfg.SoftDeleteRetentionDays)
	}
	return nil
}

func (v *Validator) validateQuota() error {
	if v.cfg.QuotaLimitPerMinute < 1 {
		return fmt.Errorf("quota_limit_per_minute must be at least 1, got %d", v.cfg.QuotaLimitPerMinute)
	}
	return nil
}

func (v *Validator) validateMaker() error {
	if v.cfg.MakerK < 1 {
		return fmt.Errorf("maker_k must be at least 1, got %d", v.cfg.MakerK)
	}
	if v.cfg.MakerMaxRounds < v.cfg.MakerK {
		return fmt.Errorf("maker_max_rounds (%d) must be at least maker_k (%d)", v.cfg.MakerMaxRounds, v.cfg.MakerK)
	}
	if v.cfg.MakerMaxTokens < 0 {
		return fmt.Errorf("maker_max_tokens must be non-negative, got %d", v.cfg.MakerMaxTokens)
	}
	return nil
}
