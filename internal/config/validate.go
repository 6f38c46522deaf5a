package config

import (
	"fmt"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	recognizedProviders = map[string]bool{"openai": true, "gemini": true}
	recognizedLevels    = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	recognizedFormats   = map[string]bool{"console": true, "json": true}
)

// Validate checks a Config for semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !recognizedProviders[cfg.LLM.Provider] {
		add("llm.provider", "unrecognized provider %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		add("llm.model", "is required")
	}
	if cfg.LLM.WriteModel == "" {
		add("llm.write_model", "is required")
	}

	if cfg.Repair.MaxAttempts < 1 {
		add("repair.max_attempts", "must be at least 1, got %d", cfg.Repair.MaxAttempts)
	}
	validateDuration("repair.grace_period", cfg.Repair.GracePeriod, add)
	if cfg.Repair.OutputLimit < 0 {
		add("repair.output_limit", "must not be negative")
	}

	validateDuration("runner.timeout", cfg.Runner.Timeout, add)

	if !recognizedLevels[cfg.Logging.Level] {
		add("logging.level", "unrecognized level %q", cfg.Logging.Level)
	}
	if !recognizedFormats[cfg.Logging.Format] {
		add("logging.format", "unrecognized format %q", cfg.Logging.Format)
	}

	return errs
}

func validateDuration(field, value string, add func(string, string, ...any)) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		add(field, "invalid duration %q", value)
		return
	}
	if d < 0 {
		add(field, "must not be negative")
	}
}
