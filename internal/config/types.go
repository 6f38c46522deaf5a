package config

import "time"

// Config is the top-level configuration parsed from vitestgpt.yaml.
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Repair  RepairConfig  `yaml:"repair"`
	Runner  RunnerConfig  `yaml:"runner"`
	Prompts PromptsConfig `yaml:"prompts"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`

	// Path is the file the config was loaded from; empty for built-in defaults.
	Path string `yaml:"-"`
}

// LLMConfig selects the completion provider and models.
type LLMConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	WriteModel string `yaml:"write_model"`
	APIKeyEnv  string `yaml:"api_key_env"`
	BaseURL    string `yaml:"base_url"`
}

// RepairConfig bounds the test repair loop.
type RepairConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	GracePeriod string `yaml:"grace_period"`
	OutputLimit int    `yaml:"output_limit"`
}

// RunnerConfig controls how vitest is invoked.
type RunnerConfig struct {
	Binary          string `yaml:"binary"`
	TestNamePattern string `yaml:"test_name_pattern"`
	Timeout         string `yaml:"timeout"`
}

// PromptsConfig points at an override directory of *.md templates.
type PromptsConfig struct {
	Dir string `yaml:"dir"`
}

// HistoryConfig controls the run ledger and artifact store.
type HistoryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	DSN     string `yaml:"dsn"`
	RunsDir string `yaml:"runs_dir"`
}

// IsEnabled reports whether runs are recorded. Unset means enabled.
func (h HistoryConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// GraceDuration parses Repair.GracePeriod, falling back to the default.
func (c *Config) GraceDuration() time.Duration {
	return parseDuration(c.Repair.GracePeriod, DefaultGracePeriod)
}

// RunnerTimeout parses Runner.Timeout, falling back to the default.
func (c *Config) RunnerTimeout() time.Duration {
	return parseDuration(c.Runner.Timeout, DefaultRunnerTimeout)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
