package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultProvider       = "openai"
	DefaultModel          = "gpt-4o"
	DefaultWriteModel     = "o4-mini"
	DefaultMaxAttempts    = 5
	DefaultGracePeriod    = 500 * time.Millisecond
	DefaultOutputLimit    = 8000
	DefaultRunnerTimeout  = 5 * time.Minute
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultLogDir         = "logs"
	defaultOpenAIKeyEnv   = "OPENAI_API_TOKEN"
	defaultGeminiKeyEnv   = "GEMINI_API_KEY"
	defaultConfigFileName = "vitestgpt.yaml"
)

// Load reads and parses a configuration from the given YAML file path.
// After parsing, it fills every unset field with its default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Path = path
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the first
// one found. Search order: ./vitestgpt.yaml, ~/.vitestgpt/config.yaml. With no
// file present the built-in defaults are returned.
func LoadDefault() (*Config, error) {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Default(), nil
}

// SearchPaths lists the locations LoadDefault tries, in order.
func SearchPaths() []string {
	candidates := []string{defaultConfigFileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".vitestgpt", "config.yaml"))
	}
	return candidates
}

// Default returns a config with every field at its default.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func applyDefaults(cfg *Config) {
	l := &cfg.LLM
	if l.Provider == "" {
		l.Provider = DefaultProvider
	}
	if l.Model == "" {
		l.Model = DefaultModel
	}
	if l.WriteModel == "" {
		l.WriteModel = DefaultWriteModel
	}
	if l.APIKeyEnv == "" {
		l.APIKeyEnv = defaultOpenAIKeyEnv
		if l.Provider == "gemini" {
			l.APIKeyEnv = defaultGeminiKeyEnv
		}
	}

	r := &cfg.Repair
	if r.MaxAttempts == 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.GracePeriod == "" {
		r.GracePeriod = DefaultGracePeriod.String()
	}
	if r.OutputLimit == 0 {
		r.OutputLimit = DefaultOutputLimit
	}

	if cfg.Runner.Timeout == "" {
		cfg.Runner.Timeout = DefaultRunnerTimeout.String()
	}

	g := &cfg.Logging
	if g.Level == "" {
		g.Level = DefaultLogLevel
	}
	if g.Format == "" {
		g.Format = DefaultLogFormat
	}
	if g.Dir == "" {
		g.Dir = DefaultLogDir
	}
}
