package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const validConfig = `
llm:
  provider: gemini
  model: gemini-2.5-pro
  write_model: gemini-2.5-flash
  base_url: ""
repair:
  max_attempts: 3
  grace_period: 1s
  output_limit: 4000
runner:
  binary: "npx vitest"
  test_name_pattern: "adds"
  timeout: 2m
prompts:
  dir: ./prompts
history:
  enabled: false
  dsn: postgres://ci@localhost/vitestgpt
logging:
  level: debug
  format: json
  dir: /tmp/vitestgpt-logs
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vitestgpt.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Path != path {
		t.Errorf("Path = %q", cfg.Path)
	}
	want := LLMConfig{
		Provider:   "gemini",
		Model:      "gemini-2.5-pro",
		WriteModel: "gemini-2.5-flash",
		APIKeyEnv:  "GEMINI_API_KEY",
	}
	if diff := cmp.Diff(want, cfg.LLM); diff != "" {
		t.Errorf("llm (-want +got):\n%s", diff)
	}
	if cfg.Repair.MaxAttempts != 3 || cfg.Repair.OutputLimit != 4000 {
		t.Errorf("repair = %+v", cfg.Repair)
	}
	if cfg.GraceDuration() != time.Second {
		t.Errorf("GraceDuration = %v", cfg.GraceDuration())
	}
	if cfg.RunnerTimeout() != 2*time.Minute {
		t.Errorf("RunnerTimeout = %v", cfg.RunnerTimeout())
	}
	if cfg.Runner.Binary != "npx vitest" || cfg.Runner.TestNamePattern != "adds" {
		t.Errorf("runner = %+v", cfg.Runner)
	}
	if cfg.History.IsEnabled() {
		t.Error("history should be disabled")
	}
	if cfg.History.DSN != "postgres://ci@localhost/vitestgpt" {
		t.Errorf("dsn = %q", cfg.History.DSN)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("unexpected validation errors: %v", errs)
	}
}

func TestLoad_EmptyFileGetsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# nothing here\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != DefaultModel || cfg.LLM.WriteModel != DefaultWriteModel {
		t.Errorf("llm defaults = %+v", cfg.LLM)
	}
	if cfg.LLM.APIKeyEnv != "OPENAI_API_TOKEN" {
		t.Errorf("api key env = %q", cfg.LLM.APIKeyEnv)
	}
	if cfg.Repair.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("max attempts = %d", cfg.Repair.MaxAttempts)
	}
	if cfg.GraceDuration() != 500*time.Millisecond {
		t.Errorf("grace = %v", cfg.GraceDuration())
	}
	if cfg.RunnerTimeout() != DefaultRunnerTimeout {
		t.Errorf("timeout = %v", cfg.RunnerTimeout())
	}
	if !cfg.History.IsEnabled() {
		t.Error("history should default to enabled")
	}
	if cfg.Logging.Dir != "logs" {
		t.Errorf("log dir = %q", cfg.Logging.Dir)
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("defaults should validate: %v", errs)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	_, err := Load(writeConfig(t, "llm: [not, a, map]\n"))
	if err == nil || !strings.Contains(err.Error(), "parsing config YAML") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadDefault_FromWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	if cfg.Path != "" {
		t.Errorf("no file present, Path = %q", cfg.Path)
	}

	if err := os.WriteFile(filepath.Join(dir, "vitestgpt.yaml"), []byte("llm:\n  model: gpt-4.1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault: %v", err)
	}
	if cfg.LLM.Model != "gpt-4.1" || cfg.Path != "vitestgpt.yaml" {
		t.Errorf("model = %q path = %q", cfg.LLM.Model, cfg.Path)
	}
}

func TestValidate_Errors(t *testing.T) {
	cfg := Default()
	cfg.LLM.Provider = "anthropic"
	cfg.Repair.MaxAttempts = -1
	cfg.Repair.GracePeriod = "soon"
	cfg.Repair.OutputLimit = -5
	cfg.Runner.Timeout = "-1s"
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"

	errs := Validate(cfg)
	var fields []string
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	want := []string{
		"llm.provider",
		"repair.max_attempts",
		"repair.grace_period",
		"repair.output_limit",
		"runner.timeout",
		"logging.level",
		"logging.format",
	}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
	if !strings.Contains(errs[0].Error(), `unrecognized provider "anthropic"`) {
		t.Errorf("error text = %q", errs[0].Error())
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	data, err := Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	path := writeConfig(t, string(data))
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Path = ""
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("round trip (-want +got):\n%s", diff)
	}
}

func TestAPIKey(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("OPENAI_API_TOKEN", "")

	cfg := Default()
	if got := cfg.APIKey(); got != "" {
		t.Errorf("expected empty key, got %q", got)
	}

	if err := os.MkdirAll(filepath.Join(home, ".vitestgpt"), 0o755); err != nil {
		t.Fatal(err)
	}
	env := "# keys\nOTHER=1\nexport OPENAI_API_TOKEN=\"sk-file\"\n"
	if err := os.WriteFile(filepath.Join(home, ".vitestgpt", ".env"), []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := cfg.APIKey(); got != "sk-file" {
		t.Errorf("from .env = %q", got)
	}

	t.Setenv("OPENAI_API_TOKEN", "sk-env")
	if got := cfg.APIKey(); got != "sk-env" {
		t.Errorf("env should win, got %q", got)
	}
}
