package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// APIKey returns the provider key: the configured environment variable first,
// then the same key in ~/.vitestgpt/.env.
func (c *Config) APIKey() string {
	if v := os.Getenv(c.LLM.APIKeyEnv); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return readEnvFileVar(filepath.Join(home, ".vitestgpt", ".env"), c.LLM.APIKeyEnv)
}

// readEnvFileVar reads the value of a specific key from a .env file.
// Supports both "KEY=VALUE" and "export KEY=VALUE" formats, with optional
// surrounding quotes. Returns empty string if the file or key is not found.
func readEnvFileVar(path, key string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.TrimSpace(parts[0]) == key {
			return strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		}
	}
	return ""
}
