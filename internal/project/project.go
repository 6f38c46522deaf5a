// Package project locates files around the source under test: the nearest
// package.json, the import path from the test file, and the source language.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ManifestName is the file searched for by FindManifest.
const ManifestName = "package.json"

// ErrFileNotFound is returned by EnsureFileExists.
var ErrFileNotFound = errors.New("file not found")

// EnsureFileExists returns the absolute path of an existing regular file.
func EnsureFileExists(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrFileNotFound)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, abs)
		}
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", abs)
	}
	return abs, nil
}

// FindManifest walks up from path (a file or directory) and returns the first
// package.json found, or "" if there is none.
func FindManifest(path string) string {
	dir, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ReadManifest parses a package.json file.
func ReadManifest(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

// Dependencies lists "name@version" for dependencies and devDependencies,
// sorted, one per line.
func Dependencies(manifest map[string]any) string {
	var lines []string
	for _, key := range []string{"dependencies", "devDependencies"} {
		deps, ok := manifest[key].(map[string]any)
		if !ok {
			continue
		}
		for name, version := range deps {
			lines = append(lines, fmt.Sprintf("%s@%v", name, version))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// RelativeImport returns the specifier a test file at outputFile would use to
// import inputFile: forward slashes, no extension, "./" prefixed when needed.
func RelativeImport(inputFile, outputFile string) (string, error) {
	in, err := filepath.Abs(inputFile)
	if err != nil {
		return "", err
	}
	out, err := filepath.Abs(outputFile)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(filepath.Dir(out), in)
	if err != nil {
		return "", fmt.Errorf("relative import: %w", err)
	}
	rel = filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel, nil
}

// ImportStatement renders the import line for the function under test.
func ImportStatement(functionName, specifier string, defaultExport bool) string {
	if defaultExport {
		return fmt.Sprintf("import %s from '%s'", functionName, specifier)
	}
	return fmt.Sprintf("import { %s } from '%s'", functionName, specifier)
}

// DetectLanguage maps a file extension to a language tag.
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsx":
		return "tsx"
	case ".ts", ".mts", ".cts":
		return "typescript"
	default:
		return "javascript"
	}
}

// WriteFile truncates path and writes content, creating it if needed.
func WriteFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
