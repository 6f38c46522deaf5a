// Package prompt renders the named prompt templates sent to the model.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	varRe      = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)
	ifOpenRe   = regexp.MustCompile(`\{\{#if\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
	ifCloseStr = "{{/if}}"
)

// Template names.
const (
	SystemPrompt          = "systemPrompt"
	GenerateTestplan      = "generateTestplan"
	WriteUnitTests        = "writeUnitTests"
	OnTestFailed          = "onTestFailed"
	ApplyDiffToSourceCode = "applyDiffToSourceCode"
)

// Vars is a map of variable names to values for template rendering.
type Vars map[string]string

// Render expands {{variable}} placeholders and keeps {{#if variable}}...{{/if}}
// blocks only when the variable is non-empty. Values are inserted verbatim and
// never re-expanded. Any placeholder without a value is an error.
func Render(tmpl string, vars Vars) (string, error) {
	result, err := processConditionals(tmpl, vars)
	if err != nil {
		return "", err
	}

	var missing []string
	expanded := varRe.ReplaceAllStringFunc(result, func(match string) string {
		name := varRe.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}

// processConditionals resolves innermost {{#if}} blocks first, so blocks nest.
func processConditionals(tmpl string, vars Vars) (string, error) {
	result := tmpl
	for {
		closeIdx := strings.Index(result, ifCloseStr)
		if closeIdx == -1 {
			break
		}
		openLocs := ifOpenRe.FindAllStringSubmatchIndex(result[:closeIdx], -1)
		if openLocs == nil {
			return "", fmt.Errorf("dangling {{/if}} without matching {{#if}}")
		}
		loc := openLocs[len(openLocs)-1]
		name := result[loc[2]:loc[3]]

		var body string
		if val := vars[name]; val != "" {
			body = result[loc[1]:closeIdx]
		}
		result = result[:loc[0]] + body + result[closeIdx+len(ifCloseStr):]
	}
	if loc := ifOpenRe.FindString(result); loc != "" {
		return "", fmt.Errorf("unclosed conditional block: %s", loc)
	}
	return result, nil
}

// Library resolves templates by name: first from an override directory, then
// from the installed copies under ~/.vitestgpt/prompts, then from the
// compiled-in defaults.
type Library struct {
	dir       string
	installed string
}

// NewLibrary creates a Library. overrideDir may be empty.
func NewLibrary(overrideDir string) *Library {
	return &Library{dir: overrideDir, installed: BuiltinDir()}
}

// Load returns the raw template text for name.
func (l *Library) Load(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid template name %q", name)
	}
	for _, dir := range []string{l.dir, l.installed} {
		if dir == "" {
			continue
		}
		if data, err := os.ReadFile(filepath.Join(dir, name+".md")); err == nil {
			return string(data), nil
		}
	}
	if tmpl, ok := builtinTemplates[name]; ok {
		return tmpl, nil
	}
	return "", fmt.Errorf("template %q not found", name)
}

// Render loads and renders the named template.
func (l *Library) Render(name string, vars Vars) (string, error) {
	tmpl, err := l.Load(name)
	if err != nil {
		return "", err
	}
	out, err := Render(tmpl, vars)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return out, nil
}

// Names lists the built-in template names.
func Names() []string {
	names := make([]string, 0, len(builtinTemplates))
	for name := range builtinTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuiltinDir returns ~/.vitestgpt/prompts, or "" if the home directory is unknown.
func BuiltinDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vitestgpt", "prompts")
}

// InstallBuiltinTemplates writes the built-in templates into dir as <name>.md,
// leaving existing files alone. It returns the paths it wrote.
func InstallBuiltinTemplates(dir string) ([]string, error) {
	if dir == "" {
		return nil, fmt.Errorf("no template directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create templates dir: %w", err)
	}

	var written []string
	for _, name := range Names() {
		path := filepath.Join(dir, name+".md")
		if _, err := os.Stat(path); err == nil {
			continue // don't overwrite existing
		}
		if err := os.WriteFile(path, []byte(builtinTemplates[name]), 0o644); err != nil {
			return written, fmt.Errorf("write template %q: %w", name, err)
		}
		written = append(written, path)
	}
	return written, nil
}
