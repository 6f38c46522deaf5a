package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lucasnoah/vitestgpt/internal/config"
	"github.com/lucasnoah/vitestgpt/internal/llm"
)

// resetFlags returns every flag in the tree to its default so one
// invocation's flags do not leak into the next.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func executeCommand(args ...string) (string, error) {
	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// --- fakes ---

type fakeCompleter struct {
	replies []string
	calls   int
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.Request) (string, error) {
	f.calls++
	if len(f.replies) == 0 {
		return "", errors.New("unexpected completion")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

type fakeCommand struct {
	runExit int
	calls   [][]string
}

func (f *fakeCommand) Run(_ context.Context, _ string, name string, args ...string) (string, int, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	for _, a := range args {
		if a == "--version" {
			return "vitest/1.6.0", 0, nil
		}
	}
	if f.runExit == 0 {
		return " Test Files  1 passed (1)\n      Tests  2 passed (2)\n", 0, nil
	}
	return " Tests  1 failed | 1 passed (2)\n", f.runExit, nil
}

// workspace is a temp project plus a config that keeps every side effect
// inside the test's directories.
type workspace struct {
	dir    string
	config string
	input  string
	output string
}

func newWorkspace(t *testing.T, source string) workspace {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	state := t.TempDir()

	cfg := "history:\n" +
		"  dsn: " + filepath.Join(state, "history.db") + "\n" +
		"  runs_dir: " + filepath.Join(state, "runs") + "\n" +
		"logging:\n" +
		"  level: error\n" +
		"  dir: " + filepath.Join(state, "logs") + "\n" +
		"repair:\n" +
		"  max_attempts: 2\n" +
		"  grace_period: 0s\n"
	ws := workspace{
		dir:    dir,
		config: filepath.Join(dir, "vitestgpt.yaml"),
		input:  filepath.Join(dir, "math.ts"),
		output: filepath.Join(dir, "math.test.ts"),
	}
	files := map[string]string{
		ws.config:                          cfg,
		ws.input:                           source,
		filepath.Join(dir, "package.json"): `{"name":"demo"}`,
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return ws
}

func useFakes(t *testing.T, fc *fakeCompleter, cmd *fakeCommand) {
	t.Helper()
	prevCompleter, prevRunner := newCompleter, commandRunner
	newCompleter = func(context.Context, *config.Config, *zap.Logger) (llm.Completer, error) {
		return fc, nil
	}
	commandRunner = cmd
	t.Cleanup(func() {
		newCompleter, commandRunner = prevCompleter, prevRunner
	})
}

func runID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if id, ok := strings.CutPrefix(line, "Run id: "); ok {
			return strings.TrimSpace(id)
		}
	}
	t.Fatalf("no run id in output:\n%s", out)
	return ""
}

// --- commands ---

func TestVersionCommand(t *testing.T) {
	SetVersion("test-version")
	out, err := executeCommand("version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "test-version") {
		t.Errorf("expected version output to contain 'test-version', got: %s", out)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := executeCommand("--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedSubcommands := []string{"generate", "isolate", "history", "config", "prompts", "db", "serve", "version"}
	for _, sub := range expectedSubcommands {
		if !strings.Contains(out, sub) {
			t.Errorf("help output missing subcommand %q", sub)
		}
	}
}

func TestSubcommandHelp(t *testing.T) {
	for _, args := range [][]string{
		{"history", "list"}, {"history", "show"}, {"history", "stats"},
		{"config", "validate"}, {"config", "show"},
		{"prompts", "list"}, {"prompts", "install"},
		{"db", "migrate"}, {"db", "reset"}, {"serve"},
	} {
		out, err := executeCommand(append(args, "--help")...)
		if err != nil {
			t.Errorf("%v --help failed: %v", args, err)
		}
		if out == "" {
			t.Errorf("%v --help produced no output", args)
		}
	}
}

func TestExecuteCommand_FlagsDoNotLeak(t *testing.T) {
	ws := newWorkspace(t, "")
	if _, err := executeCommand("config", "show", "--help"); err != nil {
		t.Fatalf("config show --help: %v", err)
	}
	out, err := executeCommand("config", "show", "-c", ws.config)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "Usage:") || !strings.Contains(out, "# source: "+ws.config) {
		t.Errorf("help flag leaked into the next invocation:\n%s", out)
	}

	if _, err := executeCommand("db", "reset", "-c", ws.config, "--yes"); err != nil {
		t.Fatalf("reset --yes: %v", err)
	}
	if _, err := executeCommand("db", "reset", "-c", ws.config); err == nil {
		t.Error("--yes leaked into the next invocation")
	}
}

func TestUnknownCommand(t *testing.T) {
	_, err := executeCommand("nonexistent")
	if err == nil {
		t.Error("expected error for unknown command, got nil")
	}
}

func TestConfigValidate(t *testing.T) {
	ws := newWorkspace(t, "")
	out, err := executeCommand("config", "validate", "-c", ws.config)
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Configuration is valid.") {
		t.Errorf("output = %s", out)
	}

	bad := filepath.Join(ws.dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("llm:\n  provider: nope\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = executeCommand("config", "validate", "-c", bad)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(out, "llm.provider") {
		t.Errorf("output = %s", out)
	}
}

func TestConfigShow(t *testing.T) {
	ws := newWorkspace(t, "")
	out, err := executeCommand("config", "show", "-c", ws.config)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"# source: " + ws.config, "max_attempts: 2", "write_model: o4-mini"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestIsolateCommand(t *testing.T) {
	ws := newWorkspace(t, "const RATE = 2\n\nexport function scale(n: number) { return n * RATE }\n")
	out, err := executeCommand("isolate", "-i", ws.input, "-f", "scale")
	if err != nil {
		t.Fatalf("isolate: %v", err)
	}
	want := "const RATE = 2\n\nexport function scale(n: number) { return n * RATE }\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	_, err = executeCommand("isolate", "-i", ws.input, "-f", "missing")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v", err)
	}
}

func TestPromptsInstall(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "prompts")
	out, err := executeCommand("prompts", "install", "--dir", dir)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if strings.Count(out, "wrote ") != 5 {
		t.Errorf("expected five templates written:\n%s", out)
	}
	out, err = executeCommand("prompts", "install", "--dir", dir)
	if err != nil {
		t.Fatalf("second install: %v", err)
	}
	if !strings.Contains(out, "already present") {
		t.Errorf("output = %s", out)
	}
}

func TestDBResetRequiresConfirmation(t *testing.T) {
	ws := newWorkspace(t, "")
	_, err := executeCommand("db", "reset", "-c", ws.config)
	if err == nil {
		t.Fatal("expected reset without --yes to fail")
	}
	if _, err := executeCommand("db", "reset", "-c", ws.config, "--yes"); err != nil {
		t.Fatalf("reset --yes: %v", err)
	}
}

func TestGenerate_EndToEnd(t *testing.T) {
	ws := newWorkspace(t, "export function add(a: number, b: number) { return a + b }\n")
	fc := &fakeCompleter{replies: []string{
		"1. adds positives\n2. adds negatives",
		"```ts\nimport { add } from './math'\nimport { it, expect } from 'vitest'\n\nit('adds', () => expect(add(1, 2)).toBe(3))\n```",
	}}
	cmd := &fakeCommand{}
	useFakes(t, fc, cmd)

	out, err := executeCommand("generate", "-c", ws.config, "-i", ws.input, "-f", "add", "-o", ws.output)
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Unit tests for add written to "+ws.output) {
		t.Errorf("output = %s", out)
	}
	data, err := os.ReadFile(ws.output)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "import { add } from './math'") {
		t.Errorf("test file = %q", data)
	}
	if fc.calls != 2 {
		t.Errorf("completions = %d, want 2", fc.calls)
	}

	id := runID(t, out)
	out, err = executeCommand("history", "list", "-c", ws.config)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "passed") {
		t.Errorf("history list missing run:\n%s", out)
	}

	out, err = executeCommand("history", "show", id, "-c", ws.config, "--conversation")
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	for _, want := range []string{"Status:   passed", "setup", "finish", "#1 exit 0", "--- assistant ---"} {
		if !strings.Contains(out, want) {
			t.Errorf("history show missing %q:\n%s", want, out)
		}
	}
}

func TestGenerate_NotExportedExitsWithMessage(t *testing.T) {
	ws := newWorkspace(t, "function add(a: number, b: number) { return a + b }\n")
	fc := &fakeCompleter{}
	useFakes(t, fc, &fakeCommand{})

	out, err := executeCommand("generate", "-c", ws.config, "-i", ws.input, "-f", "add", "-o", ws.output)
	if !errors.Is(err, errHalted) {
		t.Fatalf("err = %v, want errHalted", err)
	}
	if !strings.Contains(out, `Function "add" is not exported`) {
		t.Errorf("output = %s", out)
	}
	if fc.calls != 0 {
		t.Errorf("no completions expected, got %d", fc.calls)
	}
}

func TestGenerate_BudgetExhausted(t *testing.T) {
	ws := newWorkspace(t, "export function add(a: number, b: number) { return a - b }\n")
	fc := &fakeCompleter{replies: []string{
		"plan",
		"it('adds', () => {})",
		"not sure what to do",
		"still not sure",
	}}
	useFakes(t, fc, &fakeCommand{runExit: 1})

	out, err := executeCommand("generate", "-c", ws.config, "-i", ws.input, "-f", "add", "-o", ws.output)
	if !errors.Is(err, errHalted) {
		t.Fatalf("err = %v, want errHalted", err)
	}
	if !strings.Contains(out, "still failing after 2 attempts") {
		t.Errorf("output = %s", out)
	}

	id := runID(t, out)
	out, err = executeCommand("history", "show", id, "-c", ws.config)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	if !strings.Contains(out, "Status:   halted") || !strings.Contains(out, "#2 exit 1") {
		t.Errorf("history show:\n%s", out)
	}
}

func TestHistoryStats(t *testing.T) {
	ws := newWorkspace(t, "export function add(a: number, b: number) { return a + b }\n")
	out, err := executeCommand("history", "stats", "-c", ws.config, "--format", "text")
	if err != nil {
		t.Fatalf("stats on empty ledger: %v", err)
	}
	if !strings.Contains(out, "No runs recorded.") {
		t.Errorf("output = %s", out)
	}

	fc := &fakeCompleter{replies: []string{"plan", "it('adds', () => {})"}}
	useFakes(t, fc, &fakeCommand{})
	if out, err := executeCommand("generate", "-c", ws.config, "-i", ws.input, "-f", "add", "-o", ws.output); err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}

	out, err = executeCommand("history", "stats", "-c", ws.config, "--format", "text")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, want := range []string{"Runs: 1 (passed 1", "Pass rate: 100.0%", "STAGE", "setup", "add"} {
		if !strings.Contains(out, want) {
			t.Errorf("stats missing %q:\n%s", want, out)
		}
	}

	out, err = executeCommand("history", "stats", "-c", ws.config, "--format", "json")
	if err != nil {
		t.Fatalf("stats json: %v", err)
	}
	if !strings.Contains(out, `"pass_pct": 100`) {
		t.Errorf("json output = %s", out)
	}
	if _, err := executeCommand("history", "stats", "-c", ws.config, "--format", "text"); err != nil {
		t.Fatal(err)
	}
}

func TestGenerate_MissingInput(t *testing.T) {
	ws := newWorkspace(t, "")
	useFakes(t, &fakeCompleter{}, &fakeCommand{})
	_, err := executeCommand("generate", "-c", ws.config, "-i", filepath.Join(ws.dir, "nope.ts"), "-f", "add", "-o", ws.output)
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Errorf("err = %v", err)
	}
}
