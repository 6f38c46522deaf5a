// Package testrunner locates the project's vitest binary and runs a single
// test file with it.
package testrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrRunnerUnavailable means no working vitest binary could be found.
var ErrRunnerUnavailable = errors.New("vitest is not available: install it with `npm install -D vitest` or set runner.binary")

// Result holds the outcome of one test execution.
type Result struct {
	Command    string `json:"command"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int    `json:"duration_ms"`
	Passed     bool   `json:"passed"`
	Summary    string `json:"summary"`
	Counts     Counts `json:"counts"`
	Output     string `json:"output"`
}

// CommandRunner abstracts process execution for testability. Output is the
// interleaved stdout and stderr.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (output string, exitCode int, err error)
}

// ExecRunner implements CommandRunner with os/exec.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "NO_COLOR=1", "FORCE_COLOR=0")

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return out.String(), -1, fmt.Errorf("exec %s: %w", name, err)
		}
	}
	return out.String(), exitCode, nil
}

// Options configures a Runner.
type Options struct {
	// Binary overrides discovery; it may carry prefix arguments ("npx vitest").
	Binary      string
	ProjectDir  string
	Timeout     time.Duration
	OutputLimit int
}

// Runner executes vitest for one test file at a time.
type Runner struct {
	cmd    CommandRunner
	opts   Options
	logger *zap.Logger
	bin    *Binary
	dir    string
}

// NewRunner creates a Runner.
func NewRunner(cmd CommandRunner, opts Options, logger *zap.Logger) *Runner {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.OutputLimit <= 0 {
		opts.OutputLimit = DefaultOutputLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cmd: cmd, opts: opts, logger: logger, dir: opts.ProjectDir}
}

// Resolve finds the vitest binary for projectDir and remembers it for Run.
func (r *Runner) Resolve(ctx context.Context, projectDir string) (*Binary, error) {
	if projectDir != "" {
		r.dir = projectDir
	}
	if r.opts.Binary != "" {
		fields := strings.Fields(r.opts.Binary)
		r.bin = &Binary{Path: fields[0], Args: fields[1:]}
		return r.bin, nil
	}
	bin, err := Locate(ctx, r.cmd, r.dir)
	if err != nil {
		return nil, err
	}
	r.logger.Info("resolved vitest", zap.String("command", bin.String()))
	r.bin = bin
	return bin, nil
}

// Run executes `<binary> run [--testNamePattern=pattern] testFile`. A non-zero
// exit is reported in the Result, not as an error.
func (r *Runner) Run(ctx context.Context, testFile, pattern string) (*Result, error) {
	if r.bin == nil {
		if _, err := r.Resolve(ctx, r.dir); err != nil {
			return nil, err
		}
	}

	args := append(append([]string{}, r.bin.Args...), "run")
	if pattern != "" {
		args = append(args, "--testNamePattern="+pattern)
	}
	args = append(args, testFile)
	command := strings.Join(append([]string{r.bin.Path}, args...), " ")

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	r.logger.Debug("running tests", zap.String("command", command), zap.String("dir", r.dir))
	start := time.Now()
	output, exitCode, err := r.cmd.Run(ctx, r.dir, r.bin.Path, args...)
	durationMs := int(time.Since(start).Milliseconds())

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Result{
				Command:    command,
				ExitCode:   -1,
				DurationMs: durationMs,
				Summary:    fmt.Sprintf("timeout after %s", r.opts.Timeout),
				Output:     TailOutput(output, r.opts.OutputLimit),
			}, nil
		}
		return nil, fmt.Errorf("run %s: %w", command, err)
	}

	counts := ParseSummary(output)
	return &Result{
		Command:    command,
		ExitCode:   exitCode,
		DurationMs: durationMs,
		Passed:     exitCode == 0,
		Summary:    counts.Describe(exitCode),
		Counts:     counts,
		Output:     TailOutput(output, r.opts.OutputLimit),
	}, nil
}

// ProjectDir returns the directory tests are run from.
func (r *Runner) ProjectDir() string {
	return r.dir
}

// Binary is an executable plus prefix arguments.
type Binary struct {
	Path string
	Args []string
}

func (b Binary) String() string {
	return strings.TrimSpace(b.Path + " " + strings.Join(b.Args, " "))
}

// Locate tries, in order, a global vitest, npx without installing, and the
// project's node_modules/.bin/vitest. The first that answers --version wins.
func Locate(ctx context.Context, cmd CommandRunner, projectDir string) (*Binary, error) {
	candidates := []Binary{
		{Path: "vitest"},
		{Path: "npx", Args: []string{"--no-install", "vitest"}},
		{Path: filepath.Join(projectDir, "node_modules", ".bin", "vitest")},
	}
	for _, c := range candidates {
		args := append(append([]string{}, c.Args...), "--version")
		_, code, err := cmd.Run(ctx, projectDir, c.Path, args...)
		if err == nil && code == 0 {
			found := c
			return &found, nil
		}
	}
	return nil, ErrRunnerUnavailable
}
