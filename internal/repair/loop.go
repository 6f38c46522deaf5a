// Package repair runs the generated tests and lets the model repair either the
// tests or the source until they pass, the model gives up, or the attempt
// budget runs out.
package repair

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/lucasnoah/vitestgpt/internal/isolate"
	"github.com/lucasnoah/vitestgpt/internal/llm"
	"github.com/lucasnoah/vitestgpt/internal/pipeline"
	"github.com/lucasnoah/vitestgpt/internal/project"
	"github.com/lucasnoah/vitestgpt/internal/prompt"
	"github.com/lucasnoah/vitestgpt/internal/testrunner"
	"github.com/lucasnoah/vitestgpt/internal/watch"
)

// State of the loop.
type State int

const (
	Running State = iota
	Passed
	ExplicitExit
	BudgetExhausted
)

func (s State) String() string {
	switch s {
	case Passed:
		return "passed"
	case ExplicitExit:
		return "explicit_exit"
	case BudgetExhausted:
		return "budget_exhausted"
	default:
		return "running"
	}
}

// Outcome is the terminal state reached by Run.
type Outcome struct {
	State      State
	Iterations int
	Message    string
}

// TestRunner executes the generated test file.
type TestRunner interface {
	Run(ctx context.Context, testFile, pattern string) (*testrunner.Result, error)
}

// Renderer renders a named prompt template.
type Renderer interface {
	Render(name string, vars prompt.Vars) (string, error)
}

// Waiter blocks until a file satisfies a predicate.
type Waiter interface {
	WaitUntil(ctx context.Context, path string, pred watch.Predicate) (string, error)
}

// Recorder persists each test attempt.
type Recorder interface {
	LogTestAttempt(runID string, iteration, exitCode int, summary string, durationMs int) error
}

// Config bounds and tunes the loop.
type Config struct {
	MaxAttempts     int
	GracePeriod     time.Duration
	TestNamePattern string
	Model           string
}

// DefaultMaxAttempts is used when Config.MaxAttempts is not positive.
const DefaultMaxAttempts = 5

// Loop is the bounded test-and-repair controller.
type Loop struct {
	runner   TestRunner
	prompts  Renderer
	waiter   Waiter
	logger   *zap.Logger
	recorder Recorder
	cfg      Config
	sleep    func(ctx context.Context, d time.Duration) error
}

// New creates a Loop.
func New(runner TestRunner, prompts Renderer, waiter Waiter, logger *zap.Logger, cfg Config) *Loop {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		runner:  runner,
		prompts: prompts,
		waiter:  waiter,
		logger:  logger,
		cfg:     cfg,
		sleep:   sleepCtx,
	}
}

// WithRecorder sets the attempt recorder.
func (l *Loop) WithRecorder(r Recorder) *Loop {
	l.recorder = r
	return l
}

// Run drives the loop over pc. Reaching a terminal state is never an error;
// errors are reserved for failures of the runner, the model, or the filesystem.
func (l *Loop) Run(ctx context.Context, pc *pipeline.Context) (*Outcome, error) {
	limit := l.cfg.MaxAttempts
	for i := 0; i < limit; i++ {
		iteration := i + 1
		log := l.logger.With(zap.Int("iteration", iteration), zap.Int("limit", limit))

		res, err := l.runner.Run(ctx, pc.OutputFile, l.cfg.TestNamePattern)
		if err != nil {
			return nil, fmt.Errorf("run tests (attempt %d): %w", iteration, err)
		}
		pc.RecordAttempt(res.Output, res.ExitCode)
		l.record(pc.ID, iteration, res)

		if res.ExitCode == 0 {
			log.Info("tests passed", zap.String("summary", res.Summary))
			return &Outcome{State: Passed, Iterations: iteration}, nil
		}
		log.Info("tests failed", zap.Int("exit_code", res.ExitCode), zap.String("summary", res.Summary))

		p, err := l.prompts.Render(prompt.OnTestFailed, prompt.Vars{
			"command":      res.Command,
			"vitestOutput": res.Output,
		})
		if err != nil {
			return nil, err
		}
		reply, err := pc.SendHumanPrompt(ctx, p, l.cfg.Model, true)
		if err != nil {
			return nil, fmt.Errorf("request repair: %w", err)
		}

		action := ParseAction(reply)
		log.Info("repair directive", zap.Stringer("action", action.Kind))

		switch action.Kind {
		case Unrecognized:
			log.Warn("reply had no directive, retrying", zap.Int("reply_len", len(reply)))
			pc.DropLastAssistant()

		case Exit:
			pc.Continue = false
			pc.MessageToUser = action.Payload
			return &Outcome{State: ExplicitExit, Iterations: iteration, Message: action.Payload}, nil

		case FixUnitTest:
			if err := project.WriteFile(pc.OutputFile, action.Payload); err != nil {
				return nil, err
			}
			pc.TestFileContents = action.Payload

		case FixSourceCode:
			if err := l.fixSourceCode(ctx, pc, action.Payload, log); err != nil {
				return nil, err
			}
		}
	}

	msg := fmt.Sprintf("tests for %s still failing after %d attempts", pc.FunctionName, limit)
	l.logger.Warn("repair budget exhausted", zap.Int("limit", limit))
	pc.Halt(msg)
	return &Outcome{State: BudgetExhausted, Iterations: limit, Message: msg}, nil
}

// fixSourceCode asks the model to apply diff to the whole source file, writes
// the result, then waits until no conflict markers remain.
func (l *Loop) fixSourceCode(ctx context.Context, pc *pipeline.Context, diff string, log *zap.Logger) error {
	current, err := os.ReadFile(pc.InputFile)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	p, err := l.prompts.Render(prompt.ApplyDiffToSourceCode, prompt.Vars{
		"diff":       diff,
		"sourceCode": string(current),
	})
	if err != nil {
		return err
	}
	patched, err := pc.OneShot(ctx, p, l.cfg.Model)
	if err != nil {
		return fmt.Errorf("apply diff: %w", err)
	}
	if err := project.WriteFile(pc.InputFile, llm.StripCodeFence(patched)); err != nil {
		return err
	}
	log.Info("source updated", zap.String("path", pc.InputFile))

	if err := l.sleep(ctx, l.cfg.GracePeriod); err != nil {
		return err
	}
	log.Info("waiting for conflict markers to be resolved", zap.String("path", pc.InputFile))
	content, err := l.waiter.WaitUntil(ctx, pc.InputFile, watch.Resolved)
	if err != nil {
		return fmt.Errorf("wait for source fix: %w", err)
	}
	log.Info("source resolved, continuing")

	pc.SourceText = content
	snippet, err := isolate.New(pc.Lang).Extract(ctx, content, pc.FunctionName)
	if err != nil {
		log.Warn("could not re-isolate function, keeping previous snippet", zap.Error(err))
		return nil
	}
	pc.IsolatedFunction = snippet.Text
	return nil
}

func (l *Loop) record(runID string, iteration int, res *testrunner.Result) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.LogTestAttempt(runID, iteration, res.ExitCode, res.Summary, res.DurationMs); err != nil {
		l.logger.Warn("record test attempt", zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
