// Package pipeline holds the per-invocation state threaded through every
// stage, and persists run artifacts once a run is done.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lucasnoah/vitestgpt/internal/llm"
)

// Options configures a new Context.
type Options struct {
	Completer    llm.Completer
	SystemPrompt string
	Model        string
	Logger       *zap.Logger
}

// Context is the mutable record for one invocation. Stages receive it by
// pointer and must not run effectful work once Continue is false.
type Context struct {
	ID       string
	Continue bool

	InputFile      string
	FunctionName   string
	OutputFile     string
	ManifestFile   string
	ProjectDir     string
	RelativeImport string
	Manifest       map[string]any

	SourceText        string
	IsolatedFunction  string
	Lang              string
	UsesDefaultExport bool

	History          []llm.Message
	Testplan         string
	TestFileContents string
	Attempts         []Attempt
	MessageToUser    string

	StartedAt time.Time

	completer llm.Completer
	model     string
	logger    *zap.Logger
}

// New creates a Context whose history is seeded with the system prompt.
func New(inputFile, functionName, outputFile string, opts Options) *Context {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.Must(uuid.NewV7()).String()
	return &Context{
		ID:           id,
		Continue:     true,
		InputFile:    inputFile,
		FunctionName: functionName,
		OutputFile:   outputFile,
		History:      []llm.Message{{Role: llm.RoleSystem, Content: opts.SystemPrompt}},
		StartedAt:    time.Now().UTC(),
		completer:    opts.Completer,
		model:        opts.Model,
		logger:       logger.With(zap.String("run", id)),
	}
}

// Logger returns the run-scoped logger.
func (c *Context) Logger() *zap.Logger {
	return c.logger
}

// SystemPrompt returns the first history entry.
func (c *Context) SystemPrompt() string {
	return c.History[0].Content
}

// SendHumanPrompt appends prompt to the history, asks the model, appends and
// returns the reply. With useHistory false the call sees only the system
// prompt and this prompt, but both turns are still recorded. An empty model
// selects the default.
func (c *Context) SendHumanPrompt(ctx context.Context, prompt, model string, useHistory bool) (string, error) {
	c.History = append(c.History, llm.Message{Role: llm.RoleUser, Content: prompt})

	msgs := append([]llm.Message(nil), c.History...)
	if !useHistory {
		msgs = []llm.Message{c.History[0], {Role: llm.RoleUser, Content: prompt}}
	}
	reply, err := c.complete(ctx, model, msgs)
	if err != nil {
		return "", err
	}
	c.History = append(c.History, llm.Message{Role: llm.RoleAssistant, Content: reply})
	return reply, nil
}

// OneShot sends the system prompt and a single prompt without touching history.
func (c *Context) OneShot(ctx context.Context, prompt, model string) (string, error) {
	return c.complete(ctx, model, []llm.Message{c.History[0], {Role: llm.RoleUser, Content: prompt}})
}

// DropLastAssistant removes the newest history entry if it is an assistant turn.
func (c *Context) DropLastAssistant() bool {
	n := len(c.History)
	if n < 2 || c.History[n-1].Role != llm.RoleAssistant {
		return false
	}
	c.History = c.History[:n-1]
	return true
}

// RecordAttempt appends a test execution in order.
func (c *Context) RecordAttempt(result string, exitCode int) {
	c.Attempts = append(c.Attempts, Attempt{Result: result, ExitCode: exitCode})
}

// Halt stops the pipeline. A non-empty msg replaces the user-facing message.
func (c *Context) Halt(msg string) {
	c.Continue = false
	if msg != "" {
		c.MessageToUser = msg
	}
}

func (c *Context) complete(ctx context.Context, model string, msgs []llm.Message) (string, error) {
	if c.completer == nil {
		return "", fmt.Errorf("no completer configured")
	}
	if model == "" {
		model = c.model
	}
	start := time.Now()
	reply, err := c.completer.Complete(ctx, llm.Request{Model: model, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("llm call (%s): %w", model, err)
	}
	c.logger.Debug("llm reply",
		zap.String("model", model),
		zap.Int("messages", len(msgs)),
		zap.Duration("took", time.Since(start)))
	return reply, nil
}

// Result snapshots the context for persistence.
func (c *Context) Result() Result {
	status := "passed"
	if !c.Continue {
		status = "halted"
	}
	attempts := c.Attempts
	if attempts == nil {
		attempts = []Attempt{}
	}
	return Result{
		ID:                c.ID,
		InputFile:         c.InputFile,
		FunctionName:      c.FunctionName,
		OutputFile:        c.OutputFile,
		ManifestFile:      c.ManifestFile,
		Lang:              c.Lang,
		UsesDefaultExport: c.UsesDefaultExport,
		Continue:          c.Continue,
		Status:            status,
		MessageToUser:     c.MessageToUser,
		IsolatedFunction:  c.IsolatedFunction,
		Testplan:          c.Testplan,
		TestFile:          c.TestFileContents,
		Attempts:          attempts,
		StartedAt:         c.StartedAt.Format(time.RFC3339),
		FinishedAt:        time.Now().UTC().Format(time.RFC3339),
	}
}
