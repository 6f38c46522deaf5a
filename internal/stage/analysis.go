package stage

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lucasnoah/vitestgpt/internal/isolate"
	"github.com/lucasnoah/vitestgpt/internal/pipeline"
)

// Analysis isolates the target function from the source text.
type Analysis struct {
	base
}

// NewAnalysis creates the analysis stage.
func NewAnalysis(logger *zap.Logger) *Analysis {
	return &Analysis{base: newBase(NameAnalysis, logger)}
}

// Process implements orchestrator.Stage. A missing, unexported or malformed
// function halts the run with a message naming the problem.
func (s *Analysis) Process(ctx context.Context, pc *pipeline.Context) error {
	log := s.log(pc)

	snippet, err := isolate.New(pc.Lang).Extract(ctx, pc.SourceText, pc.FunctionName)
	var msg string
	switch {
	case errors.Is(err, isolate.ErrNotFound):
		msg = fmt.Sprintf("Function %q not found in file %q.", pc.FunctionName, pc.InputFile)
	case errors.Is(err, isolate.ErrNotExported):
		msg = fmt.Sprintf("Function %q is not exported! You must export the function to test it.", pc.FunctionName)
	case errors.Is(err, isolate.ErrUnbalanced):
		msg = fmt.Sprintf("Function %q in %q has unbalanced braces and could not be isolated.", pc.FunctionName, pc.InputFile)
	case err != nil:
		return fmt.Errorf("isolate %s: %w", pc.FunctionName, err)
	}
	if msg != "" {
		log.Error(msg)
		pc.Halt(msg)
		return nil
	}

	pc.IsolatedFunction = snippet.Text
	pc.UsesDefaultExport = snippet.DefaultExport
	log.Info("function isolated",
		zap.String("function", pc.FunctionName),
		zap.Int("dependencies", len(snippet.Dependencies)),
		zap.Bool("default_export", snippet.DefaultExport),
		zap.Bool("async", snippet.Async))
	return nil
}
