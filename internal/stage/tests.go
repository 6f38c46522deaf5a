package stage

import (
	"context"

	"go.uber.org/zap"

	"github.com/lucasnoah/vitestgpt/internal/pipeline"
)

// Test runs the generated tests through the repair loop.
type Test struct {
	base
	loop Repairer
}

// NewTest creates the test stage.
func NewTest(loop Repairer, logger *zap.Logger) *Test {
	return &Test{base: newBase(NameTest, logger), loop: loop}
}

// Process implements orchestrator.Stage.
func (s *Test) Process(ctx context.Context, pc *pipeline.Context) error {
	out, err := s.loop.Run(ctx, pc)
	if err != nil {
		return err
	}
	s.log(pc).Info("repair loop finished",
		zap.Stringer("state", out.State),
		zap.Int("iterations", out.Iterations),
		zap.String("message", out.Message))
	return nil
}

// Finish reports the completed run.
type Finish struct {
	base
}

// NewFinish creates the finish stage.
func NewFinish(logger *zap.Logger) *Finish {
	return &Finish{base: newBase(NameFinish, logger)}
}

// Process implements orchestrator.Stage.
func (s *Finish) Process(_ context.Context, pc *pipeline.Context) error {
	s.log(pc).Info("unit tests complete",
		zap.String("function", pc.FunctionName),
		zap.String("output", pc.OutputFile),
		zap.Int("test_runs", len(pc.Attempts)))
	return nil
}
