// Package stage implements the steps of a test-generation run and composes
// them into the default chain.
package stage

import (
	"context"

	"go.uber.org/zap"

	"github.com/lucasnoah/vitestgpt/internal/orchestrator"
	"github.com/lucasnoah/vitestgpt/internal/pipeline"
	"github.com/lucasnoah/vitestgpt/internal/prompt"
	"github.com/lucasnoah/vitestgpt/internal/repair"
	"github.com/lucasnoah/vitestgpt/internal/testrunner"
)

// Stage names, in default execution order.
const (
	NameSetup    = "setup"
	NameAnalysis = "analysis"
	NameTestplan = "testplan"
	NameWrite    = "write"
	NameTest     = "test"
	NameFinish   = "finish"
)

// DefaultWriteModel is the model used for the test-writing turn.
const DefaultWriteModel = "o4-mini"

// Resolver locates the test runner for a project directory.
type Resolver interface {
	Resolve(ctx context.Context, projectDir string) (*testrunner.Binary, error)
}

// Renderer renders a named prompt template.
type Renderer interface {
	Render(name string, vars prompt.Vars) (string, error)
}

// Repairer runs the test-and-repair loop.
type Repairer interface {
	Run(ctx context.Context, pc *pipeline.Context) (*repair.Outcome, error)
}

// Deps are the collaborators shared by the default stages.
type Deps struct {
	Resolver   Resolver
	Prompts    Renderer
	Repair     Repairer
	WriteModel string
	Logger     *zap.Logger
}

// Default returns the standard chain: setup, analysis, testplan, write, test,
// finish.
func Default(d Deps) []orchestrator.Stage {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	model := d.WriteModel
	if model == "" {
		model = DefaultWriteModel
	}
	return []orchestrator.Stage{
		NewSetup(d.Resolver, logger),
		NewAnalysis(logger),
		NewTestplan(d.Prompts, logger),
		NewWrite(d.Prompts, model, logger),
		NewTest(d.Repair, logger),
		NewFinish(logger),
	}
}

type base struct {
	name   string
	logger *zap.Logger
}

func newBase(name string, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{name: name, logger: logger.With(zap.String("stage", name))}
}

func (b base) Name() string { return b.name }

func (b base) log(pc *pipeline.Context) *zap.Logger {
	return b.logger.With(zap.String("run", pc.ID))
}
