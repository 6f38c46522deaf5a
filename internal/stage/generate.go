package stage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lucasnoah/vitestgpt/internal/llm"
	"github.com/lucasnoah/vitestgpt/internal/pipeline"
	"github.com/lucasnoah/vitestgpt/internal/project"
	"github.com/lucasnoah/vitestgpt/internal/prompt"
)

// Testplan asks the model for a test plan within the conversation.
type Testplan struct {
	base
	prompts Renderer
}

// NewTestplan creates the testplan stage.
func NewTestplan(prompts Renderer, logger *zap.Logger) *Testplan {
	return &Testplan{base: newBase(NameTestplan, logger), prompts: prompts}
}

// Process implements orchestrator.Stage.
func (s *Testplan) Process(ctx context.Context, pc *pipeline.Context) error {
	p, err := s.prompts.Render(prompt.GenerateTestplan, prompt.Vars{
		"functionName": pc.FunctionName,
		"language":     pc.Lang,
		"function":     pc.IsolatedFunction,
		"dependencies": project.Dependencies(pc.Manifest),
	})
	if err != nil {
		return err
	}
	reply, err := pc.SendHumanPrompt(ctx, p, "", true)
	if err != nil {
		return fmt.Errorf("generate testplan: %w", err)
	}
	pc.Testplan = reply
	s.log(pc).Info("testplan generated", zap.Int("chars", len(reply)))
	return nil
}

// Write asks a dedicated model for the test file, outside the conversation
// context, and writes it to the output path.
type Write struct {
	base
	prompts Renderer
	model   string
}

// NewWrite creates the write stage.
func NewWrite(prompts Renderer, model string, logger *zap.Logger) *Write {
	return &Write{base: newBase(NameWrite, logger), prompts: prompts, model: model}
}

// Process implements orchestrator.Stage.
func (s *Write) Process(ctx context.Context, pc *pipeline.Context) error {
	p, err := s.prompts.Render(prompt.WriteUnitTests, prompt.Vars{
		"functionName":    pc.FunctionName,
		"language":        pc.Lang,
		"function":        pc.IsolatedFunction,
		"testplan":        pc.Testplan,
		"importStatement": project.ImportStatement(pc.FunctionName, pc.RelativeImport, pc.UsesDefaultExport),
	})
	if err != nil {
		return err
	}
	reply, err := pc.SendHumanPrompt(ctx, p, s.model, false)
	if err != nil {
		return fmt.Errorf("write unit tests: %w", err)
	}

	code := llm.StripCodeFence(reply)
	if err := project.WriteFile(pc.OutputFile, code); err != nil {
		return err
	}
	pc.TestFileContents = code
	s.log(pc).Info("unit tests written", zap.String("path", pc.OutputFile), zap.String("model", s.model))
	return nil
}
