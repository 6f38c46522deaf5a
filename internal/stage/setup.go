package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/lucasnoah/vitestgpt/internal/pipeline"
	"github.com/lucasnoah/vitestgpt/internal/project"
	"github.com/lucasnoah/vitestgpt/internal/testrunner"
)

// Setup reads the source, finds the project manifest, resolves vitest and
// truncates the output file.
type Setup struct {
	base
	resolver Resolver
}

// NewSetup creates the setup stage.
func NewSetup(resolver Resolver, logger *zap.Logger) *Setup {
	return &Setup{base: newBase(NameSetup, logger), resolver: resolver}
}

// Process implements orchestrator.Stage.
func (s *Setup) Process(ctx context.Context, pc *pipeline.Context) error {
	log := s.log(pc)

	src, err := os.ReadFile(pc.InputFile)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	pc.SourceText = string(src)
	pc.Lang = project.DetectLanguage(pc.InputFile)

	if manifest := project.FindManifest(pc.InputFile); manifest != "" {
		pc.ManifestFile = manifest
		pc.ProjectDir = filepath.Dir(manifest)
		parsed, err := project.ReadManifest(manifest)
		if err != nil {
			log.Warn("could not parse manifest", zap.String("path", manifest), zap.Error(err))
		} else {
			pc.Manifest = parsed
		}
	} else {
		pc.ProjectDir = filepath.Dir(pc.InputFile)
		log.Warn("no package.json found, running from the source directory", zap.String("dir", pc.ProjectDir))
	}

	rel, err := project.RelativeImport(pc.InputFile, pc.OutputFile)
	if err != nil {
		return err
	}
	pc.RelativeImport = rel

	bin, err := s.resolver.Resolve(ctx, pc.ProjectDir)
	if errors.Is(err, testrunner.ErrRunnerUnavailable) {
		log.Error("vitest not found", zap.String("project", pc.ProjectDir))
		pc.Halt(fmt.Sprintf("vitest could not be found for %s. Install it with `npm i -D vitest` or set runner.binary.", pc.ProjectDir))
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve vitest: %w", err)
	}

	if err := project.WriteFile(pc.OutputFile, ""); err != nil {
		return err
	}

	log.Info("setup complete",
		zap.String("input", pc.InputFile),
		zap.String("output", pc.OutputFile),
		zap.String("manifest", pc.ManifestFile),
		zap.String("lang", pc.Lang),
		zap.String("import", pc.RelativeImport),
		zap.String("vitest", bin.String()))
	return nil
}
