package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/vitestgpt/internal/config"
	"github.com/lucasnoah/vitestgpt/internal/db"
	"github.com/lucasnoah/vitestgpt/internal/llm"
	"github.com/lucasnoah/vitestgpt/internal/logging"
	"github.com/lucasnoah/vitestgpt/internal/orchestrator"
	"github.com/lucasnoah/vitestgpt/internal/pipeline"
	"github.com/lucasnoah/vitestgpt/internal/project"
	"github.com/lucasnoah/vitestgpt/internal/prompt"
	"github.com/lucasnoah/vitestgpt/internal/repair"
	"github.com/lucasnoah/vitestgpt/internal/stage"
	"github.com/lucasnoah/vitestgpt/internal/testrunner"
	"github.com/lucasnoah/vitestgpt/internal/watch"
)

// errHalted is returned when the pipeline ends with Continue=false.
var errHalted = errors.New("test generation did not complete")

// Seams replaced by tests.
var newCompleter = defaultCompleter

var commandRunner testrunner.CommandRunner = &testrunner.ExecRunner{}

func defaultCompleter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.Completer, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("no API key: set %s or add it to ~/.vitestgpt/.env", cfg.LLM.APIKeyEnv)
	}
	switch cfg.LLM.Provider {
	case "gemini":
		return llm.NewGeminiClient(ctx, key, logger)
	default:
		return llm.NewOpenAIClient(key, cfg.LLM.BaseURL, logger), nil
	}
}

type generateOpts struct {
	input    string
	function string
	output   string
	attempts int
	model    string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and repair vitest unit tests for one exported function",
	Example: `  vitestgpt generate -i src/utils/common.ts -f formatDate -o src/utils/formatDate.test.ts
  vitestgpt generate -i src/math.ts -f add -o src/math.test.ts --attempts 3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := generateOpts{}
		opts.input, _ = cmd.Flags().GetString("input")
		opts.function, _ = cmd.Flags().GetString("function")
		opts.output, _ = cmd.Flags().GetString("output")
		opts.attempts, _ = cmd.Flags().GetInt("attempts")
		opts.model, _ = cmd.Flags().GetString("model")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runGenerate(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func runGenerate(ctx context.Context, opts generateOpts, out, errOut io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.attempts > 0 {
		cfg.Repair.MaxAttempts = opts.attempts
	}
	if opts.model != "" {
		cfg.LLM.Model = opts.model
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errs[0])
	}

	input, err := project.EnsureFileExists(opts.input)
	if err != nil {
		return err
	}
	output, err := filepath.Abs(opts.output)
	if err != nil {
		return err
	}
	if info, err := os.Stat(filepath.Dir(output)); err != nil || !info.IsDir() {
		return fmt.Errorf("output directory %s does not exist", filepath.Dir(output))
	}

	logger, closeLogs, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Dir:    cfg.Logging.Dir,
	}, errOut)
	if err != nil {
		return err
	}
	defer closeLogs()

	completer, err := newCompleter(ctx, cfg, logger)
	if err != nil {
		return err
	}

	library := prompt.NewLibrary(cfg.Prompts.Dir)
	system, err := library.Render(prompt.SystemPrompt, nil)
	if err != nil {
		return err
	}

	pc := pipeline.New(input, opts.function, output, pipeline.Options{
		Completer:    completer,
		SystemPrompt: system,
		Model:        cfg.LLM.Model,
		Logger:       logger,
	})

	runner := testrunner.NewRunner(commandRunner, testrunner.Options{
		Binary:      cfg.Runner.Binary,
		Timeout:     cfg.RunnerTimeout(),
		OutputLimit: cfg.Repair.OutputLimit,
	}, logger)
	loop := repair.New(runner, library, watch.New(logger), logger, repair.Config{
		MaxAttempts:     cfg.Repair.MaxAttempts,
		GracePeriod:     cfg.GraceDuration(),
		TestNamePattern: cfg.Runner.TestNamePattern,
		Model:           cfg.LLM.Model,
	})
	orch := orchestrator.New(logger, stage.Default(stage.Deps{
		Resolver:   runner,
		Prompts:    library,
		Repair:     loop,
		WriteModel: cfg.LLM.WriteModel,
		Logger:     logger,
	})...)

	var ledger *db.DB
	if cfg.History.IsEnabled() {
		ledger = startLedger(cfg, pc, logger)
	}
	if ledger != nil {
		defer ledger.Close()
		orch = orch.WithRecorder(ledger)
		loop.WithRecorder(ledger)
	}

	results := orch.Run(ctx, pc)
	failure := firstFailure(results)

	if cfg.History.IsEnabled() {
		saveArtifacts(cfg, pc, logger)
	}
	if ledger != nil {
		status := db.StatusPassed
		switch {
		case failure != nil:
			status = db.StatusFailed
		case !pc.Continue:
			status = db.StatusHalted
		}
		if err := ledger.FinishRun(pc.ID, status, runMessage(pc, failure), len(pc.Attempts)); err != nil {
			logger.Warn("record run result", zap.Error(err))
		}
	}

	if pc.Continue {
		fmt.Fprintf(out, "Unit tests for %s written to %s (%d test run(s)).\n", pc.FunctionName, pc.OutputFile, len(pc.Attempts))
		fmt.Fprintf(out, "Run id: %s\n", pc.ID)
		return nil
	}
	if msg := runMessage(pc, failure); msg != "" {
		fmt.Fprintln(out, msg)
	}
	fmt.Fprintf(out, "Run id: %s\n", pc.ID)
	return errHalted
}

func firstFailure(results []orchestrator.StageResult) *orchestrator.StageResult {
	for i := range results {
		if results[i].Outcome == orchestrator.OutcomeFail {
			return &results[i]
		}
	}
	return nil
}

func runMessage(pc *pipeline.Context, failure *orchestrator.StageResult) string {
	if pc.MessageToUser != "" {
		return pc.MessageToUser
	}
	if failure != nil && failure.Err != nil {
		return fmt.Sprintf("stage %s failed: %v", failure.Stage, failure.Err)
	}
	return ""
}

// startLedger opens the ledger and records the run. Ledger problems never
// stop a run.
func startLedger(cfg *config.Config, pc *pipeline.Context, logger *zap.Logger) *db.DB {
	d, _, err := openLedger(cfg)
	if err != nil {
		logger.Warn("run ledger unavailable", zap.Error(err))
		return nil
	}
	if err := d.StartRun(pc.ID, pc.FunctionName, pc.InputFile, pc.OutputFile); err != nil {
		logger.Warn("record run start", zap.Error(err))
		d.Close()
		return nil
	}
	return d
}

func saveArtifacts(cfg *config.Config, pc *pipeline.Context, logger *zap.Logger) {
	store, err := openStore(cfg)
	if err != nil {
		logger.Warn("run store unavailable", zap.Error(err))
		return
	}
	if err := store.Save(pc); err != nil {
		logger.Warn("save run artifacts", zap.Error(err))
		return
	}
	logger.Debug("run artifacts saved", zap.String("dir", filepath.Join(store.BaseDir(), pc.ID)))
}

func openStore(cfg *config.Config) (*pipeline.Store, error) {
	if cfg.History.RunsDir != "" {
		return pipeline.NewStore(cfg.History.RunsDir), nil
	}
	return pipeline.DefaultStore()
}

func init() {
	f := generateCmd.Flags()
	f.StringP("input", "i", "", "source file containing the function")
	f.StringP("function", "f", "", "name of the exported function to test")
	f.StringP("output", "o", "", "path of the test file to write")
	f.Int("attempts", 0, "maximum test runs in the repair loop (default from config)")
	f.String("model", "", "conversational model (default from config)")
	_ = generateCmd.MarkFlagRequired("input")
	_ = generateCmd.MarkFlagRequired("function")
	_ = generateCmd.MarkFlagRequired("output")
}
