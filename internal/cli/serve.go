package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/vitestgpt/internal/logging"
	"github.com/lucasnoah/vitestgpt/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web UI",
	Long: `Start a read-only browser UI on localhost showing recorded runs, their stage
events and test runs, and the saved test plan and test file for each run.

Runs that are still in progress stream new stage events as they are recorded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, _, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		logger, closeLogs, err := logging.New(logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Dir:    cfg.Logging.Dir,
		}, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer closeLogs()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return web.NewServer(database, store, port, logger).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
}
