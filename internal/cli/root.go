package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

func SetVersion(v string) {
	version = v
}

var configFile string

var rootCmd = &cobra.Command{
	Use:   "vitestgpt",
	Short: "Generate and repair vitest unit tests with an LLM",
	Long: `vitestgpt isolates one exported TypeScript function, asks an LLM for a test plan
and a vitest test file, then runs the tests and lets the model repair the tests or
the source until they pass.

Run history is stored in ~/.vitestgpt/ (SQLite for the ledger, JSON for artifacts).`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to vitestgpt.yaml")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(isolateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(serveCmd)
}
