package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/vitestgpt/internal/prompt"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage prompt templates",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompt templates and where each resolves from",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, name := range prompt.Names() {
			fmt.Fprintf(w, "%-24s %s\n", name, templateSource(name, cfg.Prompts.Dir))
		}
		return nil
	},
}

var promptsInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Write the built-in templates so they can be edited",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = prompt.BuiltinDir()
		}
		written, err := prompt.InstallBuiltinTemplates(dir)
		if err != nil {
			return err
		}
		if len(written) == 0 {
			cmd.Printf("All templates already present in %s.\n", dir)
			return nil
		}
		for _, path := range written {
			cmd.Printf("wrote %s\n", path)
		}
		return nil
	},
}

func templateSource(name, overrideDir string) string {
	for _, dir := range []string{overrideDir, prompt.BuiltinDir()} {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, name+".md")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return "(built-in)"
}

func init() {
	promptsInstallCmd.Flags().String("dir", "", "target directory (default ~/.vitestgpt/prompts)")
	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsInstallCmd)
}
