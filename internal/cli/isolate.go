package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/vitestgpt/internal/isolate"
	"github.com/lucasnoah/vitestgpt/internal/project"
)

var isolateCmd = &cobra.Command{
	Use:   "isolate",
	Short: "Print the isolated snippet for a function",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		function, _ := cmd.Flags().GetString("function")

		path, err := project.EnsureFileExists(input)
		if err != nil {
			return err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read source: %w", err)
		}

		snippet, err := isolate.New(project.DetectLanguage(path)).Extract(cmd.Context(), string(src), function)
		if err != nil {
			return fmt.Errorf("isolate %s: %w", function, err)
		}
		if deps, _ := cmd.Flags().GetBool("deps"); deps {
			for _, d := range snippet.Dependencies {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), snippet.Text)
		return nil
	},
}

func init() {
	isolateCmd.Flags().StringP("input", "i", "", "source file")
	isolateCmd.Flags().StringP("function", "f", "", "function name")
	isolateCmd.Flags().Bool("deps", false, "print only the referenced top-level declarations")
	_ = isolateCmd.MarkFlagRequired("input")
	_ = isolateCmd.MarkFlagRequired("function")
}
