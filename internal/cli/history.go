package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect previous runs",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d, _, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer d.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := d.ListRuns(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%-36s %-8s %-8s %-20s %-24s %s\n", "RUN", "STATUS", "RUNS", "STARTED", "FUNCTION", "INPUT")
		fmt.Fprintf(w, "%-36s %-8s %-8s %-20s %-24s %s\n",
			strings.Repeat("-", 36),
			strings.Repeat("-", 8),
			strings.Repeat("-", 8),
			strings.Repeat("-", 20),
			strings.Repeat("-", 24),
			strings.Repeat("-", 5))
		for _, r := range runs {
			fmt.Fprintf(w, "%-36s %-8s %-8d %-20s %-24s %s\n",
				r.ID, r.Status, r.Attempts, r.StartedAt, r.FunctionName, r.InputFile)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its stage events and test attempts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d, _, err := openLedger(cfg)
		if err != nil {
			return err
		}
		defer d.Close()

		r, err := d.GetRun(args[0])
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("run %q not found", args[0])
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Run %s: %s\n", r.ID, r.FunctionName)
		fmt.Fprintf(w, "  Status:   %s\n", r.Status)
		fmt.Fprintf(w, "  Input:    %s\n", r.InputFile)
		fmt.Fprintf(w, "  Output:   %s\n", r.OutputFile)
		fmt.Fprintf(w, "  Started:  %s\n", r.StartedAt)
		if r.FinishedAt != "" {
			fmt.Fprintf(w, "  Finished: %s\n", r.FinishedAt)
		}
		if r.Message != "" {
			fmt.Fprintf(w, "  Message:  %s\n", r.Message)
		}

		events, err := d.GetStageEvents(r.ID)
		if err != nil {
			return err
		}
		if len(events) > 0 {
			fmt.Fprintln(w, "  Stages:")
			for _, e := range events {
				line := fmt.Sprintf("    %s %-10s %s", e.Timestamp, e.Stage, e.Event)
				if e.Detail != "" {
					line += ": " + e.Detail
				}
				fmt.Fprintln(w, line)
			}
		}

		attempts, err := d.GetTestAttempts(r.ID)
		if err != nil {
			return err
		}
		if len(attempts) > 0 {
			fmt.Fprintln(w, "  Test runs:")
			for _, a := range attempts {
				fmt.Fprintf(w, "    #%d exit %d (%dms) %s\n", a.Iteration, a.ExitCode, a.DurationMs, a.Summary)
			}
		}

		if conv, _ := cmd.Flags().GetBool("conversation"); conv {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			msgs, err := store.Conversation(r.ID)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "  Conversation:")
			for _, m := range msgs {
				fmt.Fprintf(w, "--- %s ---\n%s\n", m.Role, m.Content)
			}
		}
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of runs to show (0 for all)")
	historyShowCmd.Flags().Bool("conversation", false, "print the saved conversation")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
}
