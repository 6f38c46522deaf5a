package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/vitestgpt/internal/analytics"
)

type historyStats struct {
	Summary      *analytics.Summary        `json:"summary"`
	Stages       []analytics.StageDuration `json:"stages"`
	Distribution []analytics.AttemptBucket `json:"test_runs"`
	Functions    []analytics.FunctionStats `json:"functions"`
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise outcomes, stage timings and test runs across recorded runs",
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

		since, _ := cmd.Flags().GetString("since")
		top, _ := cmd.Flags().GetInt("top")

		var st historyStats
		if st.Summary, err = analytics.QuerySummary(d, since); err != nil {
			return err
		}
		if st.Stages, err = analytics.QueryStageDurations(d, since); err != nil {
			return err
		}
		if st.Distribution, err = analytics.QueryAttemptDistribution(d, since); err != nil {
			return err
		}
		if st.Functions, err = analytics.QueryFunctions(d, since, top); err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if format == "json" {
			data, _ := json.MarshalIndent(st, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		w := cmd.OutOrStdout()
		s := st.Summary
		if s.Runs == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return nil
		}
		fmt.Fprintf(w, "Runs: %d (passed %d, halted %d, failed %d, running %d)\n",
			s.Runs, s.Passed, s.Halted, s.Failed, s.Running)
		fmt.Fprintf(w, "Pass rate: %.1f%%  First-run pass: %.1f%%  Avg test runs: %.1f\n",
			s.PassRate, s.FirstRunPass, s.AvgTestRuns)

		if len(st.Stages) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "%-10s %-6s %-8s %-8s %s\n", "STAGE", "COUNT", "AVG(s)", "P50(s)", "P95(s)")
			fmt.Fprintf(w, "%-10s %-6s %-8s %-8s %s\n",
				strings.Repeat("-", 10),
				strings.Repeat("-", 6),
				strings.Repeat("-", 8),
				strings.Repeat("-", 8),
				strings.Repeat("-", 6))
			for _, sd := range st.Stages {
				fmt.Fprintf(w, "%-10s %-6d %-8.1f %-8.1f %.1f\n", sd.Stage, sd.Count, sd.Avg, sd.P50, sd.P95)
			}
		}

		if len(st.Distribution) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Test runs per run:")
			for _, b := range st.Distribution {
				fmt.Fprintf(w, "  %3d: %d run(s), %d passed\n", b.TestRuns, b.Runs, b.Passed)
			}
		}

		if len(st.Functions) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "%-24s %-6s %-7s %s\n", "FUNCTION", "RUNS", "PASSED", "PASS%")
			for _, f := range st.Functions {
				fmt.Fprintf(w, "%-24s %-6d %-7d %.1f\n", f.Function, f.Runs, f.Passed, f.PassRate)
			}
		}
		return nil
	},
}

func init() {
	historyStatsCmd.Flags().String("since", "", "only include runs started at or after this time (YYYY-MM-DD)")
	historyStatsCmd.Flags().Int("top", 10, "number of functions to list (0 for all)")
	historyStatsCmd.Flags().String("format", "text", "Output format: text or json")
	historyCmd.AddCommand(historyStatsCmd)
}
