package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskclock/internal/core"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display task and account metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include tasks created, completed, expired and deleted, tasks
created per priority, sign-ins and sign-ups, and the completion rate
(completed / (completed + expired)).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized")
		}

		window := strings.TrimSpace(metricsSince)
		if window == "" {
			window = "7d"
		}
		d, err := core.ParseRelative(window)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}
		sinceTime := Clock.Now().UTC().Add(-d)

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			return writeJSON(out, metrics)
		}

		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02 15:04"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Tasks created:", metrics.TasksCreated)
		fmt.Fprintf(out, "  %-24s %d\n", "Tasks completed:", metrics.TasksCompleted)
		fmt.Fprintf(out, "  %-24s %d\n", "Tasks expired:", metrics.TasksExpired)
		fmt.Fprintf(out, "  %-24s %d\n", "Tasks deleted:", metrics.TasksDeleted)
		fmt.Fprintf(out, "  %-24s %.1f%%\n", "Completion rate:", metrics.CompletionRate*100)
		fmt.Fprintf(out, "  %-24s %d\n", "Sign-ups:", metrics.SignUps)
		fmt.Fprintf(out, "  %-24s %d\n", "Sign-ins:", metrics.SignIns)

		if len(metrics.TasksByPriority) > 0 {
			fmt.Fprintln(out, "\n  Tasks by priority:")
			priorities := make([]string, 0, len(metrics.TasksByPriority))
			for p := range metrics.TasksByPriority {
				priorities = append(priorities, p)
			}
			sort.Strings(priorities)
			for _, p := range priorities {
				fmt.Fprintf(out, "    %-20s %d\n", p+":", metrics.TasksByPriority[p])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
