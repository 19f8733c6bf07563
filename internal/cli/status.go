package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskclock/internal/core"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display tasks grouped by status",
	Long: `Display the signed-in account and its tasks grouped by lifecycle
status: pending (nearest deadline first), expired, then completed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if Identity != nil {
			if id, ok := Identity.Current(); ok {
				fmt.Fprintf(out, "Signed in as %s\n", id.Email)
			}
		}
		if err := TaskStore.LastError(); err != nil {
			fmt.Fprintf(out, "Warning: last load failed: %v\n", err)
		}
		if next, ok := TaskStore.NextExpiry(); ok {
			fmt.Fprintf(out, "Next deadline in %s\n", next.Sub(Clock.Now()).Truncate(time.Second))
		}
		fmt.Fprintln(out)

		tasks := TaskStore.Filter(core.FilterAll)
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No tasks found.")
			return nil
		}

		grouped := make(map[models.TaskStatus][]models.Task)
		for _, t := range tasks {
			grouped[t.Status] = append(grouped[t.Status], t)
		}
		now := Clock.Now()
		for _, status := range models.TaskStatuses {
			group := grouped[status]
			if len(group) == 0 {
				continue
			}
			fmt.Fprintf(out, "== %s (%d) ==\n", strings.ToUpper(string(status)), len(group))
			for _, t := range group {
				fmt.Fprintf(out, "  %-8s  %-6s  %-20s  %s\n", shortID(t.ID), t.Priority, core.TimeLeft(t, now), t.Title)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
