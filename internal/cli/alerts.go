package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var alertsNotify bool

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts and warnings",
	Long: `Evaluate alert conditions against the signed-in collection and display
any triggered alerts.

Alerts fire for pending tasks due soon, high-priority tasks that expired,
and too many pending tasks. With --notify they are also posted to the
configured Slack webhook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized")
		}
		if err := requireSession(); err != nil {
			return err
		}

		alerts := AlertEngine.Evaluate(TaskStore.Tasks(), Clock.Now())
		out := cmd.OutOrStdout()

		if len(alerts) == 0 {
			fmt.Fprintln(out, "No active alerts.")
			return nil
		}

		fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			severity := strings.ToUpper(string(alert.Severity))
			fmt.Fprintf(out, "  [%s] %s\n", severity, alert.Message)
			fmt.Fprintf(out, "         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 UTC"))
		}

		if alertsNotify {
			if Notifier == nil {
				return fmt.Errorf("notifications are not enabled; set notifications.enabled and notifications.slack.webhook_url")
			}
			if err := Notifier.Notify(cmd.Context(), alerts); err != nil {
				return fmt.Errorf("sending notification: %w", err)
			}
			fmt.Fprintf(out, "Sent %d alert(s) to Slack.\n", len(alerts))
		}

		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsNotify, "notify", false, "Also post the alerts to the configured Slack webhook")
	rootCmd.AddCommand(alertsCmd)
}
