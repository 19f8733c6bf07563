package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	tcmcp "github.com/valter-silva-au/taskclock/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the taskclock MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the taskclock MCP server on stdio",
	Long: `Start the taskclock MCP server on stdio transport.

The server exposes the signed-in user's tasks as MCP tools that AI
assistants can call: list_tasks, get_task, create_task, update_task,
complete_task, delete_task, sweep_tasks, get_metrics and get_alerts.
The expiry sweeper keeps running while the server is up.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireStore(); err != nil {
			return err
		}

		srv := tcmcp.NewServer(TaskStore, Clock, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
