package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskclock/internal/core"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

// shortIDLen is how much of a task id list output shows. Any unique prefix
// is accepted wherever a task id is expected.
const shortIDLen = 8

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks (create, list, show, update, complete, delete, clear)",
	Long: `Manage the signed-in user's tasks.

Every task has a deadline. Pending tasks expire automatically once their
deadline passes; completing a task before then stops the clock.`,
}

var (
	taskDescription string
	taskPriority    string
	taskIn          string
	taskAt          string
	taskAllowPast   bool
	taskTitle       string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new pending task",
	Long: `Create a new pending task. The deadline is given either relative to now
with --in (e.g. 90m, 36h, 3d) or absolute with --at (RFC 3339, or
"2006-01-02 15:04" in local time).

A deadline in the past is refused unless --allow-past is given, in which
case the task is created and expires on the next sweep.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}

		now := Clock.Now()
		expiry, err := parseExpiry(taskIn, taskAt, now)
		if err != nil {
			return err
		}
		if !expiry.After(now) && !taskAllowPast {
			return fmt.Errorf("deadline %s is in the past; pass --allow-past to create it anyway",
				expiry.Local().Format(time.RFC1123))
		}

		task, err := TaskStore.Create(cmd.Context(), core.TaskInput{
			Title:       strings.Join(args, " "),
			Description: taskDescription,
			Priority:    models.Priority(strings.ToLower(taskPriority)),
			ExpiryTime:  expiry,
		})
		if err != nil {
			return explain("creating task", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created task %s\n", task.ID)
		fmt.Fprintf(out, "  Title:    %s\n", task.Title)
		fmt.Fprintf(out, "  Priority: %s\n", task.Priority)
		fmt.Fprintf(out, "  Expires:  %s (%s)\n", task.ExpiryTime.Local().Format(time.RFC1123), core.TimeLeft(task, Clock.Now()))
		return nil
	},
}

var (
	taskListFilter string
	taskListSearch string
	taskListJSON   bool
)

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks, nearest deadline first",
	Long: `List tasks in display order: pending tasks by nearest deadline, then
expired and completed tasks by most recent deadline.

--filter accepts all, pending, expired, completed, high, medium or low.
--search matches titles, case-insensitively.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		filter, err := core.ParseFilter(taskListFilter)
		if err != nil {
			return err
		}

		tasks := TaskStore.Search(filter, taskListSearch)
		out := cmd.OutOrStdout()
		if taskListJSON {
			return writeJSON(out, tasks)
		}
		if len(tasks) == 0 {
			fmt.Fprintln(out, "No tasks found.")
			return nil
		}
		printTaskTable(out, tasks, Clock.Now())
		return nil
	},
}

var taskShowJSON bool

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show a task's details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		task, err := resolveTask(args[0])
		if err != nil {
			return err
		}
		if taskShowJSON {
			return writeJSON(cmd.OutOrStdout(), task)
		}
		printTaskDetail(cmd.OutOrStdout(), task, Clock.Now())
		return nil
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "Update a task's title, description, priority or deadline",
	Long: `Update fields of a task. Only the flags given are changed.

Expired and completed tasks keep their deadline; their title, description
and priority can still be edited.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		task, err := resolveTask(args[0])
		if err != nil {
			return err
		}

		var patch core.TaskPatch
		flags := cmd.Flags()
		if flags.Changed("title") {
			patch.Title = &taskTitle
		}
		if flags.Changed("description") {
			patch.Description = &taskDescription
		}
		if flags.Changed("priority") {
			p := models.Priority(strings.ToLower(taskPriority))
			patch.Priority = &p
		}
		if flags.Changed("in") || flags.Changed("at") {
			now := Clock.Now()
			expiry, err := parseExpiry(taskIn, taskAt, now)
			if err != nil {
				return err
			}
			if !expiry.After(now) && !taskAllowPast {
				return fmt.Errorf("deadline %s is in the past; pass --allow-past to set it anyway",
					expiry.Local().Format(time.RFC1123))
			}
			patch.ExpiryTime = &expiry
		}
		if patch.IsEmpty() {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to update.")
			return nil
		}

		updated, err := TaskStore.Update(cmd.Context(), task.ID, patch)
		if err != nil {
			return explain("updating task", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s\n", updated.ID)
		printTaskDetail(cmd.OutOrStdout(), updated, Clock.Now())
		return nil
	},
}

var taskCompleteCmd = &cobra.Command{
	Use:     "complete <task-id>",
	Aliases: []string{"done"},
	Short:   "Mark a pending task completed",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		task, err := resolveTask(args[0])
		if err != nil {
			return err
		}
		done, err := TaskStore.Complete(cmd.Context(), task.ID)
		if err != nil {
			return explain("completing task", err)
		}
		out := cmd.OutOrStdout()
		if task.Status == models.StatusCompleted {
			fmt.Fprintf(out, "Task %s was already completed.\n", done.ID)
			return nil
		}
		early := done.ExpiryTime.Sub(Clock.Now()).Truncate(time.Second)
		if early > 0 {
			fmt.Fprintf(out, "Completed task %s with %s to spare.\n", done.ID, early)
		} else {
			fmt.Fprintf(out, "Completed task %s.\n", done.ID)
		}
		return nil
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:     "delete <task-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		task, err := resolveTask(args[0])
		if err != nil {
			return err
		}
		if err := TaskStore.Delete(cmd.Context(), task.ID); err != nil {
			return explain("deleting task", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s (%s)\n", task.ID, task.Title)
		return nil
	},
}

var taskClearYes bool

var taskClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every task of the signed-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(); err != nil {
			return err
		}
		if !taskClearYes {
			return fmt.Errorf("refusing to delete %d task(s) without --yes", len(TaskStore.Tasks()))
		}
		n := len(TaskStore.Tasks())
		if err := TaskStore.ClearAll(cmd.Context()); err != nil {
			return explain("clearing tasks", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d task(s).\n", n)
		return nil
	},
}

// parseExpiry resolves --in or --at into an absolute deadline.
func parseExpiry(in, at string, now time.Time) (time.Time, error) {
	switch {
	case in != "" && at != "":
		return time.Time{}, fmt.Errorf("use only one of --in and --at")
	case in != "":
		d, err := core.ParseRelative(in)
		if err != nil {
			return time.Time{}, fmt.Errorf("--in: %w", err)
		}
		return now.Add(d), nil
	case at != "":
		if t, err := time.Parse(time.RFC3339, at); err == nil {
			return t, nil
		}
		t, err := time.ParseInLocation("2006-01-02 15:04", at, time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("--at: expected RFC 3339 or \"2006-01-02 15:04\", got %q", at)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("a deadline is required: use --in or --at")
}

// resolveTask finds a task by full id or unique id prefix.
func resolveTask(ref string) (models.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Task{}, &core.ValidationError{Field: "id", Message: "a task id or id prefix is required"}
	}
	if task, err := TaskStore.GetByID(ref); err == nil {
		return task, nil
	}
	var matches []models.Task
	for _, t := range TaskStore.Tasks() {
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return models.Task{}, fmt.Errorf("task %s: %w", ref, core.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return models.Task{}, fmt.Errorf("task id %q is ambiguous: matches %d tasks", ref, len(matches))
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func printTaskTable(w io.Writer, tasks []models.Task, now time.Time) {
	fmt.Fprintf(w, "%-8s  %-9s  %-6s  %-20s  %s\n", "ID", "STATUS", "PRI", "TIME LEFT", "TITLE")
	fmt.Fprintf(w, "%-8s  %-9s  %-6s  %-20s  %s\n", "--", "------", "---", "---------", "-----")
	for _, t := range tasks {
		fmt.Fprintf(w, "%-8s  %-9s  %-6s  %-20s  %s\n",
			shortID(t.ID), t.Status, t.Priority, core.TimeLeft(t, now), t.Title)
	}
}

func printTaskDetail(w io.Writer, t models.Task, now time.Time) {
	fmt.Fprintf(w, "  ID:          %s\n", t.ID)
	fmt.Fprintf(w, "  Title:       %s\n", t.Title)
	if t.Description != "" {
		fmt.Fprintf(w, "  Description: %s\n", t.Description)
	}
	fmt.Fprintf(w, "  Priority:    %s\n", t.Priority)
	fmt.Fprintf(w, "  Status:      %s\n", t.Status)
	fmt.Fprintf(w, "  Expires:     %s\n", t.ExpiryTime.Local().Format(time.RFC1123))
	fmt.Fprintf(w, "  Time left:   %s\n", core.TimeLeft(t, now))
	fmt.Fprintf(w, "  Created:     %s\n", t.CreatedAt.Local().Format(time.RFC1123))
	if t.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed:   %s\n", t.CompletedAt.Local().Format(time.RFC1123))
	}
	if t.ExpiredAt != nil {
		fmt.Fprintf(w, "  Expired:     %s\n", t.ExpiredAt.Local().Format(time.RFC1123))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

func addDeadlineFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&taskIn, "in", "", "Deadline relative to now (e.g. 90m, 36h, 3d)")
	cmd.Flags().StringVar(&taskAt, "at", "", `Absolute deadline (RFC 3339 or "2006-01-02 15:04")`)
	cmd.Flags().BoolVar(&taskAllowPast, "allow-past", false, "Accept a deadline that has already passed")
}

func init() {
	taskCreateCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "Task description")
	taskCreateCmd.Flags().StringVarP(&taskPriority, "priority", "p", "", "Priority: low, medium, high (default from config)")
	addDeadlineFlags(taskCreateCmd)
	_ = taskCreateCmd.RegisterFlagCompletionFunc("priority", completePriorities)

	taskListCmd.Flags().StringVarP(&taskListFilter, "filter", "f", "all", "Filter: all, pending, expired, completed, high, medium, low")
	taskListCmd.Flags().StringVarP(&taskListSearch, "search", "s", "", "Case-insensitive title search")
	taskListCmd.Flags().BoolVar(&taskListJSON, "json", false, "Output as JSON")
	_ = taskListCmd.RegisterFlagCompletionFunc("filter", completeFilters)

	taskShowCmd.Flags().BoolVar(&taskShowJSON, "json", false, "Output as JSON")

	taskUpdateCmd.Flags().StringVar(&taskTitle, "title", "", "New title")
	taskUpdateCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "New description")
	taskUpdateCmd.Flags().StringVarP(&taskPriority, "priority", "p", "", "New priority: low, medium, high")
	addDeadlineFlags(taskUpdateCmd)
	_ = taskUpdateCmd.RegisterFlagCompletionFunc("priority", completePriorities)

	taskClearCmd.Flags().BoolVar(&taskClearYes, "yes", false, "Confirm deleting every task")

	pendingOnly := completeTaskIDs(models.StatusExpired, models.StatusCompleted)
	taskCompleteCmd.ValidArgsFunction = pendingOnly
	for _, c := range []*cobra.Command{taskShowCmd, taskUpdateCmd, taskDeleteCmd} {
		c.ValidArgsFunction = completeTaskIDs()
	}

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskShowCmd, taskUpdateCmd,
		taskCompleteCmd, taskDeleteCmd, taskClearCmd)
	rootCmd.AddCommand(taskCmd)
}
