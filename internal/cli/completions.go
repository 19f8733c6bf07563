package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskclock/internal/core"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

// completeTaskIDs returns a completion function that lists the signed-in
// user's task ids, skipping tasks in any of excludeStatuses.
func completeTaskIDs(excludeStatuses ...models.TaskStatus) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if TaskStore == nil || TaskStore.UserID() == "" {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		exclude := make(map[models.TaskStatus]bool)
		for _, s := range excludeStatuses {
			exclude[s] = true
		}

		var ids []string
		for _, task := range TaskStore.Filter(core.FilterAll) {
			if exclude[task.Status] {
				continue
			}
			if toComplete == "" || strings.HasPrefix(task.ID, toComplete) {
				// Title as description for better UX.
				ids = append(ids, task.ID+"\t"+string(task.Status)+": "+task.Title)
			}
		}

		return ids, cobra.ShellCompDirectiveNoFileComp
	}
}

// completePriorities is a completion function for priority values.
func completePriorities(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"high\tMost urgent",
		"medium\tDefault",
		"low\tCan wait",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completeFilters is a completion function for list filters.
func completeFilters(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(core.Filters))
	for _, f := range core.Filters {
		out = append(out, string(f))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
