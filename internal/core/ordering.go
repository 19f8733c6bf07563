package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/valter-silva-au/taskclock/pkg/models"
)

// Filter is a query criterion over the task collection.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterExpired   Filter = "expired"
	FilterCompleted Filter = "completed"
	FilterLow       Filter = "low"
	FilterMedium    Filter = "medium"
	FilterHigh      Filter = "high"
)

// Filters lists every criterion in the order presentation layers show them.
var Filters = []Filter{FilterAll, FilterPending, FilterExpired, FilterCompleted, FilterHigh, FilterMedium, FilterLow}

// ParseFilter accepts a criterion name, "priority=<level>", or the empty
// string (meaning all).
func ParseFilter(s string) (Filter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "priority=")
	s = strings.TrimPrefix(s, "status=")
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range Filters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", invalid("filter", fmt.Sprintf("unknown filter %q", s))
}

// Matches reports whether t satisfies the criterion. Unknown criteria match
// everything, as "all" does.
func (f Filter) Matches(t models.Task) bool {
	switch f {
	case FilterPending:
		return t.Status == models.StatusPending
	case FilterExpired:
		return t.Status == models.StatusExpired
	case FilterCompleted:
		return t.Status == models.StatusCompleted
	case FilterLow:
		return t.Priority == models.PriorityLow
	case FilterMedium:
		return t.Priority == models.PriorityMedium
	case FilterHigh:
		return t.Priority == models.PriorityHigh
	default:
		return true
	}
}

// SortForDisplay orders tasks in place: pending first by nearest deadline,
// then everything else by most recent deadline. Remaining ties fall back to
// creation time and id so the order never depends on storage order.
func SortForDisplay(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return displayLess(tasks[i], tasks[j])
	})
}

func displayLess(a, b models.Task) bool {
	aPending := a.Status == models.StatusPending
	bPending := b.Status == models.StatusPending
	if aPending != bPending {
		return aPending
	}
	if !a.ExpiryTime.Equal(b.ExpiryTime) {
		if aPending {
			return a.ExpiryTime.Before(b.ExpiryTime)
		}
		return a.ExpiryTime.After(b.ExpiryTime)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// matchesSearch does a case-insensitive substring match on the title.
func matchesSearch(t models.Task, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Title), strings.ToLower(query))
}
