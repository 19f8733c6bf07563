package observability

import (
	"fmt"
	"sort"
	"time"

	"github.com/valter-silva-au/taskclock/pkg/models"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert conditions.
const (
	ConditionDueSoon        = "task_due_soon"
	ConditionExpiredHigh    = "high_priority_expired"
	ConditionTooManyPending = "too_many_pending"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	TaskID      string        `json:"task_id,omitempty"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire.
type AlertThresholds struct {
	DueSoonHours int `yaml:"due_soon_hours" json:"due_soon_hours"`
	MaxPending   int `yaml:"max_pending" json:"max_pending"`
}

// DefaultAlertThresholds returns the default thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{DueSoonHours: 24, MaxPending: 20}
}

// AlertEngine evaluates alert conditions against a task collection.
type AlertEngine interface {
	Evaluate(tasks []models.Task, now time.Time) []Alert
}

type alertEngine struct {
	thresholds AlertThresholds
}

// NewAlertEngine creates an AlertEngine with the given thresholds.
func NewAlertEngine(thresholds AlertThresholds) AlertEngine {
	return &alertEngine{thresholds: thresholds}
}

// Evaluate returns alerts ordered by severity, then by task deadline.
func (ae *alertEngine) Evaluate(tasks []models.Task, now time.Time) []Alert {
	now = now.UTC()
	var alerts []Alert
	alerts = append(alerts, ae.checkDueSoon(tasks, now)...)
	alerts = append(alerts, ae.checkExpiredHigh(tasks, now)...)
	alerts = append(alerts, ae.checkPendingCount(tasks, now)...)

	sort.SliceStable(alerts, func(i, j int) bool {
		return severityRank(alerts[i].Severity) < severityRank(alerts[j].Severity)
	})
	return alerts
}

// checkDueSoon flags pending tasks whose deadline falls inside the window.
// Severity follows the task's priority.
func (ae *alertEngine) checkDueSoon(tasks []models.Task, now time.Time) []Alert {
	if ae.thresholds.DueSoonHours <= 0 {
		return nil
	}
	window := time.Duration(ae.thresholds.DueSoonHours) * time.Hour

	due := make([]models.Task, 0)
	for _, t := range tasks {
		if t.Status != models.StatusPending {
			continue
		}
		left := t.ExpiryTime.Sub(now)
		if left > 0 && left <= window {
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].ExpiryTime.Before(due[j].ExpiryTime) })

	alerts := make([]Alert, 0, len(due))
	for _, t := range due {
		alerts = append(alerts, Alert{
			ID:          "due-" + t.ID,
			Condition:   ConditionDueSoon,
			Severity:    severityForPriority(t.Priority),
			TaskID:      t.ID,
			Message:     fmt.Sprintf("%q is due in %s", t.Title, t.ExpiryTime.Sub(now).Truncate(time.Minute)),
			TriggeredAt: now,
		})
	}
	return alerts
}

// checkExpiredHigh flags high-priority tasks that ran out of time.
func (ae *alertEngine) checkExpiredHigh(tasks []models.Task, now time.Time) []Alert {
	var alerts []Alert
	for _, t := range tasks {
		if t.Status != models.StatusExpired || t.Priority != models.PriorityHigh {
			continue
		}
		alerts = append(alerts, Alert{
			ID:          "expired-" + t.ID,
			Condition:   ConditionExpiredHigh,
			Severity:    SeverityHigh,
			TaskID:      t.ID,
			Message:     fmt.Sprintf("high priority task %q expired at %s", t.Title, t.ExpiryTime.Format("2006-01-02 15:04 UTC")),
			TriggeredAt: now,
		})
	}
	return alerts
}

// checkPendingCount alerts when more tasks are pending than the threshold.
func (ae *alertEngine) checkPendingCount(tasks []models.Task, now time.Time) []Alert {
	if ae.thresholds.MaxPending <= 0 {
		return nil
	}
	pending := 0
	for _, t := range tasks {
		if t.Status == models.StatusPending {
			pending++
		}
	}
	if pending <= ae.thresholds.MaxPending {
		return nil
	}
	return []Alert{{
		ID:          "pending-count",
		Condition:   ConditionTooManyPending,
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("%d tasks are pending, exceeding the maximum of %d", pending, ae.thresholds.MaxPending),
		TriggeredAt: now,
	}}
}

func severityForPriority(p models.Priority) AlertSeverity {
	switch p {
	case models.PriorityHigh:
		return SeverityHigh
	case models.PriorityMedium:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func severityRank(s AlertSeverity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}
