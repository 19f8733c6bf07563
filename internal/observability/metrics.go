package observability

import (
	"fmt"
	"time"
)

// Metrics holds counters derived from the event log.
type Metrics struct {
	TasksCreated    int            `json:"tasks_created"`
	TasksCompleted  int            `json:"tasks_completed"`
	TasksExpired    int            `json:"tasks_expired"`
	TasksDeleted    int            `json:"tasks_deleted"`
	TasksByPriority map[string]int `json:"tasks_by_priority"`
	SignIns         int            `json:"sign_ins"`
	SignUps         int            `json:"sign_ups"`
	CompletionRate  float64        `json:"completion_rate"`
	EventCount      int            `json:"event_count"`
	OldestEvent     *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent     *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator that reads from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate aggregates every event since the given time. CompletionRate is
// completed / (completed + expired), or zero when neither happened.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{TasksByPriority: make(map[string]int)}
	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case EventTaskCreated:
			m.TasksCreated++
			if p, ok := event.Data["priority"].(string); ok {
				m.TasksByPriority[p]++
			}
		case EventTaskCompleted:
			m.TasksCompleted++
		case EventTaskExpired:
			m.TasksExpired++
		case EventTaskDeleted:
			m.TasksDeleted++
		case EventSignedIn:
			m.SignIns++
		case EventSignedUp:
			m.SignUps++
		}
	}

	if finished := m.TasksCompleted + m.TasksExpired; finished > 0 {
		m.CompletionRate = float64(m.TasksCompleted) / float64(finished)
	}
	return m, nil
}
