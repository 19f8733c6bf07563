package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Event types written by the task store and identity provider.
const (
	EventTaskCreated   = "task.created"
	EventTaskUpdated   = "task.updated"
	EventTaskCompleted = "task.completed"
	EventTaskExpired   = "task.expired"
	EventTaskDeleted   = "task.deleted"
	EventTasksCleared  = "tasks.cleared"
	EventSignedUp      = "auth.signed_up"
	EventSignedIn      = "auth.signed_in"
	EventSignedOut     = "auth.signed_out"
)

// Event represents a single observable event in the system.
type Event struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"` // INFO, WARN, ERROR
	Type    string         `json:"type"`  // e.g. "task.created", "auth.signed_in"
	Message string         `json:"msg"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventFilter specifies criteria for reading events. TypePrefix matches a
// family such as "task.".
type EventFilter struct {
	Since      *time.Time
	Until      *time.Time
	Type       string
	TypePrefix string
	Level      string
}

// EventLog defines the interface for writing and reading events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog implements EventLog using an append-only JSONL file.
type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog opens (creating if needed) the JSONL event log at path.
func NewJSONLEventLog(path string) (EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{path: path, file: f}, nil
}

func (l *jsonlEventLog) Write(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event %s: %w", event.Type, err)
	}
	return nil
}

// Read scans the log from the start and returns matching events in
// write order. Malformed lines are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if filter.matches(event) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}
	return events, nil
}

func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func (f EventFilter) matches(event Event) bool {
	switch {
	case f.Since != nil && event.Time.Before(*f.Since):
		return false
	case f.Until != nil && event.Time.After(*f.Until):
		return false
	case f.Type != "" && event.Type != f.Type:
		return false
	case f.TypePrefix != "" && !strings.HasPrefix(event.Type, f.TypePrefix):
		return false
	case f.Level != "" && event.Level != f.Level:
		return false
	}
	return true
}

// Recorder turns domain notifications into timestamped events. It
// satisfies the EventLogger interface the core services depend on.
type Recorder struct {
	log EventLog
	now func() time.Time
}

// NewRecorder wraps log. A nil now uses time.Now.
func NewRecorder(log EventLog, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{log: log, now: now}
}

// LogEvent writes eventType with data, stamped in UTC.
func (r *Recorder) LogEvent(eventType string, data map[string]any) error {
	return r.log.Write(Event{
		Time:    r.now().UTC(),
		Level:   levelFor(eventType),
		Type:    eventType,
		Message: messageFor(eventType, data),
		Data:    data,
	})
}

func levelFor(eventType string) string {
	if eventType == EventTaskExpired {
		return "WARN"
	}
	return "INFO"
}

func messageFor(eventType string, data map[string]any) string {
	id, _ := data["task_id"].(string)
	switch eventType {
	case EventTaskCreated:
		return "task " + id + " created"
	case EventTaskUpdated:
		return "task " + id + " updated"
	case EventTaskCompleted:
		return "task " + id + " completed"
	case EventTaskExpired:
		return "task " + id + " expired"
	case EventTaskDeleted:
		return "task " + id + " deleted"
	case EventTasksCleared:
		return "all tasks cleared"
	case EventSignedUp:
		return "account created"
	case EventSignedIn:
		return "signed in"
	case EventSignedOut:
		return "signed out"
	}
	return eventType
}
