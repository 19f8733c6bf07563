package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/valter-silva-au/taskclock/pkg/models"
	"gopkg.in/yaml.v3"
)

// TaskPayloadVersion is the schema version written by EncodeTasks.
const TaskPayloadVersion = 1

// taskPayload is the top-level structure of a persisted task collection.
type taskPayload struct {
	Version int           `yaml:"version"`
	Tasks   []models.Task `yaml:"tasks"`
}

// legacyTask is the unversioned record shape written by the first mobile
// release: a bare JSON array with camelCase keys and ISO-8601 strings.
type legacyTask struct {
	ID          string `yaml:"id"`
	UserID      string `yaml:"userId"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Priority    string `yaml:"priority"`
	Status      string `yaml:"status"`
	ExpiryTime  string `yaml:"expiryTime"`
	CreatedAt   string `yaml:"createdAt"`
	UpdatedAt   string `yaml:"updatedAt"`
	CompletedAt string `yaml:"completedAt"`
	ExpiredAt   string `yaml:"expiredAt"`
}

// EncodeTasks serializes an ordered task collection as a versioned YAML
// document.
func EncodeTasks(tasks []models.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []models.Task{}
	}
	data, err := yaml.Marshal(&taskPayload{Version: TaskPayloadVersion, Tasks: tasks})
	if err != nil {
		return nil, fmt.Errorf("encoding tasks: %w", err)
	}
	return data, nil
}

// DecodeTasks parses a task collection written by EncodeTasks or by the
// legacy unversioned format. Order is preserved.
func DecodeTasks(data []byte) ([]models.Task, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return []models.Task{}, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decoding tasks: parsing YAML: %w", err)
	}
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 && root.Content[0].Kind == yaml.SequenceNode {
		return decodeLegacyTasks(root.Content[0])
	}

	var p taskPayload
	if err := root.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding tasks: %w", err)
	}
	switch {
	case p.Version == 0:
		return nil, fmt.Errorf("decoding tasks: missing payload version")
	case p.Version > TaskPayloadVersion:
		return nil, fmt.Errorf("decoding tasks: unsupported payload version %d", p.Version)
	}
	if p.Tasks == nil {
		p.Tasks = []models.Task{}
	}
	return p.Tasks, nil
}

func decodeLegacyTasks(node *yaml.Node) ([]models.Task, error) {
	var raw []legacyTask
	if err := node.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding legacy tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(raw))
	for i, r := range raw {
		t := models.Task{
			ID:          r.ID,
			UserID:      r.UserID,
			Title:       r.Title,
			Description: r.Description,
			Priority:    models.Priority(r.Priority),
			Status:      models.TaskStatus(r.Status),
		}
		if t.Status == "" {
			t.Status = models.StatusPending
		}
		var err error
		if t.ExpiryTime, err = parseLegacyTime(r.ExpiryTime); err != nil {
			return nil, fmt.Errorf("decoding legacy task %d: expiryTime: %w", i, err)
		}
		if t.CreatedAt, err = parseLegacyTime(r.CreatedAt); err != nil {
			return nil, fmt.Errorf("decoding legacy task %d: createdAt: %w", i, err)
		}
		if t.UpdatedAt, err = parseLegacyTime(r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("decoding legacy task %d: updatedAt: %w", i, err)
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
		if r.CompletedAt != "" {
			ts, err := parseLegacyTime(r.CompletedAt)
			if err != nil {
				return nil, fmt.Errorf("decoding legacy task %d: completedAt: %w", i, err)
			}
			t.CompletedAt = &ts
		}
		if r.ExpiredAt != "" {
			ts, err := parseLegacyTime(r.ExpiredAt)
			if err != nil {
				return nil, fmt.Errorf("decoding legacy task %d: expiredAt: %w", i, err)
			}
			t.ExpiredAt = &ts
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func parseLegacyTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
