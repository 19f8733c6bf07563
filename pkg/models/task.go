package models

import "time"

// TaskStatus represents the current lifecycle state of a task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusExpired   TaskStatus = "expired"
	StatusCompleted TaskStatus = "completed"
)

// TaskStatuses lists every status in lifecycle order.
var TaskStatuses = []TaskStatus{StatusPending, StatusExpired, StatusCompleted}

// IsTerminal reports whether no further transition is allowed from s.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusExpired || s == StatusCompleted
}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusExpired, StatusCompleted:
		return true
	}
	return false
}

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// PriorityLevels lists every priority from lowest to highest.
var PriorityLevels = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is a unit of work owned by a single user, with a deadline after which
// it expires unless completed first.
type Task struct {
	ID          string     `yaml:"id" json:"id"`
	UserID      string     `yaml:"user_id" json:"userId"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description" json:"description"`
	Priority    Priority   `yaml:"priority" json:"priority"`
	Status      TaskStatus `yaml:"status" json:"status"`
	ExpiryTime  time.Time  `yaml:"expiry_time" json:"expiryTime"`
	CreatedAt   time.Time  `yaml:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `yaml:"updated_at" json:"updatedAt"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty" json:"completedAt,omitempty"`
	ExpiredAt   *time.Time `yaml:"expired_at,omitempty" json:"expiredAt,omitempty"`
}

// Clone returns a deep copy of t so callers cannot mutate store-owned state
// through the optional timestamp pointers.
func (t Task) Clone() Task {
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		t.CompletedAt = &c
	}
	if t.ExpiredAt != nil {
		e := *t.ExpiredAt
		t.ExpiredAt = &e
	}
	return t
}

// IsOverdue reports whether a pending task's deadline is at or before now.
func (t Task) IsOverdue(now time.Time) bool {
	return t.Status == StatusPending && !t.ExpiryTime.After(now)
}
