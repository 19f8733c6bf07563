package core

import (
	"strings"
	"time"

	"github.com/valter-silva-au/taskclock/pkg/models"
)

// TaskInput holds the caller-supplied fields for a new task. An empty
// Priority falls back to the store's default.
type TaskInput struct {
	Title       string
	Description string
	Priority    models.Priority
	ExpiryTime  time.Time
}

// Validate checks the input before any state is touched.
func (in TaskInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", "title is required")
	}
	if in.Priority != "" && !in.Priority.Valid() {
		return invalid("priority", "priority must be one of low, medium, high")
	}
	if in.ExpiryTime.IsZero() {
		return invalid("expiry_time", "expiry time is required")
	}
	return nil
}

// TaskPatch is a partial update. Nil fields are left untouched; status is
// not patchable and only changes through Complete and the expiry sweep.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *models.Priority
	ExpiryTime  *time.Time
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.ExpiryTime == nil
}

// Validate checks every field that is set.
func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return invalid("title", "title must not be empty")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return invalid("priority", "priority must be one of low, medium, high")
	}
	if p.ExpiryTime != nil && p.ExpiryTime.IsZero() {
		return invalid("expiry_time", "expiry time must not be zero")
	}
	return nil
}

// apply merges the patch into t. It refuses to move the deadline of a task
// that already left the pending state.
func (p TaskPatch) apply(t *models.Task, now time.Time) error {
	if p.ExpiryTime != nil {
		expiry := p.ExpiryTime.UTC()
		if t.Status.IsTerminal() && !expiry.Equal(t.ExpiryTime) {
			return &transitionError{id: t.ID, from: t.Status, action: "change expiry of"}
		}
		t.ExpiryTime = expiry
	}
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	t.UpdatedAt = now
	return nil
}

// transitionError reports an operation that terminal states forbid.
type transitionError struct {
	id     string
	from   models.TaskStatus
	action string
}

func (e *transitionError) Error() string {
	return "cannot " + e.action + " " + string(e.from) + " task " + e.id
}

func (e *transitionError) Unwrap() error { return ErrInvalidTransition }
