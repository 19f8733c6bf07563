package core

import (
	"fmt"
	"time"

	"github.com/valter-silva-au/taskclock/pkg/models"
)

// Urgency buckets the time left before a pending task expires.
type Urgency int

const (
	UrgencyNone     Urgency = iota // not pending
	UrgencyRelaxed                 // three days or more
	UrgencyModerate                // two to three days
	UrgencyElevated                // one to two days
	UrgencyCritical                // under a day
	UrgencyOverdue                 // deadline passed
)

const day = 24 * time.Hour

// TimeLeft renders the countdown shown beside a task: "N days HH:MM:SS"
// when at least a day remains, "HH:MM:SS" otherwise, and "EXPIRED" once the
// deadline has passed or the task is expired. Completed tasks show
// "COMPLETED".
func TimeLeft(t models.Task, now time.Time) string {
	switch t.Status {
	case models.StatusCompleted:
		return "COMPLETED"
	case models.StatusExpired:
		return "EXPIRED"
	}

	left := t.ExpiryTime.Sub(now)
	if left <= 0 {
		return "EXPIRED"
	}
	left = left.Truncate(time.Second)

	days := int(left / day)
	left -= time.Duration(days) * day
	h := int(left / time.Hour)
	left -= time.Duration(h) * time.Hour
	m := int(left / time.Minute)
	left -= time.Duration(m) * time.Minute
	sec := int(left / time.Second)

	clock := fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	switch {
	case days == 1:
		return "1 day " + clock
	case days > 1:
		return fmt.Sprintf("%d days %s", days, clock)
	}
	return clock
}

// UrgencyOf classifies how close a task is to its deadline.
func UrgencyOf(t models.Task, now time.Time) Urgency {
	if t.Status != models.StatusPending {
		return UrgencyNone
	}
	left := t.ExpiryTime.Sub(now)
	switch {
	case left <= 0:
		return UrgencyOverdue
	case left >= 3*day:
		return UrgencyRelaxed
	case left >= 2*day:
		return UrgencyModerate
	case left >= day:
		return UrgencyElevated
	default:
		return UrgencyCritical
	}
}

func (u Urgency) String() string {
	switch u {
	case UrgencyRelaxed:
		return "relaxed"
	case UrgencyModerate:
		return "moderate"
	case UrgencyElevated:
		return "elevated"
	case UrgencyCritical:
		return "critical"
	case UrgencyOverdue:
		return "overdue"
	}
	return "none"
}

// ParseRelative parses a human-friendly positive duration such as "7d",
// "36h" or "90m". Day suffixes are accepted on top of time.ParseDuration.
func ParseRelative(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &days); err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("invalid duration %q: must be positive", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid duration %q: must be positive", s)
	}
	return d, nil
}
