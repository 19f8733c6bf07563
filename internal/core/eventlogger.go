package core

// EventLogger receives the lifecycle events the task store and identity
// provider emit (task.created, task.expired, auth.signed_in, ...). It is
// satisfied by observability.Recorder. A nil EventLogger records nothing.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}
