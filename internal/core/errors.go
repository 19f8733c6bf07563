package core

import (
	"errors"
	"fmt"
)

// Error conditions surfaced by the task store and identity provider. Callers
// match them with errors.Is; the wrapped message carries the detail.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrPersistence        = errors.New("persistence failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNoSession          = errors.New("no signed-in user")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// errNotLoaded marks writes refused because the collection was never read.
var errNotLoaded = errors.New("task collection not loaded")

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func taskNotFound(id string) error {
	return fmt.Errorf("task %s: %w", id, ErrNotFound)
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
