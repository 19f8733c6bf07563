package cli

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/taskclock/internal/core"
	"github.com/valter-silva-au/taskclock/internal/observability"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	TaskStore core.TaskStore
	Identity  core.IdentityProvider
	Clock     core.Clock = core.SystemClock()
	Config    *models.GlobalConfig
	Logger    logrus.FieldLogger
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)

var errNotSignedIn = errors.New("not signed in; run 'taskclock auth signin' first")

func requireStore() error {
	if TaskStore == nil {
		return fmt.Errorf("task store not initialized")
	}
	return nil
}

// requireSession fails unless a user's collection is loaded.
func requireSession() error {
	if err := requireStore(); err != nil {
		return err
	}
	if TaskStore.UserID() == "" {
		return errNotSignedIn
	}
	if !TaskStore.Loaded() {
		if err := TaskStore.LastError(); err != nil {
			return fmt.Errorf("your tasks could not be loaded, nothing was changed: %w", err)
		}
		return fmt.Errorf("your tasks are not loaded yet; try again")
	}
	return nil
}

// explain rewrites core errors into something a terminal user can act on.
func explain(action string, err error) error {
	switch {
	case errors.Is(err, core.ErrNoSession):
		return errNotSignedIn
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrInvalidCredentials):
		return err
	}
	return fmt.Errorf("%s: %w", action, err)
}
