// Package internal provides the App struct that wires all components of
// taskclock together and initializes the CLI layer.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/valter-silva-au/taskclock/internal/cli"
	"github.com/valter-silva-au/taskclock/internal/core"
	"github.com/valter-silva-au/taskclock/internal/logger"
	"github.com/valter-silva-au/taskclock/internal/observability"
	"github.com/valter-silva-au/taskclock/internal/storage"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

// HomeEnv overrides the data directory.
const HomeEnv = "TASKCLOCK_HOME"

// EventLogFileName is the JSONL event log kept in the base path.
const EventLogFileName = ".taskclock_events.jsonl"

// App holds all service dependencies for taskclock.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig
	Logger    *logrus.Logger

	// Storage layer
	KV storage.KVStore

	// Core services
	Clock     core.Clock
	Identity  core.IdentityProvider
	TaskStore core.TaskStore

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier

	unbind func()
}

// Options tune NewApp. The zero value is what the binary uses.
type Options struct {
	// LogOutput defaults to stderr.
	LogOutput io.Writer
	// Clock defaults to the system clock.
	Clock core.Clock
}

// NewApp creates and wires all components of taskclock. basePath is the
// root directory where configuration and data live (typically
// ~/.taskclock or the nearest directory containing .taskconfig). The
// persisted identity, if any, is restored and its tasks loaded before
// NewApp returns; a failed task load is logged and left for the CLI to
// report.
func NewApp(ctx context.Context, basePath string, opts Options) (*App, error) {
	app := &App{BasePath: basePath, Clock: opts.Clock}
	if app.Clock == nil {
		app.Clock = core.SystemClock()
	}

	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	app.Logger, err = logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: opts.LogOutput,
	})
	if err != nil {
		return nil, err
	}

	// --- Storage layer ---
	app.KV, err = storage.Open(ctx, basePath, cfg.Storage)
	if err != nil {
		return nil, err
	}

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, EventLogFileName)
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: run without metrics if the log can't be opened.
		app.Logger.WithError(err).Warn("event log disabled")
		app.EventLog = nil
	}
	var events core.EventLogger
	if app.EventLog != nil {
		events = observability.NewRecorder(app.EventLog, app.Clock.Now)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	thresholds := observability.DefaultAlertThresholds()
	if cfg.Alerts.DueSoonHours > 0 {
		thresholds.DueSoonHours = cfg.Alerts.DueSoonHours
	}
	if cfg.Alerts.MaxPending > 0 {
		thresholds.MaxPending = cfg.Alerts.MaxPending
	}
	app.AlertEngine = observability.NewAlertEngine(thresholds)
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL)
	}

	// --- Core services ---
	app.Identity = core.NewIdentityProvider(core.IdentityProviderConfig{
		Store:  app.KV,
		Clock:  app.Clock,
		Logger: logger.Component(app.Logger, "identity"),
		Events: events,
	})
	app.TaskStore = core.NewTaskStore(core.TaskStoreConfig{
		Store:           app.KV,
		Clock:           app.Clock,
		Logger:          logger.Component(app.Logger, "tasks"),
		Events:          events,
		SweepInterval:   cfg.SweepInterval,
		DefaultPriority: cfg.DefaultPriority,
	})

	if err := app.Identity.Load(ctx); err != nil {
		app.Logger.WithError(err).Warn("restoring identity")
	}
	app.unbind, err = core.BindSession(ctx, app.Identity, app.TaskStore, logger.Component(app.Logger, "session"))
	if err != nil {
		app.Logger.WithError(err).Warn("initial task load failed")
	}

	// --- Wire CLI package-level variables ---
	cli.TaskStore = app.TaskStore
	cli.Identity = app.Identity
	cli.Clock = app.Clock
	cli.Config = app.Config
	cli.Logger = app.Logger

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// Close stops the sweeper and releases the event log and storage handles.
func (a *App) Close() error {
	var errs []error
	if a.unbind != nil {
		a.unbind()
	}
	if a.TaskStore != nil {
		errs = append(errs, a.TaskStore.Close())
	}
	if a.EventLog != nil {
		errs = append(errs, a.EventLog.Close())
	}
	if a.KV != nil {
		errs = append(errs, a.KV.Close())
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the taskclock data directory. It checks
// TASKCLOCK_HOME, then walks up from the working directory looking for
// .taskconfig, and falls back to ~/.taskclock.
func ResolveBasePath() string {
	if home := os.Getenv(HomeEnv); home != "" {
		return home
	}
	if dir, err := os.Getwd(); err == nil {
		for {
			for _, name := range []string{core.ConfigFileName, core.ConfigFileName + ".yaml"} {
				if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
					return dir
				}
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".taskclock")
	}
	return "."
}
