// Package core contains the business logic for taskclock: the task store
// and its expiry sweeper, the identity provider, session binding between
// the two, countdown rendering and configuration.
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/taskclock/pkg/models"
)

// ConfigFileName is the YAML configuration file looked up in the base path.
const ConfigFileName = ".taskconfig"

// EnvPrefix prefixes environment overrides, e.g. TASKCLOCK_STORAGE_BACKEND.
const EnvPrefix = "TASKCLOCK"

// ConfigurationManager defines the interface for loading and validating
// the global configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper.
type viperConfigManager struct {
	// basePath is the root directory where .taskconfig resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		Storage: models.StorageConfig{
			Backend:     models.BackendFile,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "taskclock:",
		},
		SweepInterval:   DefaultSweepInterval,
		DefaultPriority: models.PriorityMedium,
		Log: models.LogConfig{
			Level:  "info",
			Format: "text",
		},
		Alerts: models.AlertConfig{
			DueSoonHours: 24,
			MaxPending:   20,
		},
	}
}

// LoadGlobalConfig reads .taskconfig from the base path and applies
// TASKCLOCK_* environment overrides. A missing file yields defaults.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("storage.backend", string(cfg.Storage.Backend))
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.redis_addr", cfg.Storage.RedisAddr)
	v.SetDefault("storage.redis_prefix", cfg.Storage.RedisPrefix)
	v.SetDefault("sweep.interval", cfg.SweepInterval.String())
	v.SetDefault("defaults.priority", string(cfg.DefaultPriority))
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("alerts.due_soon_hours", cfg.Alerts.DueSoonHours)
	v.SetDefault("alerts.max_pending", cfg.Alerts.MaxPending)
	v.SetDefault("notifications.enabled", cfg.Notifications.Enabled)
	v.SetDefault("notifications.slack.webhook_url", cfg.Notifications.Slack.WebhookURL)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.Storage.Backend = models.StorageBackend(strings.ToLower(v.GetString("storage.backend")))
	cfg.Storage.Path = v.GetString("storage.path")
	cfg.Storage.RedisAddr = v.GetString("storage.redis_addr")
	cfg.Storage.RedisPrefix = v.GetString("storage.redis_prefix")
	cfg.DefaultPriority = models.Priority(strings.ToLower(v.GetString("defaults.priority")))
	cfg.Log.Level = strings.ToLower(v.GetString("log.level"))
	cfg.Log.Format = strings.ToLower(v.GetString("log.format"))
	cfg.Alerts.DueSoonHours = v.GetInt("alerts.due_soon_hours")
	cfg.Alerts.MaxPending = v.GetInt("alerts.max_pending")
	cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	cfg.Notifications.Slack.WebhookURL = v.GetString("notifications.slack.webhook_url")

	interval, err := time.ParseDuration(v.GetString("sweep.interval"))
	if err != nil {
		return nil, fmt.Errorf("reading %s: sweep.interval: %w", ConfigFileName, err)
	}
	cfg.SweepInterval = interval

	return cfg, nil
}

var validBackends = map[models.StorageBackend]bool{
	models.BackendFile:   true,
	models.BackendSQLite: true,
	models.BackendRedis:  true,
	models.BackendMemory: true,
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks cfg for invalid values and reports every problem
// in a single error.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if !validBackends[cfg.Storage.Backend] {
		errs = append(errs, fmt.Sprintf(
			"storage.backend %q is invalid, must be one of: file, sqlite, redis, memory",
			cfg.Storage.Backend,
		))
	}

	if cfg.SweepInterval <= 0 {
		errs = append(errs, fmt.Sprintf("sweep.interval must be positive, got %s", cfg.SweepInterval))
	}

	if !cfg.DefaultPriority.Valid() {
		errs = append(errs, fmt.Sprintf(
			"defaults.priority %q is invalid, must be one of: low, medium, high",
			cfg.DefaultPriority,
		))
	}

	if !validLogLevels[cfg.Log.Level] {
		errs = append(errs, fmt.Sprintf(
			"log.level %q is invalid, must be one of: trace, debug, info, warn, error",
			cfg.Log.Level,
		))
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be text or json", cfg.Log.Format))
	}

	if cfg.Alerts.DueSoonHours < 0 {
		errs = append(errs, fmt.Sprintf("alerts.due_soon_hours must be non-negative, got %d", cfg.Alerts.DueSoonHours))
	}

	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL == "" {
		errs = append(errs, "notifications.slack.webhook_url is required when notifications are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
