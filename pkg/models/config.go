package models

import "time"

// StorageBackend names a persistence implementation for the key-value store.
type StorageBackend string

const (
	BackendFile   StorageBackend = "file"
	BackendSQLite StorageBackend = "sqlite"
	BackendRedis  StorageBackend = "redis"
	BackendMemory StorageBackend = "memory"
)

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	Backend     StorageBackend `yaml:"backend" mapstructure:"backend"`
	Path        string         `yaml:"path,omitempty" mapstructure:"path"`
	RedisAddr   string         `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
	RedisPrefix string         `yaml:"redis_prefix,omitempty" mapstructure:"redis_prefix"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AlertConfig holds the thresholds used by the alert engine.
type AlertConfig struct {
	DueSoonHours int `yaml:"due_soon_hours" mapstructure:"due_soon_hours"`
	MaxPending   int `yaml:"max_pending" mapstructure:"max_pending"`
}

// SlackConfig holds Slack webhook settings.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// NotificationConfig controls external alert delivery.
type NotificationConfig struct {
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Slack   SlackConfig `yaml:"slack" mapstructure:"slack"`
}

// GlobalConfig holds system-wide settings read from .taskconfig via Viper.
type GlobalConfig struct {
	Storage         StorageConfig      `yaml:"storage" mapstructure:"storage"`
	SweepInterval   time.Duration      `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	DefaultPriority Priority           `yaml:"default_priority" mapstructure:"default_priority"`
	Log             LogConfig          `yaml:"log" mapstructure:"log"`
	Alerts          AlertConfig        `yaml:"alerts" mapstructure:"alerts"`
	Notifications   NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
}
