package config

import (
	"fmt"
	"time"
)

// Config holds all configuration for the engine
type Config struct {
	Filename     string             `yaml:"-"`
	Logging      LoggingConfig      `yaml:"logging"`
	Persistence  PersistenceConfig  `yaml:"persistence"`
	ExternalData ExternalDataConfig `yaml:"external_data"`
	Refresh      RefreshConfig      `yaml:"refresh"`
	Bandit       BanditConfig       `yaml:"bandit"`
	Retention    RetentionConfig    `yaml:"retention"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Directory  string `yaml:"directory"`
	FileOutput bool   `yaml:"file_output"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// PersistenceConfig locates the on-disk store
type PersistenceConfig struct {
	Path string `yaml:"path"`
}

// ExternalDataConfig controls leaderboard fetching. When disabled the
// engine serves entirely from the static fallback tables.
type ExternalDataConfig struct {
	Enabled  bool          `yaml:"enabled"`
	ArenaURL string        `yaml:"arena_url"`
	MTEBURL  string        `yaml:"mteb_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RefreshConfig holds background refresh cadences
type RefreshConfig struct {
	Interval            time.Duration `yaml:"interval"`
	AggregationInterval time.Duration `yaml:"aggregation_interval"`
}

// BanditConfig tunes the per-task-type allocator
type BanditConfig struct {
	Strategy    string  `yaml:"strategy"`
	Exploration float64 `yaml:"exploration"`
	Seed        int64   `yaml:"seed"` // 0 means time-seeded
}

// RetentionConfig bounds durable telemetry growth
type RetentionConfig struct {
	TelemetryDays int `yaml:"telemetry_days"`
}

func (c *Config) Validate() error {
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive, got %v", c.Refresh.Interval)
	}
	if c.ExternalData.Timeout <= 0 {
		return fmt.Errorf("external_data.timeout must be positive, got %v", c.ExternalData.Timeout)
	}
	if c.Bandit.Exploration <= 0 {
		return fmt.Errorf("bandit.exploration must be positive, got %v", c.Bandit.Exploration)
	}
	if c.Retention.TelemetryDays < 1 {
		return fmt.Errorf("retention.telemetry_days must be at least 1, got %d", c.Retention.TelemetryDays)
	}
	return nil
}
