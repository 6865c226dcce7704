package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultArenaURL = "https://lmarena.ai/api/leaderboard"
	DefaultMTEBURL  = "https://mteb-leaderboard.hf.space/api/scores"

	DefaultRefreshInterval     = time.Hour
	DefaultAggregationInterval = 15 * time.Minute
	DefaultSourceTimeout       = 5 * time.Second
	DefaultExploration         = 1.4
	DefaultTelemetryDays       = 30
	DefaultPersistencePath     = "data/coxswain.db"
)

// DefaultConfig returns a configuration with sensible defaults so the
// engine is usable with zero configuration (static leaderboard snapshots).
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			FileOutput: false,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Persistence: PersistenceConfig{
			Path: DefaultPersistencePath,
		},
		ExternalData: ExternalDataConfig{
			Enabled:  true,
			ArenaURL: DefaultArenaURL,
			MTEBURL:  DefaultMTEBURL,
			Timeout:  DefaultSourceTimeout,
		},
		Refresh: RefreshConfig{
			Interval:            DefaultRefreshInterval,
			AggregationInterval: DefaultAggregationInterval,
		},
		Bandit: BanditConfig{
			Strategy:    "ucb1",
			Exploration: DefaultExploration,
			Seed:        0,
		},
		Retention: RetentionConfig{
			TelemetryDays: DefaultTelemetryDays,
		},
	}
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("coxswain")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("COXSWAIN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("COXSWAIN_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config.Filename = viper.ConfigFileUsed()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
