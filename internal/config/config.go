// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper. The
// harvest pipeline's own knobs live under the "harvest" key and are decoded
// by the harvest package.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Browser BrowserConfig `mapstructure:"browser"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Store   StoreConfig   `mapstructure:"store"`
	Blob    BlobConfig    `mapstructure:"blob"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// BrowserConfig configures the headless document fetcher.
type BrowserConfig struct {
	UserAgent     string `mapstructure:"user_agent"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	MaxParallel   int    `mapstructure:"max_parallel"`
}

// HTTPConfig configures the plain-text fetcher.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	HostFloorQPS   float64 `mapstructure:"host_floor_qps"`
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"` // csv, sqlite, or postgres
	Dir         string `mapstructure:"dir"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
	Table       string `mapstructure:"table"`
}

// BlobConfig configures the snapshot sink.
type BlobConfig struct {
	Backend   string `mapstructure:"backend"` // local or gcs
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds metadata for run-completion notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the optional /metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load builds a Config from disk and environment.
func Load(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.harvester")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults installs the default value table.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)

	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("browser.max_parallel", 1)

	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.host_floor_qps", 1.0)

	v.SetDefault("store.driver", "csv")
	v.SetDefault("store.dir", "data")
	v.SetDefault("store.sqlite_path", "data/records.db")
	v.SetDefault("store.table", "records")

	v.SetDefault("blob.backend", "local")
	v.SetDefault("blob.dir", "data/blobs")

	v.SetDefault("pubsub.enabled", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("harvest.keywords", []string{"visium", `"10x" chromium`})
	v.SetDefault("harvest.max_records", 0)
	v.SetDefault("harvest.max_pages", 0)
	v.SetDefault("harvest.max_page_retries", 5)
	v.SetDefault("harvest.page_delay", "2s")
	v.SetDefault("harvest.page_delay_jitter", "2s")
	v.SetDefault("harvest.lookup_delay", "1s")
	v.SetDefault("harvest.lookup_jitter", "2s")
	v.SetDefault("harvest.extended_delay", "10s")
	v.SetDefault("harvest.long_pause_every", 10)
	v.SetDefault("harvest.long_pause", "5s")
	v.SetDefault("harvest.long_pause_jitter", "5s")
	v.SetDefault("harvest.debug", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Browser.UserAgent == "" {
		return fmt.Errorf("browser.user_agent must be set")
	}
	if c.Browser.NavTimeoutSec <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	switch c.Store.Driver {
	case "csv":
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir must be set for the csv driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path must be set for the sqlite driver")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be csv, sqlite, or postgres")
	}
	switch c.Blob.Backend {
	case "local":
		if c.Blob.Dir == "" {
			return fmt.Errorf("blob.dir must be set for the local backend")
		}
	case "gcs":
		if c.Blob.GCSBucket == "" {
			return fmt.Errorf("blob.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("blob.backend must be local or gcs")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr must be set when metrics are enabled")
	}
	return nil
}
