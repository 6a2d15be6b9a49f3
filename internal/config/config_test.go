package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func defaultedViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestDefaultsValidate(t *testing.T) {
	t.Parallel()

	v := defaultedViper()
	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))
	require.NoError(t, cfg.Validate())

	require.Equal(t, "csv", cfg.Store.Driver)
	require.Equal(t, "local", cfg.Blob.Backend)
	require.False(t, cfg.PubSub.Enabled)
	require.Equal(t, 1, cfg.Browser.MaxParallel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"empty user agent", func(cfg *Config) { cfg.Browser.UserAgent = "" }},
		{"zero nav timeout", func(cfg *Config) { cfg.Browser.NavTimeoutSec = 0 }},
		{"unknown store driver", func(cfg *Config) { cfg.Store.Driver = "mongodb" }},
		{"sqlite without path", func(cfg *Config) {
			cfg.Store.Driver = "sqlite"
			cfg.Store.SQLitePath = ""
		}},
		{"postgres without dsn", func(cfg *Config) { cfg.Store.Driver = "postgres" }},
		{"unknown blob backend", func(cfg *Config) { cfg.Blob.Backend = "s3" }},
		{"gcs without bucket", func(cfg *Config) { cfg.Blob.Backend = "gcs" }},
		{"pubsub without project", func(cfg *Config) { cfg.PubSub.Enabled = true }},
		{"metrics without addr", func(cfg *Config) {
			cfg.Metrics.Enabled = true
			cfg.Metrics.Addr = ""
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := defaultedViper()
			var cfg Config
			require.NoError(t, v.Unmarshal(&cfg))
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, "csv", cfg.Store.Driver)
}

func TestLoadExplicitMissingFileErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(viper.New(), "/nonexistent/config.yaml")
	require.Error(t, err)
}
