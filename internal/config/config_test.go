package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Crawl.Concurrency)
	assert.Equal(t, 300*time.Millisecond, cfg.Crawl.Sleep())
	assert.Equal(t, "data", cfg.Crawl.OutputDir)
	assert.Equal(t, "CivicSupportScrapers/0.1.0 (+hey@codefornorway.org)", cfg.Crawl.UserAgent)
	assert.Equal(t, 25*time.Second, cfg.Crawl.Timeout())
	assert.Equal(t, 3, cfg.Crawl.MaxAttempts)
	assert.Equal(t, 800*time.Millisecond, cfg.Crawl.Backoff())
	assert.Zero(t, cfg.Crawl.RequestsPerSecond)
	assert.Empty(t, cfg.Crawl.ExcludePaths)
	assert.Empty(t, cfg.Crawl.MetricsFile)

	assert.False(t, cfg.Geocode.Enabled)
	assert.Equal(t, 1100*time.Millisecond, cfg.Geocode.Rate())
	assert.Equal(t, 10000, cfg.Geocode.MaxCalls)
	assert.Equal(t, ".cache/geocode-cache.json", cfg.Geocode.CachePath)
	assert.Equal(t, "no", cfg.Geocode.CountryCodes)
	assert.Equal(t, "Norway", cfg.Geocode.Country)
	assert.Equal(t, 20*time.Second, cfg.Geocode.Timeout())

	assert.Empty(t, cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("scrape"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
crawl:
  concurrency: 2
  only_region: agder
  exclude_paths:
    - /lokalforeninger/*/om-oss/*
geocode:
  enabled: true
  max_calls: 50
store:
  driver: sqlite
  database_url: civic.db
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Crawl.Concurrency)
	assert.Equal(t, "agder", cfg.Crawl.OnlyRegion)
	assert.Equal(t, []string{"/lokalforeninger/*/om-oss/*"}, cfg.Crawl.ExcludePaths)
	assert.True(t, cfg.Geocode.Enabled)
	assert.Equal(t, 50, cfg.Geocode.MaxCalls)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 1100, cfg.Geocode.RateMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
crawl:
  concurrency: 2
geocode:
  enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("CIVIC_CRAWL_CONCURRENCY", "8")
	t.Setenv("CIVIC_GEOCODE_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Crawl.Concurrency)
	assert.True(t, cfg.Geocode.Enabled)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("crawl: [\n"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read file")
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

// validDefaults returns a Config with defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Crawl.Concurrency = 5
	cfg.Crawl.SleepMs = 300
	cfg.Crawl.OutputDir = "data"
	cfg.Crawl.UserAgent = "ua"
	cfg.Crawl.TimeoutSecs = 25
	cfg.Crawl.MaxAttempts = 3
	cfg.Crawl.BackoffMs = 800
	cfg.Geocode.RateMs = 1100
	cfg.Geocode.MaxCalls = 10000
	cfg.Geocode.CachePath = ".cache/geocode-cache.json"
	cfg.Geocode.BaseURL = "https://nominatim.example/search"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateScrape(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero concurrency", func(c *Config) { c.Crawl.Concurrency = 0 }, "crawl.concurrency must be between 1 and 50"},
		{"too much concurrency", func(c *Config) { c.Crawl.Concurrency = 51 }, "crawl.concurrency must be between 1 and 50"},
		{"negative sleep", func(c *Config) { c.Crawl.SleepMs = -1 }, "crawl.sleep_ms"},
		{"no attempts", func(c *Config) { c.Crawl.MaxAttempts = 0 }, "crawl.max_attempts"},
		{"no output dir", func(c *Config) { c.Crawl.OutputDir = "" }, "crawl.output_dir is required"},
		{"blank user agent", func(c *Config) { c.Crawl.UserAgent = " " }, "crawl.user_agent is required"},
		{"negative rps", func(c *Config) { c.Crawl.RequestsPerSecond = -1 }, "requests_per_second"},
		{"negative geocode budget", func(c *Config) { c.Geocode.MaxCalls = -1 }, "geocode.max_calls"},
		{"geocode without url", func(c *Config) { c.Geocode.Enabled = true; c.Geocode.BaseURL = "" }, "geocode.base_url"},
		{"unknown store", func(c *Config) { c.Store.Driver = "mysql" }, `store.driver "mysql"`},
		{"store without url", func(c *Config) { c.Store.Driver = "postgres" }, "store.database_url is required"},
		{"store ok", func(c *Config) { c.Store.Driver = "sqlite"; c.Store.DatabaseURL = "x.db" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate("scrape")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validDefaults()
	cfg.Crawl.Concurrency = 0
	cfg.Crawl.MaxAttempts = 0

	err := cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawl.concurrency")
	assert.Contains(t, err.Error(), "crawl.max_attempts")
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidateOtherModes(t *testing.T) {
	cfg := validDefaults()
	cfg.Crawl.Concurrency = 0
	assert.NoError(t, cfg.Validate("export"))
	assert.NoError(t, cfg.Validate("geocode"))

	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
