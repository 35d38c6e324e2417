package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is stamped into the default User-Agent.
const Version = "0.1.0"

// Config holds the full application configuration.
type Config struct {
	Crawl   CrawlConfig   `yaml:"crawl" mapstructure:"crawl"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Sites   SitesConfig   `yaml:"sites" mapstructure:"sites"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// CrawlConfig configures discovery, fetching and the worker pool.
type CrawlConfig struct {
	Concurrency       int      `yaml:"concurrency" mapstructure:"concurrency"`
	SleepMs           int      `yaml:"sleep_ms" mapstructure:"sleep_ms"`
	OnlyRegion        string   `yaml:"only_region" mapstructure:"only_region"`
	OnlyLocality      string   `yaml:"only_locality" mapstructure:"only_locality"`
	OutputDir         string   `yaml:"output_dir" mapstructure:"output_dir"`
	UserAgent         string   `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts       int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMs         int      `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	ExcludePaths      []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	// MetricsFile, when set, receives the run's Prometheus metrics in the
	// node-exporter textfile format.
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
}

// Sleep returns the per-task pause.
func (c CrawlConfig) Sleep() time.Duration { return time.Duration(c.SleepMs) * time.Millisecond }

// Timeout returns the per-request timeout.
func (c CrawlConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// Backoff returns the retry base delay.
func (c CrawlConfig) Backoff() time.Duration { return time.Duration(c.BackoffMs) * time.Millisecond }

// GeocodeConfig configures the cached, rate-limited geocoder.
type GeocodeConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	RateMs       int    `yaml:"rate_ms" mapstructure:"rate_ms"`
	MaxCalls     int    `yaml:"max_calls" mapstructure:"max_calls"`
	CachePath    string `yaml:"cache_path" mapstructure:"cache_path"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	CountryCodes string `yaml:"country_codes" mapstructure:"country_codes"`
	Country      string `yaml:"country" mapstructure:"country"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Rate returns the pause after each provider call.
func (c GeocodeConfig) Rate() time.Duration { return time.Duration(c.RateMs) * time.Millisecond }

// Timeout returns the provider request timeout.
func (c GeocodeConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// StoreConfig configures the optional database sink. An empty driver
// disables it.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// SitesConfig points at extra site profiles.
type SitesConfig struct {
	ProfilesPath string `yaml:"profiles_path" mapstructure:"profiles_path"`
}

// ServerConfig configures the read-only API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CIVIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("crawl.concurrency", 5)
	v.SetDefault("crawl.sleep_ms", 300)
	v.SetDefault("crawl.only_region", "")
	v.SetDefault("crawl.only_locality", "")
	v.SetDefault("crawl.output_dir", "data")
	v.SetDefault("crawl.user_agent", fmt.Sprintf("CivicSupportScrapers/%s (+hey@codefornorway.org)", Version))
	v.SetDefault("crawl.timeout_secs", 25)
	v.SetDefault("crawl.max_attempts", 3)
	v.SetDefault("crawl.backoff_ms", 800)
	v.SetDefault("crawl.requests_per_second", 0)
	v.SetDefault("crawl.exclude_paths", []string{})
	v.SetDefault("crawl.metrics_file", "")
	v.SetDefault("geocode.enabled", false)
	v.SetDefault("geocode.rate_ms", 1100)
	v.SetDefault("geocode.max_calls", 10000)
	v.SetDefault("geocode.cache_path", ".cache/geocode-cache.json")
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.country_codes", "no")
	v.SetDefault("geocode.country", "Norway")
	v.SetDefault("geocode.timeout_secs", 20)
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("sites.profiles_path", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of scrape,
// geocode, export or serve.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "scrape":
		if c.Crawl.Concurrency < 1 || c.Crawl.Concurrency > 50 {
			errs = append(errs, "crawl.concurrency must be between 1 and 50")
		}
		if c.Crawl.SleepMs < 0 {
			errs = append(errs, "crawl.sleep_ms must be >= 0")
		}
		if c.Crawl.MaxAttempts < 1 {
			errs = append(errs, "crawl.max_attempts must be >= 1")
		}
		if c.Crawl.BackoffMs < 0 {
			errs = append(errs, "crawl.backoff_ms must be >= 0")
		}
		if c.Crawl.TimeoutSecs < 1 {
			errs = append(errs, "crawl.timeout_secs must be >= 1")
		}
		if c.Crawl.RequestsPerSecond < 0 {
			errs = append(errs, "crawl.requests_per_second must be >= 0")
		}
		if c.Crawl.OutputDir == "" {
			errs = append(errs, "crawl.output_dir is required")
		}
		if strings.TrimSpace(c.Crawl.UserAgent) == "" {
			errs = append(errs, "crawl.user_agent is required")
		}
		errs = append(errs, c.validateGeocode()...)
		errs = append(errs, c.validateStore()...)
	case "geocode":
		errs = append(errs, c.validateGeocode()...)
	case "export":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateGeocode() []string {
	var errs []string
	if c.Geocode.RateMs < 0 {
		errs = append(errs, "geocode.rate_ms must be >= 0")
	}
	if c.Geocode.MaxCalls < 0 {
		errs = append(errs, "geocode.max_calls must be >= 0")
	}
	if c.Geocode.CachePath == "" {
		errs = append(errs, "geocode.cache_path is required")
	}
	if c.Geocode.Enabled && c.Geocode.BaseURL == "" {
		errs = append(errs, "geocode.base_url is required when geocoding is enabled")
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch strings.ToLower(c.Store.Driver) {
	case "":
		return nil
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required when store.driver is set"}
		}
		return nil
	default:
		return []string{fmt.Sprintf("store.driver %q is not one of sqlite, postgres", c.Store.Driver)}
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
