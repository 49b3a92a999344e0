package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"reelscout/pkg/filter"
	"reelscout/pkg/resolve"
)

const envPrefix = "REELSCOUT_"

// Config holds all configuration options for reelscout
type Config struct {
	// Default project for commands that take --project
	Project ProjectConfig `yaml:"project" json:"project"`

	Database DatabaseConfig `yaml:"database" json:"database"`

	// Scraping provider endpoint and actors
	Provider ProviderConfig `yaml:"provider" json:"provider"`

	// Quality policy and worker count for ingest runs
	Ingest IngestConfig `yaml:"ingest" json:"ingest"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	Retry RetryConfig `yaml:"retry" json:"retry"`

	Transcription TranscriptionConfig `yaml:"transcription" json:"transcription"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ProjectConfig names the project used when no flag is given
type ProjectConfig struct {
	Name string `yaml:"name" json:"name"`
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
}

// ProviderConfig holds scraping provider settings. The token itself is
// normally kept in the credential store, not here.
type ProviderConfig struct {
	BaseURL         string        `yaml:"base_url" json:"base_url"`
	Token           string        `yaml:"token,omitempty" json:"-"`
	CompetitorActor string        `yaml:"competitor_actor" json:"competitor_actor"`
	HashtagActor    string        `yaml:"hashtag_actor" json:"hashtag_actor"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent"`
}

// IngestConfig holds the quality policy and pipeline sizing
type IngestConfig struct {
	Workers                int    `yaml:"workers" json:"workers"`
	ResultsLimit           int    `yaml:"results_limit" json:"results_limit"`
	MinViews               int64  `yaml:"min_views" json:"min_views"`
	MaxAgeDays             int    `yaml:"max_age_days" json:"max_age_days"`
	RequireVideo           bool   `yaml:"require_video" json:"require_video"`
	MissingPublishedAt     string `yaml:"missing_published_at" json:"missing_published_at"`
	EstimateViewsFromLikes bool   `yaml:"estimate_views_from_likes" json:"estimate_views_from_likes"`
	LikesMultiplier        int64  `yaml:"likes_multiplier" json:"likes_multiplier"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int `yaml:"burst_size" json:"burst_size"`
}

// RetryConfig holds the per-source retry policy of the fetcher
type RetryConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	MaxAttempts  int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
	JitterFactor float64       `yaml:"jitter_factor" json:"jitter_factor"`
}

// TranscriptionConfig holds the transcription endpoint settings
type TranscriptionConfig struct {
	Enabled   bool          `yaml:"enabled" json:"enabled"`
	Endpoint  string        `yaml:"endpoint" json:"endpoint"`
	Token     string        `yaml:"token,omitempty" json:"-"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	BatchSize int           `yaml:"batch_size" json:"batch_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			LogLevel:        "warn",
		},
		Provider: ProviderConfig{
			BaseURL:         "https://api.apify.com",
			CompetitorActor: "apify~instagram-reel-scraper",
			HashtagActor:    "apify~instagram-hashtag-scraper",
			Timeout:         120 * time.Second,
			UserAgent:       "reelscout/1.0",
		},
		Ingest: IngestConfig{
			Workers:            3,
			ResultsLimit:       50,
			MinViews:           50000,
			MaxAgeDays:         14,
			RequireVideo:       false,
			MissingPublishedAt: string(filter.MissingTimestampReject),
			LikesMultiplier:    resolve.DefaultLikesMultiplier,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         3,
		},
		Retry: RetryConfig{
			Enabled:      true,
			MaxAttempts:  3,
			BaseDelay:    2 * time.Second,
			MaxDelay:     60 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
		Transcription: TranscriptionConfig{
			Timeout:   90 * time.Second,
			BatchSize: 20,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// Policy converts the ingest section into a filter policy
func (c *Config) Policy() filter.Policy {
	return filter.Policy{
		MinViews:           c.Ingest.MinViews,
		MaxAgeDays:         c.Ingest.MaxAgeDays,
		RequireVideo:       c.Ingest.RequireVideo,
		MissingPublishedAt: filter.MissingTimestamp(strings.ToLower(c.Ingest.MissingPublishedAt)),
		Views: resolve.Options{
			EstimateFromLikes: c.Ingest.EstimateViewsFromLikes,
			LikesMultiplier:   c.Ingest.LikesMultiplier,
		},
	}
}

// LoadFromEnv loads configuration from REELSCOUT_* environment variables.
// Unparseable values are reported together.
func (c *Config) LoadFromEnv() error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	integer64 := func(key string, dst *int64) {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(envPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("PROJECT", &c.Project.Name)

	// DATABASE_URL is honored for hosted Postgres setups
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	str("DATABASE_DSN", &c.Database.DSN)

	str("PROVIDER_BASE_URL", &c.Provider.BaseURL)
	str("PROVIDER_TOKEN", &c.Provider.Token)
	str("COMPETITOR_ACTOR", &c.Provider.CompetitorActor)
	str("HASHTAG_ACTOR", &c.Provider.HashtagActor)

	integer("WORKERS", &c.Ingest.Workers)
	integer("RESULTS_LIMIT", &c.Ingest.ResultsLimit)
	integer64("MIN_VIEWS", &c.Ingest.MinViews)
	integer("MAX_AGE_DAYS", &c.Ingest.MaxAgeDays)
	boolean("REQUIRE_VIDEO", &c.Ingest.RequireVideo)
	str("MISSING_PUBLISHED_AT", &c.Ingest.MissingPublishedAt)
	boolean("ESTIMATE_VIEWS_FROM_LIKES", &c.Ingest.EstimateViewsFromLikes)
	integer64("LIKES_MULTIPLIER", &c.Ingest.LikesMultiplier)

	integer("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	integer("RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts)

	boolean("TRANSCRIPTION_ENABLED", &c.Transcription.Enabled)
	str("TRANSCRIPTION_ENDPOINT", &c.Transcription.Endpoint)
	str("TRANSCRIPTION_TOKEN", &c.Transcription.Token)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// DefaultPath is where `config init` writes when no path is given
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "reelscout", "config.yaml")
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".reelscout.yaml",
		".reelscout.yml",
		DefaultPath(),
		filepath.Join(os.Getenv("HOME"), ".config", "reelscout", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".reelscout.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Provider.BaseURL == "" {
		errs = append(errs, errors.New("provider base URL is required"))
	} else if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("provider base URL %q is not an absolute URL", c.Provider.BaseURL))
	}
	if c.Provider.CompetitorActor == "" || c.Provider.HashtagActor == "" {
		errs = append(errs, errors.New("provider actors for competitor and hashtag sources are required"))
	}
	if c.Provider.Timeout <= 0 {
		errs = append(errs, errors.New("provider timeout must be positive"))
	}

	if c.Ingest.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Ingest.Workers > 16 {
		errs = append(errs, errors.New("workers should not exceed 16"))
	}
	if c.Ingest.ResultsLimit <= 0 {
		errs = append(errs, errors.New("results limit must be positive"))
	}
	if err := c.Policy().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Ingest.EstimateViewsFromLikes && c.Ingest.LikesMultiplier <= 0 {
		errs = append(errs, errors.New("likes multiplier must be positive when estimating views"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts <= 0 {
			errs = append(errs, errors.New("retry max attempts must be positive"))
		}
		if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
			errs = append(errs, errors.New("retry delays must be positive and max delay must not be below base delay"))
		}
		if c.Retry.Multiplier < 1 {
			errs = append(errs, errors.New("retry multiplier must be at least 1"))
		}
		if c.Retry.JitterFactor < 0 || c.Retry.JitterFactor > 1 {
			errs = append(errs, errors.New("retry jitter factor must be between 0 and 1"))
		}
	}

	if c.Transcription.Enabled && c.Transcription.Endpoint == "" {
		errs = append(errs, errors.New("transcription endpoint is required when transcription is enabled"))
	}

	validDBLevels := map[string]bool{"silent": true, "error": true, "warn": true, "info": true}
	if !validDBLevels[strings.ToLower(c.Database.LogLevel)] {
		errs = append(errs, errors.New("invalid database log level"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Zero values mean the flag was not set.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if project, ok := flags["project"].(string); ok && project != "" {
		c.Project.Name = project
	}
	if dsn, ok := flags["dsn"].(string); ok && dsn != "" {
		c.Database.DSN = dsn
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Ingest.Workers = workers
	}
	if limit, ok := flags["results-limit"].(int); ok && limit > 0 {
		c.Ingest.ResultsLimit = limit
	}
	if minViews, ok := flags["min-views"].(int64); ok && minViews > 0 {
		c.Ingest.MinViews = minViews
	}
	if days, ok := flags["max-age-days"].(int); ok && days > 0 {
		c.Ingest.MaxAgeDays = days
	}
	if requireVideo, ok := flags["require-video"].(bool); ok && requireVideo {
		c.Ingest.RequireVideo = true
	}
	if estimate, ok := flags["estimate-views"].(bool); ok && estimate {
		c.Ingest.EstimateViewsFromLikes = true
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".reelscout.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
