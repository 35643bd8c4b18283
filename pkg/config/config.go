// Package config loads the downloader configuration from a YAML file and
// KOS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JanTvrdik/kos-api/pkg/cache"
	"github.com/JanTvrdik/kos-api/pkg/client"
	"github.com/JanTvrdik/kos-api/pkg/downloader"
	"github.com/JanTvrdik/kos-api/pkg/logging"
	"github.com/JanTvrdik/kos-api/pkg/pagination"
)

// EnvPrefix prefixes environment overrides, e.g. KOS_API_PASSWORD.
const EnvPrefix = "KOS"

// Config represents the entire application configuration
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Downloader DownloaderConfig `mapstructure:"downloader"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// APIConfig contains KOS API access settings
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	Semester  string        `mapstructure:"semester"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DownloaderConfig contains scheduling and cache settings
type DownloaderConfig struct {
	MaxConnections int    `mapstructure:"max_connections"`
	MaxRetries     int    `mapstructure:"max_retries"`
	PageLimit      int    `mapstructure:"page_limit"`
	CacheDir       string `mapstructure:"cache_dir"`
	RedisAddr      string `mapstructure:"redis_addr"`
	RedisPrefix    string `mapstructure:"redis_prefix"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Pretty     bool   `mapstructure:"pretty"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// MetricsConfig contains the Prometheus endpoint settings
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from configPath, if given, and the environment.
// Environment variables take precedence over the file.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.username", "")
	v.SetDefault("api.password", "")
	v.SetDefault("api.semester", "")
	v.SetDefault("api.user_agent", client.DefaultUserAgent)
	v.SetDefault("api.timeout", client.DefaultTimeout)
	v.SetDefault("downloader.max_connections", 10)
	v.SetDefault("downloader.max_retries", 0)
	v.SetDefault("downloader.page_limit", pagination.DefaultLimit)
	v.SetDefault("downloader.cache_dir", "")
	v.SetDefault("downloader.redis_addr", "")
	v.SetDefault("downloader.redis_prefix", cache.DefaultRedisPrefix)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("metrics.addr", "")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.Username == "" {
		errs = append(errs, errors.New("api.username is required"))
	}
	if c.API.Password == "" {
		errs = append(errs, errors.New("api.password is required"))
	}
	if c.API.Semester == "" {
		errs = append(errs, errors.New("api.semester is required"))
	}
	if c.API.Timeout < 0 {
		errs = append(errs, errors.New("api.timeout must not be negative"))
	}

	if c.Downloader.MaxConnections < 1 {
		errs = append(errs, errors.New("downloader.max_connections must be at least 1"))
	}
	if c.Downloader.MaxRetries < 0 {
		errs = append(errs, errors.New("downloader.max_retries must not be negative"))
	}
	if c.Downloader.PageLimit < 1 {
		errs = append(errs, errors.New("downloader.page_limit must be at least 1"))
	}
	if c.Downloader.CacheDir != "" && c.Downloader.RedisAddr != "" {
		errs = append(errs, errors.New("downloader.cache_dir and downloader.redis_addr are mutually exclusive"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		errs = append(errs, fmt.Errorf("invalid logging.level: %s", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// ClientConfig returns the transport configuration.
func (c *Config) ClientConfig() client.Config {
	cfg := client.DefaultConfig(c.API.Username, c.API.Password)
	cfg.UserAgent = c.API.UserAgent
	cfg.Timeout = c.API.Timeout
	cfg.MaxConnsPerHost = c.Downloader.MaxConnections
	return cfg
}

// DownloaderConfig returns the scheduler configuration.
func (c *Config) DownloaderConfig() downloader.Config {
	return downloader.Config{
		BaseURL:        c.API.BaseURL,
		Semester:       c.API.Semester,
		MaxConnections: c.Downloader.MaxConnections,
		MaxRetries:     c.Downloader.MaxRetries,
	}
}

// LoggingConfig returns the logger configuration writing to stderr.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.Logging.Level)
	cfg.Pretty = c.Logging.Pretty
	cfg.File = logging.FileConfig{
		Path:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
	return cfg
}
