package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// FileName is the configuration file name without extension
	FileName = "conduit-meta"
	// EnvPrefix prefixes environment overrides, e.g. CONDUIT_META_LOG_LEVEL
	EnvPrefix = "CONDUIT_META"
)

// Config represents the metamodel tooling configuration
type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	Declarations DeclarationsConfig `mapstructure:"declarations"`
	FetchPlan    FetchPlanConfig    `mapstructure:"fetchplan"`
	Events       EventsConfig       `mapstructure:"events"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// DeclarationsConfig locates the entity declaration file
type DeclarationsConfig struct {
	Path string `mapstructure:"path"`
}

// FetchPlanConfig represents fetch plan configuration
type FetchPlanConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

// EventsConfig represents change event delivery configuration
type EventsConfig struct {
	AsyncWorkers int         `mapstructure:"async_workers"`
	QueueSize    int         `mapstructure:"queue_size"`
	Redis        RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the Redis publisher. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// Enabled returns true when a Redis address is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.development", false)
	v.SetDefault("declarations.path", "entities.yaml")
	v.SetDefault("fetchplan.max_depth", 32)
	v.SetDefault("events.async_workers", 4)
	v.SetDefault("events.queue_size", 100)
	v.SetDefault("events.redis.addr", "")
	v.SetDefault("events.redis.password", "")
	v.SetDefault("events.redis.db", 0)
	v.SetDefault("events.redis.channel", "conduit:changes")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load loads conduit-meta.yaml (or .yml) from the working directory,
// falling back to defaults when no file exists
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFile loads configuration from an explicit path
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	// Relative declaration paths are resolved against the config file
	if !filepath.IsAbs(cfg.Declarations.Path) {
		cfg.Declarations.Path = filepath.Join(filepath.Dir(path), cfg.Declarations.Path)
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DeclarationsExist checks that the declaration file is readable
func (c *Config) DeclarationsExist() bool {
	info, err := os.Stat(c.Declarations.Path)
	return err == nil && !info.IsDir()
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got: %s", cfg.Log.Level)
	}
	if cfg.Declarations.Path == "" {
		return fmt.Errorf("declarations.path must not be empty")
	}
	if cfg.FetchPlan.MaxDepth < 1 {
		return fmt.Errorf("fetchplan.max_depth must be positive, got: %d", cfg.FetchPlan.MaxDepth)
	}
	if cfg.Events.AsyncWorkers < 1 {
		return fmt.Errorf("events.async_workers must be positive, got: %d", cfg.Events.AsyncWorkers)
	}
	if cfg.Events.QueueSize < 1 {
		return fmt.Errorf("events.queue_size must be positive, got: %d", cfg.Events.QueueSize)
	}
	if cfg.Events.Redis.Enabled() && cfg.Events.Redis.Channel == "" {
		return fmt.Errorf("events.redis.channel must be set when events.redis.addr is")
	}
	return nil
}
