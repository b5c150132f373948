package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Queue     QueueConfig
	Client    ClientConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// QueueConfig holds job queue configuration.
type QueueConfig struct {
	Workers         int           `envconfig:"QUEUE_WORKERS" default:"8"`
	PollInterval    time.Duration `envconfig:"QUEUE_POLL_INTERVAL" default:"50ms"`
	DefaultTimeout  time.Duration `envconfig:"QUEUE_DEFAULT_TIMEOUT" default:"5m"`
	DefaultPriority int           `envconfig:"QUEUE_DEFAULT_PRIORITY" default:"5"`
}

// ClientConfig holds default policies for outbound dependency calls.
// Individual dependency targets may override any of these.
type ClientConfig struct {
	Timeout           time.Duration `envconfig:"CLIENT_TIMEOUT" default:"30s"`
	MaxRetries        int           `envconfig:"CLIENT_MAX_RETRIES" default:"3"`
	BaseDelay         time.Duration `envconfig:"CLIENT_BASE_DELAY" default:"500ms"`
	MaxDelay          time.Duration `envconfig:"CLIENT_MAX_DELAY" default:"30s"`
	BackoffMultiplier float64       `envconfig:"CLIENT_BACKOFF_MULTIPLIER" default:"2.0"`
	FailureThreshold  int           `envconfig:"CLIENT_FAILURE_THRESHOLD" default:"5"`
	ResetTimeout      time.Duration `envconfig:"CLIENT_RESET_TIMEOUT" default:"30s"`
	CacheEnabled      bool          `envconfig:"CLIENT_CACHE_ENABLED" default:"true"`
	CacheTTL          time.Duration `envconfig:"CLIENT_CACHE_TTL" default:"60s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Queue: QueueConfig{
			Workers:         8,
			PollInterval:    50 * time.Millisecond,
			DefaultTimeout:  5 * time.Minute,
			DefaultPriority: 5,
		},
		Client: ClientConfig{
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			BaseDelay:         500 * time.Millisecond,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2.0,
			FailureThreshold:  5,
			ResetTimeout:      30 * time.Second,
			CacheEnabled:      true,
			CacheTTL:          60 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
