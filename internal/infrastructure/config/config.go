package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Automation AutomationConfig `yaml:"automation"`
	Profiles   ProfileConfig    `yaml:"profiles"`
	Workers    WorkerConfig     `yaml:"workers"`
	Health     HealthConfig     `yaml:"health"`
	Logging    LogConfig        `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Breaker    BreakerConfig    `yaml:"breaker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"5000" yaml:"port"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s" yaml:"shutdown_timeout"`
}

// AutomationConfig holds settings for the browser automation bridge.
type AutomationConfig struct {
	BridgeURL        string        `envconfig:"BRIDGE_URL" default:"http://localhost:3000" yaml:"bridge_url"`
	Headless         bool          `envconfig:"HEADLESS" default:"true" yaml:"headless"`
	BrowserArgs      []string      `envconfig:"BROWSER_ARGS" default:"--no-sandbox,--disable-setuid-sandbox,--headless=new" yaml:"browser_args"`
	HandshakeTimeout time.Duration `envconfig:"HANDSHAKE_TIMEOUT" default:"0s" yaml:"handshake_timeout"`
	RequestTimeout   time.Duration `envconfig:"BRIDGE_REQUEST_TIMEOUT" default:"30s" yaml:"request_timeout"`
	QueryRetries     int           `envconfig:"BRIDGE_QUERY_RETRIES" default:"3" yaml:"query_retries"`
}

// ProfileConfig holds the location of per-session browser profiles.
type ProfileConfig struct {
	Dir string `envconfig:"PROFILE_DIR" default:"./tokens" yaml:"dir"`
}

// WorkerConfig bounds concurrent pairing handshakes.
type WorkerConfig struct {
	Handshakes int `envconfig:"HANDSHAKE_WORKERS" default:"64" yaml:"handshakes"`
}

// HealthConfig holds liveness probe thresholds.
type HealthConfig struct {
	MaxGoroutines int           `envconfig:"HEALTH_MAX_GOROUTINES" default:"10000" yaml:"max_goroutines"`
	BridgeTimeout time.Duration `envconfig:"HEALTH_BRIDGE_TIMEOUT" default:"2s" yaml:"bridge_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// BreakerConfig holds the circuit breaker guarding the automation bridge.
type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5" yaml:"max_failures"`
	Timeout     time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s" yaml:"timeout"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from the environment, then applies a YAML
// file on top. Keys present in the file win, like CLI flags do.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
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
			Port:            "5000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 15 * time.Second,
		},
		Automation: AutomationConfig{
			BridgeURL:      "http://localhost:3000",
			Headless:       true,
			BrowserArgs:    []string{"--no-sandbox", "--disable-setuid-sandbox", "--headless=new"},
			RequestTimeout: 30 * time.Second,
			QueryRetries:   3,
		},
		Profiles: ProfileConfig{
			Dir: "./tokens",
		},
		Workers: WorkerConfig{
			Handshakes: 64,
		},
		Health: HealthConfig{
			MaxGoroutines: 10000,
			BridgeTimeout: 2 * time.Second,
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
		Breaker: BreakerConfig{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
	}
}
