package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)

	// Automation config
	assert.Equal(t, "http://localhost:3000", cfg.Automation.BridgeURL)
	assert.True(t, cfg.Automation.Headless)
	assert.Equal(t, []string{"--no-sandbox", "--disable-setuid-sandbox", "--headless=new"}, cfg.Automation.BrowserArgs)
	assert.Zero(t, cfg.Automation.HandshakeTimeout)

	// Profiles and workers
	assert.Equal(t, "./tokens", cfg.Profiles.Dir)
	assert.Equal(t, 64, cfg.Workers.Handshakes)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Breaker config
	assert.Equal(t, uint32(5), cfg.Breaker.MaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)
}

func TestLoadMatchesDefault(t *testing.T) {
	// With no env vars set, struct tag defaults must agree with Default()
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                 "9000",
		"HOST":                 "127.0.0.1",
		"BRIDGE_URL":           "http://bridge:3000",
		"HEADLESS":             "false",
		"BROWSER_ARGS":         "--no-sandbox,--lang=en",
		"HANDSHAKE_TIMEOUT":    "2m",
		"PROFILE_DIR":          "/var/lib/sessiongate",
		"HANDSHAKE_WORKERS":    "8",
		"LOG_LEVEL":            "debug",
		"LOG_DEV":              "true",
		"RATE_LIMIT_RPS":       "500",
		"RATE_LIMIT_BURST":     "1000",
		"RATE_LIMIT_ENABLED":   "false",
		"BREAKER_MAX_FAILURES": "10",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "http://bridge:3000", cfg.Automation.BridgeURL)
	assert.False(t, cfg.Automation.Headless)
	assert.Equal(t, []string{"--no-sandbox", "--lang=en"}, cfg.Automation.BrowserArgs)
	assert.Equal(t, 2*time.Minute, cfg.Automation.HandshakeTimeout)

	assert.Equal(t, "/var/lib/sessiongate", cfg.Profiles.Dir)
	assert.Equal(t, 8, cfg.Workers.Handshakes)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)

	assert.Equal(t, uint32(10), cfg.Breaker.MaxFailures)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Defaults still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "http://localhost:3000", cfg.Automation.BridgeURL)
	assert.True(t, cfg.Automation.Headless)
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("HANDSHAKE_WORKERS", "many")

	_, err := Load()
	assert.Error(t, err)

	// LoadOrDefault falls back instead of failing
	cfg := LoadOrDefault()
	assert.Equal(t, 64, cfg.Workers.Handshakes)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessiongate.yaml")

	content := `
server:
  port: "7000"
automation:
  bridge_url: http://automation.internal:4000
  browser_args:
    - --no-sandbox
  handshake_timeout: 90s
profiles:
  dir: /data/profiles
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// File wins over environment
	t.Setenv("PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "http://automation.internal:4000", cfg.Automation.BridgeURL)
	assert.Equal(t, []string{"--no-sandbox"}, cfg.Automation.BrowserArgs)
	assert.Equal(t, 90*time.Second, cfg.Automation.HandshakeTimeout)
	assert.Equal(t, "/data/profiles", cfg.Profiles.Dir)

	// Keys absent from the file keep env/default values
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.True(t, cfg.Automation.Headless)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err = LoadFile(path)
	assert.Error(t, err)
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		host     string
		wantPort string
		wantHost string
	}{
		{
			name:     "default values",
			wantPort: "5000",
			wantHost: "0.0.0.0",
		},
		{
			name:     "custom port",
			port:     "9000",
			wantPort: "9000",
			wantHost: "0.0.0.0",
		},
		{
			name:     "custom host",
			host:     "localhost",
			wantPort: "5000",
			wantHost: "localhost",
		},
		{
			name:     "custom port and host",
			port:     "3000",
			host:     "127.0.0.1",
			wantPort: "3000",
			wantHost: "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port != "" {
				t.Setenv("PORT", tt.port)
			}
			if tt.host != "" {
				t.Setenv("HOST", tt.host)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantHost, cfg.Server.Host)
		})
	}
}
