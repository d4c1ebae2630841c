// Package config provides 12-factor configuration management for the session gateway.
//
// Configuration is loaded from environment variables with sensible defaults.
// A YAML file passed with -config, and CLI flags, override the environment.
//
// Configuration Sections:
//   - Server: HTTP listen address and shutdown grace period
//   - Automation: bridge URL, browser launch options, handshake and request timeouts
//   - Profiles: root directory of per-session browser profiles
//   - Workers: maximum concurrent pairing handshakes
//   - Health: liveness/readiness probe thresholds
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting
//   - Breaker: circuit breaker guarding the bridge
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - BRIDGE_URL, HEADLESS, BROWSER_ARGS, HANDSHAKE_TIMEOUT, BRIDGE_REQUEST_TIMEOUT, BRIDGE_QUERY_RETRIES
//   - PROFILE_DIR, HANDSHAKE_WORKERS
//   - HEALTH_MAX_GOROUTINES, HEALTH_BRIDGE_TIMEOUT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - BREAKER_MAX_FAILURES, BREAKER_TIMEOUT
package config
