// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Session lifecycle events are logged with a "session" field so one
// session's pairing, readiness and teardown can be followed across
// interleaved requests.
//
// Example Usage:
//
//	logger := logging.NewFromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	logger.Info("Server starting", zap.String("port", "5000"))
//	logger.Named("session").Info("QR code generated", zap.String("session", "alice"))
//
// The level can be changed at runtime through LevelHandler, mounted by the
// server at /log/level.
package logging
