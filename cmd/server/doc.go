// Package main is the entry point for the session gateway.
//
// The gateway manages independent messaging-bot sessions, each backed by a
// browser automation running on a separate bridge process:
//
//	HTTP clients → sessiongate → automation bridge (REST + event stream)
//	                           → ./tokens/<session> (browser profiles)
//
// The server provides:
//   - Session lifecycle endpoints (create, QR, send, state, delete)
//   - A websocket stream of lifecycle events per session
//   - Liveness/readiness probes and Prometheus metrics
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables (12-factor)
//   - An optional YAML file (-config or CONFIG_FILE)
//   - CLI flags (override both)
//
// Usage:
//
//	# Production mode
//	./server -port 5000 -bridge http://localhost:3000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown. Paired clients are closed,
//     profiles are kept.
package main
