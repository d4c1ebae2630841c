/*
Package monitoring provides Prometheus metrics for the session gateway.

# Overview

Each Metrics value owns its own prometheus.Registry. The gateway serves it
on /metrics; health checks register into the same registry.

# Metrics

- HTTP request counts, latency and sizes, labelled by route template
- Sessions by lifecycle state (gauge), created and deleted (counters)
- Pairing handshakes by outcome and their duration
- Pairing artifacts received, outbound messages by outcome
- Automation bridge calls and breaker state
- Open event streams and events written

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "send")
	// ... call the bridge ...
	timer.Stop("success")
*/
package monitoring
