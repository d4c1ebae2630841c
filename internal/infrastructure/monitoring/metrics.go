package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handshake outcomes
const (
	OutcomeReady     = "ready"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// Send outcomes
const (
	SendSent     = "sent"
	SendFailed   = "failed"
	SendRejected = "rejected"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Session metrics
	SessionsActive    *prometheus.GaugeVec
	SessionsCreated   prometheus.Counter
	SessionsDeleted   prometheus.Counter
	Handshakes        *prometheus.CounterVec
	HandshakeDuration prometheus.Histogram
	PairingArtifacts  prometheus.Counter
	Messages          *prometheus.CounterVec
	ClientCloseErrors prometheus.Counter

	// Bridge metrics
	BridgeCalls    *prometheus.CounterVec
	BridgeDuration *prometheus.HistogramVec
	BreakerState   prometheus.Gauge

	// WebSocket metrics
	StreamConnections prometheus.Gauge
	StreamEvents      *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for the health endpoint
type MetricsSnapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	MessagesSent    int64   `json:"messages_sent"`
	MessagesFailed  int64   `json:"messages_failed"`
	HandshakesReady int64   `json:"handshakes_ready"`
	HandshakesFail  int64   `json:"handshakes_failed"`
	AvgLatencySecs  float64 `json:"avg_latency_seconds"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
	totalDuration   float64
}

// NewMetrics creates a new metrics collector backed by its own registry,
// so several gateways (or tests) can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessiongate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessiongate_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessiongate_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Session metrics
		SessionsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sessiongate_sessions",
				Help: "Number of registered sessions by lifecycle state",
			},
			[]string{"state"},
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sessiongate_sessions_created_total",
				Help: "Total number of session records created",
			},
		),
		SessionsDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sessiongate_sessions_deleted_total",
				Help: "Total number of sessions deleted",
			},
		),
		Handshakes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_handshakes_total",
				Help: "Pairing handshakes by outcome",
			},
			[]string{"outcome"},
		),
		HandshakeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sessiongate_handshake_duration_seconds",
				Help:    "Time from handshake launch to ready/failed",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		PairingArtifacts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sessiongate_pairing_artifacts_total",
				Help: "Total number of pairing artifacts (QR codes) received",
			},
		),
		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_messages_total",
				Help: "Outbound messages by outcome",
			},
			[]string{"status"},
		),
		ClientCloseErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sessiongate_client_close_errors_total",
				Help: "Automation client close failures during teardown",
			},
		),

		// Bridge metrics
		BridgeCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_bridge_calls_total",
				Help: "Calls to the automation bridge",
			},
			[]string{"operation", "status"},
		),
		BridgeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessiongate_bridge_duration_seconds",
				Help:    "Automation bridge call duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		BreakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessiongate_bridge_breaker_state",
				Help: "Bridge circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
		),

		// WebSocket metrics
		StreamConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessiongate_stream_connections",
				Help: "Number of open session event streams",
			},
		),
		StreamEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessiongate_stream_events_total",
				Help: "Session events written to streams",
			},
			[]string{"type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "sessiongate_uptime_seconds",
			Help: "Gateway uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry for collectors that register
// themselves (health checks).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// SetSessions replaces the per-state session gauges
func (m *Metrics) SetSessions(counts map[string]int) {
	m.SessionsActive.Reset()
	for state, count := range counts {
		m.SessionsActive.WithLabelValues(state).Set(float64(count))
	}
}

// IncSessionsCreated increments the created sessions counter
func (m *Metrics) IncSessionsCreated() {
	m.SessionsCreated.Inc()
}

// IncSessionsDeleted increments the deleted sessions counter
func (m *Metrics) IncSessionsDeleted() {
	m.SessionsDeleted.Inc()
}

// RecordHandshake records the end of a pairing handshake
func (m *Metrics) RecordHandshake(outcome string, duration time.Duration) {
	m.Handshakes.WithLabelValues(outcome).Inc()
	if outcome == OutcomeDiscarded {
		return
	}
	m.HandshakeDuration.Observe(duration.Seconds())

	m.mu.Lock()
	if outcome == OutcomeReady {
		m.snapshot.HandshakesReady++
	} else {
		m.snapshot.HandshakesFail++
	}
	m.mu.Unlock()
}

// IncPairingArtifacts increments the pairing artifact counter
func (m *Metrics) IncPairingArtifacts() {
	m.PairingArtifacts.Inc()
}

// RecordMessage records an outbound message attempt
func (m *Metrics) RecordMessage(status string) {
	m.Messages.WithLabelValues(status).Inc()

	m.mu.Lock()
	switch status {
	case SendSent:
		m.snapshot.MessagesSent++
	case SendFailed:
		m.snapshot.MessagesFailed++
	}
	m.mu.Unlock()
}

// IncClientCloseErrors increments the close failure counter
func (m *Metrics) IncClientCloseErrors() {
	m.ClientCloseErrors.Inc()
}

// RecordBridgeCall records a call to the automation bridge
func (m *Metrics) RecordBridgeCall(operation, status string, duration time.Duration) {
	m.BridgeCalls.WithLabelValues(operation, status).Inc()
	m.BridgeDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetBreakerState records the bridge breaker state
func (m *Metrics) SetBreakerState(state int) {
	m.BreakerState.Set(float64(state))
}

// IncStreamConnections increments open event streams
func (m *Metrics) IncStreamConnections() {
	m.StreamConnections.Inc()
}

// DecStreamConnections decrements open event streams
func (m *Metrics) DecStreamConnections() {
	m.StreamConnections.Dec()
}

// RecordStreamEvent records an event written to a stream
func (m *Metrics) RecordStreamEvent(eventType string) {
	m.StreamEvents.WithLabelValues(eventType).Inc()
}

// Snapshot returns current values for the health endpoint
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	if snap.TotalRequests > 0 {
		snap.AvgLatencySecs = snap.totalDuration / float64(snap.TotalRequests)
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
