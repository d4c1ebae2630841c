package tracing

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/GriffinCanCode/sessiongate/internal/shared/id"
	"go.uber.org/zap"
)

// Propagation headers
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// spanBuffer bounds finished spans waiting for the collector
const spanBuffer = 1000

// TraceID identifies every span started for one inbound request
type TraceID string

// SpanID identifies one span of a trace
type SpanID string

// Span is one timed operation. Spans are not safe for concurrent use; the
// goroutine that started a span finishes it.
type Span struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	Service    string
	StartTime  time.Time
	Duration   time.Duration
	StatusCode int
	Error      error

	tags []zap.Field
}

// SetTag attaches a string attribute, logged with the span
func (s *Span) SetTag(key, value string) {
	s.tags = append(s.tags, zap.String(key, value))
}

// SetStatus records the response status
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// SetError marks the span failed. A span without a server error status is
// bumped to 500.
func (s *Span) SetError(err error) {
	s.Error = err
	if s.StatusCode < http.StatusInternalServerError {
		s.StatusCode = http.StatusInternalServerError
	}
}

// Finish stops the span clock
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

func (s *Span) fields() []zap.Field {
	fields := make([]zap.Field, 0, len(s.tags)+7)
	fields = append(fields,
		zap.String("trace_id", string(s.TraceID)),
		zap.String("span_id", string(s.SpanID)),
		zap.String("operation", s.Name),
		zap.Duration("duration", s.Duration),
		zap.Int("status", s.StatusCode),
	)
	if s.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(s.ParentID)))
	}
	fields = append(fields, s.tags...)
	if s.Error != nil {
		fields = append(fields, zap.Error(s.Error))
	}
	return fields
}

// Tracer hands finished spans to a background goroutine that logs them
type Tracer struct {
	service string
	logger  *zap.Logger
	queue   chan *Span

	mu      sync.RWMutex
	stopped bool
	drained chan struct{}
}

// New starts a tracer for service
func New(service string, logger *zap.Logger) *Tracer {
	t := &Tracer{
		service: service,
		logger:  logger.Named("trace"),
		queue:   make(chan *Span, spanBuffer),
		drained: make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Tracer) run() {
	defer close(t.drained)
	for span := range t.queue {
		if span.Error != nil {
			t.logger.Warn("span completed with error", span.fields()...)
			continue
		}
		t.logger.Debug("span completed", span.fields()...)
	}
}

// StartSpan opens a span under the one carried by ctx. Without an inbound
// trace a new trace id is minted.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	parent := fromContext(ctx)
	if parent.trace == "" {
		parent.trace = TraceID(id.NewRequestID())
	}

	span := &Span{
		TraceID:   parent.trace,
		SpanID:    SpanID(id.NewSpanID()),
		ParentID:  parent.span,
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
	}
	return span, withTrace(ctx, span.TraceID, span.SpanID)
}

// Submit queues a finished span. Spans are dropped when the queue is full
// or the tracer is closed.
func (t *Tracer) Submit(span *Span) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.stopped {
		return
	}

	select {
	case t.queue <- span:
	default:
		t.logger.Warn("span buffer full, dropping span", zap.String("trace_id", string(span.TraceID)))
	}
}

// Close logs queued spans and stops the tracer. It is safe to call twice.
func (t *Tracer) Close() {
	t.mu.Lock()
	if !t.stopped {
		t.stopped = true
		close(t.queue)
	}
	t.mu.Unlock()

	<-t.drained
}

type traceKey struct{}

type traceContext struct {
	trace TraceID
	span  SpanID
}

func fromContext(ctx context.Context) traceContext {
	tc, _ := ctx.Value(traceKey{}).(traceContext)
	return tc
}

func withTrace(ctx context.Context, trace TraceID, span SpanID) context.Context {
	return context.WithValue(ctx, traceKey{}, traceContext{trace: trace, span: span})
}

// GetTraceID returns the trace id carried by ctx, if any
func GetTraceID(ctx context.Context) TraceID {
	return fromContext(ctx).trace
}

// GetSpanID returns the current span id carried by ctx, if any
func GetSpanID(ctx context.Context) SpanID {
	return fromContext(ctx).span
}

// LogFields returns the trace of ctx as zap fields, or nothing when ctx
// carries no trace
func LogFields(ctx context.Context) []zap.Field {
	tc := fromContext(ctx)
	if tc.trace == "" {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", string(tc.trace)),
		zap.String("span_id", string(tc.span)),
	}
}

// ExtractTraceContext continues the trace named by inbound headers
func ExtractTraceContext(ctx context.Context, header http.Header) context.Context {
	trace := TraceID(header.Get(HeaderTraceID))
	if trace == "" {
		return ctx
	}
	return withTrace(ctx, trace, SpanID(header.Get(HeaderSpanID)))
}

// InjectTraceContext propagates the trace of ctx on an outbound request
func InjectTraceContext(ctx context.Context, header http.Header) {
	tc := fromContext(ctx)
	if tc.trace == "" {
		return
	}
	header.Set(HeaderTraceID, string(tc.trace))
	if tc.span != "" {
		header.Set(HeaderSpanID, string(tc.span))
	}
}
