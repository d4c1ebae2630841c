// Package id mints the identifiers the gateway generates itself: handshake
// generations, request ids and span ids. Each is a ULID behind a short type
// prefix (hs_, req_, span_), so ids sort by creation time and read well in
// logs.
//
// Session IDs are caller supplied and never generated here.
package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// HandshakeID identifies one pairing handshake. A session record is owned by
// exactly one handshake for its whole life.
type HandshakeID string

// RequestID identifies an API request or an outbound bridge call
type RequestID string

// SpanID identifies a tracing span
type SpanID string

const (
	HandshakePrefix = "hs"
	RequestPrefix   = "req"
	SpanPrefix      = "span"
)

const separator = "_"

// Generator mints ULIDs. IDs minted by one generator within the same
// millisecond are strictly increasing.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// shared mints every typed id of the process
var shared = NewGenerator()

// Generate mints a ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// GenerateString mints a bare ULID string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix mints a ULID string behind prefix
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return prefix + separator + g.GenerateString()
}

func mint[T ~string](prefix string) T {
	return T(shared.GenerateWithPrefix(prefix))
}

// NewHandshakeID mints a handshake generation
func NewHandshakeID() HandshakeID { return mint[HandshakeID](HandshakePrefix) }

// NewRequestID mints a request id
func NewRequestID() RequestID { return mint[RequestID](RequestPrefix) }

// NewSpanID mints a span id
func NewSpanID() SpanID { return mint[SpanID](SpanPrefix) }

func (h HandshakeID) String() string { return string(h) }
func (r RequestID) String() string   { return string(r) }
func (s SpanID) String() string      { return string(s) }

// Time reports when the handshake was started
func (h HandshakeID) Time() time.Time {
	ts, _ := Timestamp(string(h))
	return ts
}

// Parse reads a ULID with or without its type prefix
func Parse(s string) (ulid.ULID, error) {
	if i := strings.LastIndex(s, separator); i >= 0 {
		s = s[i+len(separator):]
	}
	return ulid.ParseStrict(s)
}

// Timestamp returns the creation time encoded in a (possibly prefixed) ULID
func Timestamp(s string) (time.Time, error) {
	parsed, err := Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
