package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GriffinCanCode/sessiongate/internal/automation"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/tracing"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ErrBridge reports a bridge failure that is not a rejection: transport
// errors, 5xx responses, malformed replies.
var ErrBridge = errors.New("automation bridge error")

// Bridge endpoints
const (
	pathHealth   = "/healthz"
	pathSession  = "/sessions/{id}"
	pathMessages = "/sessions/{id}/messages"
	pathState    = "/sessions/{id}/state"
	pathEvents   = "/sessions/%s/events"

	// paramGeneration scopes event streams and teardown to one launch
	paramGeneration = "generation"
)

// Config configures the bridge driver
type Config struct {
	BaseURL string
	// RequestTimeout bounds each REST call
	RequestTimeout time.Duration
	// QueryRetries is how many times idempotent reads are retried
	QueryRetries   int
	QueryRetryWait time.Duration
	// HandshakeTimeout bounds a whole pairing handshake. Zero waits until
	// the caller's context ends.
	HandshakeTimeout time.Duration
	// DialRetries and DialBackoff control reconnecting to the event stream
	DialRetries uint64
	DialBackoff time.Duration
	// BreakerFailures consecutive failures open the breaker for BreakerTimeout
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns the default bridge configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://localhost:3000",
		RequestTimeout:  30 * time.Second,
		QueryRetries:    3,
		QueryRetryWait:  500 * time.Millisecond,
		DialRetries:     5,
		DialBackoff:     200 * time.Millisecond,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Driver launches sessions on a remote automation bridge
type Driver struct {
	cfg      Config
	commands *resty.Client
	queries  *resty.Client
	breaker  *resilience.Breaker
	dialer   *websocket.Dialer
	eventURL *url.URL
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// New creates a bridge driver. metrics may be nil.
func New(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) (*Driver, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid bridge url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid bridge url %q: scheme must be http or https", cfg.BaseURL)
	}

	defaults := DefaultConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.QueryRetryWait <= 0 {
		cfg.QueryRetryWait = defaults.QueryRetryWait
	}
	if cfg.DialBackoff <= 0 {
		cfg.DialBackoff = defaults.DialBackoff
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaults.BreakerFailures
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaults.BreakerTimeout
	}

	eventURL := *base
	eventURL.Scheme = "ws"
	if base.Scheme == "https" {
		eventURL.Scheme = "wss"
	}

	d := &Driver{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.RequestTimeout},
		eventURL: &eventURL,
		logger:   logger.Named("bridge"),
		metrics:  metrics,
	}

	// Commands launch browsers and send messages: never replay them.
	d.commands = resty.New().
		SetBaseURL(base.String()).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("User-Agent", "sessiongate/1.0").
		OnBeforeRequest(d.decorate)

	// Reads are idempotent and go through a retrying transport.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.QueryRetries
	retryClient.RetryWaitMin = cfg.QueryRetryWait
	retryClient.RetryWaitMax = 4 * cfg.QueryRetryWait
	retryClient.Logger = nil
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	d.queries = resty.NewWithClient(retryClient.StandardClient()).
		SetBaseURL(base.String()).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("User-Agent", "sessiongate/1.0").
		OnBeforeRequest(d.decorate)

	d.breaker = resilience.New("bridge", resilience.Settings{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, automation.ErrRejected)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			d.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
			if d.metrics != nil {
				d.metrics.SetBreakerState(int(to))
			}
		},
	})

	return d, nil
}

// Breaker exposes the breaker guarding bridge calls
func (d *Driver) Breaker() *resilience.Breaker {
	return d.breaker
}

// Ping checks that the bridge answers its health endpoint
func (d *Driver) Ping(ctx context.Context) error {
	resp, err := d.commands.R().SetContext(ctx).Get(pathHealth)
	return d.check("ping", resp, err)
}

// decorate stamps every outbound request with a request id and the caller's
// trace context.
func (d *Driver) decorate(_ *resty.Client, r *resty.Request) error {
	r.SetHeader("X-Request-ID", uuid.NewString())
	tracing.InjectTraceContext(r.Context(), r.Header)
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// check turns a resty outcome into an error. 4xx answers (except timeouts
// and throttling) are rejections; everything else is a bridge failure.
func (d *Driver) check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBridge, op, err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := resp.Status()
	var body errorResponse
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error != "" {
		msg = body.Error
	}

	code := resp.StatusCode()
	if code >= 400 && code < 500 && code != http.StatusRequestTimeout && code != http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s: %s", automation.ErrRejected, op, msg)
	}
	return fmt.Errorf("%w: %s returned %d: %s", ErrBridge, op, code, msg)
}

// call runs op through the breaker and records it
func call[T any](ctx context.Context, d *Driver, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	timer := monitoring.NewTimer(d.metrics, op)
	result, err := resilience.Call(ctx, d.breaker, fn)
	timer.Stop(outcomeLabel(err))
	return result, err
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, automation.ErrRejected):
		return "rejected"
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return "open"
	default:
		return "error"
	}
}

// client is a paired session living on the bridge
type client struct {
	d          *Driver
	sessionID  string
	generation string
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type stateResponse struct {
	State string `json:"state"`
}

// SendMessage implements automation.Client
func (c *client) SendMessage(ctx context.Context, to, text string) (json.RawMessage, error) {
	return call(ctx, c.d, "send", func(ctx context.Context) (json.RawMessage, error) {
		resp, err := c.d.commands.R().
			SetContext(ctx).
			SetPathParam("id", c.sessionID).
			SetBody(sendRequest{To: to, Text: text}).
			Post(pathMessages)
		if err := c.d.check("send", resp, err); err != nil {
			return nil, err
		}
		body := resp.Body()
		if len(body) == 0 {
			return json.RawMessage("null"), nil
		}
		if !json.Valid(body) {
			return nil, fmt.Errorf("%w: send: malformed result", ErrBridge)
		}
		return json.RawMessage(body), nil
	})
}

// ConnectionState implements automation.Client
func (c *client) ConnectionState(ctx context.Context) (string, error) {
	return call(ctx, c.d, "state", func(ctx context.Context) (string, error) {
		var out stateResponse
		resp, err := c.d.queries.R().
			SetContext(ctx).
			SetPathParam("id", c.sessionID).
			SetResult(&out).
			Get(pathState)
		if err := c.d.check("state", resp, err); err != nil {
			return "", err
		}
		if out.State == "" {
			return "", fmt.Errorf("%w: state: empty state", ErrBridge)
		}
		return out.State, nil
	})
}

// Close implements automation.Client. A session the bridge no longer knows,
// or one it relaunched under a newer generation, is already closed.
func (c *client) Close(ctx context.Context) error {
	return c.d.destroy(ctx, c.sessionID, c.generation)
}

func (d *Driver) destroy(ctx context.Context, sessionID, generation string) error {
	_, err := call(ctx, d, "close", func(ctx context.Context) (struct{}, error) {
		req := d.commands.R().
			SetContext(ctx).
			SetPathParam("id", sessionID)
		if generation != "" {
			req.SetQueryParam(paramGeneration, generation)
		}
		resp, err := req.Delete(pathSession)
		if err == nil {
			switch resp.StatusCode() {
			case http.StatusNotFound:
				return struct{}{}, nil
			case http.StatusConflict:
				d.logger.Debug("bridge session belongs to a newer generation",
					zap.String("session", sessionID),
					zap.String("generation", generation))
				return struct{}{}, nil
			}
		}
		return struct{}{}, d.check("close", resp, err)
	})
	return err
}
