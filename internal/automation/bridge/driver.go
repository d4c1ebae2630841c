package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/GriffinCanCode/sessiongate/internal/automation"
	"github.com/GriffinCanCode/sessiongate/internal/infrastructure/tracing"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types sent on a session's event stream
const (
	EventQR          = "qr"
	EventReady       = "ready"
	EventAuthFailure = "auth_failure"
	EventError       = "error"
)

// event is one message from the bridge's per-session event stream
type event struct {
	Type  string `json:"type"`
	Data  string `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// ErrStreamClosed reports an event stream that ended before the session
// was paired.
var ErrStreamClosed = errors.New("event stream closed before pairing completed")

// Initialize implements automation.Driver. It launches the session on the
// bridge, follows its event stream, and returns once the phone has paired.
func (d *Driver) Initialize(ctx context.Context, sessionID string, opts automation.LaunchOptions, onArtifact automation.ArtifactFunc) (automation.Client, error) {
	if d.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, d.cfg.HandshakeTimeout,
			fmt.Errorf("handshake timeout after %s", d.cfg.HandshakeTimeout))
		defer cancel()
	}

	log := d.logger.With(zap.String("session", sessionID))

	if _, err := call(ctx, d, "launch", func(ctx context.Context) (struct{}, error) {
		resp, err := d.commands.R().
			SetContext(ctx).
			SetPathParam("id", sessionID).
			SetBody(opts).
			Post(pathSession)
		return struct{}{}, d.check("launch", resp, err)
	}); err != nil {
		return nil, err
	}

	c, err := d.follow(ctx, sessionID, opts.Generation, onArtifact, log)
	if err != nil {
		// Don't leave a half-paired browser on the bridge.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.RequestTimeout)
		defer cancel()
		if derr := d.destroy(cleanupCtx, sessionID, opts.Generation); derr != nil {
			log.Warn("failed to discard unpaired bridge session", zap.Error(derr))
		}
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, err
	}
	return c, nil
}

// follow reads the event stream until the session is ready or has failed
func (d *Driver) follow(ctx context.Context, sessionID, generation string, onArtifact automation.ArtifactFunc, log *zap.Logger) (automation.Client, error) {
	conn, err := d.dial(ctx, sessionID, generation)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrStreamClosed
			}
			return nil, fmt.Errorf("%w: event stream: %w", ErrBridge, err)
		}

		switch ev.Type {
		case EventQR:
			if ev.Data == "" {
				continue
			}
			onArtifact(ev.Data)
		case EventReady:
			return &client{d: d, sessionID: sessionID, generation: generation}, nil
		case EventAuthFailure, EventError:
			msg := ev.Error
			if msg == "" {
				msg = ev.Type
			}
			return nil, errors.New(msg)
		default:
			log.Debug("ignoring bridge event", zap.String("type", ev.Type))
		}
	}
}

// dial opens the event stream, retrying with exponential backoff. A 4xx
// upgrade response is not retried.
func (d *Driver) dial(ctx context.Context, sessionID, generation string) (*websocket.Conn, error) {
	target := *d.eventURL
	target.Path += fmt.Sprintf(pathEvents, url.PathEscape(sessionID))
	if generation != "" {
		target.RawQuery = url.Values{paramGeneration: {generation}}.Encode()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.cfg.DialBackoff
	policy.MaxElapsedTime = 0

	var conn *websocket.Conn
	op := func() error {
		header := http.Header{}
		header.Set("X-Request-ID", uuid.NewString())
		tracing.InjectTraceContext(ctx, header)

		c, resp, err := d.dialer.DialContext(ctx, target.String(), header)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(fmt.Errorf("%w: event stream: %s", automation.ErrRejected, resp.Status))
			}
			return fmt.Errorf("%w: event stream: %w", ErrBridge, err)
		}
		conn = c
		return nil
	}

	started := time.Now()
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, d.cfg.DialRetries), ctx))
	if err != nil {
		d.logger.Warn("event stream unavailable",
			zap.String("session", sessionID),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return nil, err
	}
	return conn, nil
}
