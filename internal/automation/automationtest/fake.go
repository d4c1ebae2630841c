// Package automationtest provides an in-memory automation driver whose
// handshakes are driven step by step from tests.
package automationtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/sessiongate/internal/automation"
)

// Script resolves a handshake without test interaction
type Script struct {
	Artifacts []string
	Client    *Client
	Err       error
}

// Driver is a fake automation.Driver
type Driver struct {
	// Auto, when set, scripts every handshake instead of waiting for the
	// test to drive it.
	Auto func(sessionID string) Script
	// IgnoreCancel makes handshakes keep waiting for the test after their
	// context ends, like an automation that paired just as it was aborted.
	IgnoreCancel bool

	mu         sync.Mutex
	handshakes map[string][]*Handshake
}

// NewDriver creates a driver whose handshakes wait to be driven
func NewDriver() *Driver {
	return &Driver{handshakes: make(map[string][]*Handshake)}
}

// Initialize implements automation.Driver
func (d *Driver) Initialize(ctx context.Context, sessionID string, opts automation.LaunchOptions, onArtifact automation.ArtifactFunc) (_ automation.Client, err error) {
	h := &Handshake{
		SessionID: sessionID,
		Options:   opts,
		artifacts: make(chan string),
		ack:       make(chan struct{}),
		result:    make(chan outcome),
		done:      make(chan struct{}),
	}

	d.mu.Lock()
	d.handshakes[sessionID] = append(d.handshakes[sessionID], h)
	cancelled := ctx.Done()
	if d.IgnoreCancel {
		cancelled = nil
	}
	d.mu.Unlock()

	defer func() {
		h.err = err
		close(h.done)
	}()

	if d.Auto != nil {
		script := d.Auto(sessionID)
		for _, a := range script.Artifacts {
			onArtifact(a)
		}
		if script.Err != nil {
			return nil, script.Err
		}
		if script.Client == nil {
			script.Client = NewClient()
		}
		return script.Client, nil
	}

	for {
		select {
		case a := <-h.artifacts:
			onArtifact(a)
			h.ack <- struct{}{}
		case r := <-h.result:
			if r.err != nil {
				return nil, r.err
			}
			return r.client, nil
		case <-cancelled:
			return nil, ctx.Err()
		}
	}
}

// Calls returns how many handshakes were started for sessionID
func (d *Driver) Calls(sessionID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handshakes[sessionID])
}

// Handshake waits up to timeout for the n-th (zero based) handshake of
// sessionID to start.
func (d *Driver) Handshake(sessionID string, n int, timeout time.Duration) (*Handshake, error) {
	deadline := time.Now().Add(timeout)
	for {
		d.mu.Lock()
		list := d.handshakes[sessionID]
		d.mu.Unlock()
		if len(list) > n {
			return list[n], nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("handshake %d for %s not started within %s", n, sessionID, timeout)
		}
		time.Sleep(time.Millisecond)
	}
}

type outcome struct {
	client automation.Client
	err    error
}

// Handshake is one in-flight Initialize call
type Handshake struct {
	SessionID string
	Options   automation.LaunchOptions

	artifacts chan string
	ack       chan struct{}
	result    chan outcome
	done      chan struct{}
	err       error
}

// Artifact delivers a pairing artifact and returns once the callback ran.
// It reports false if the handshake had already ended.
func (h *Handshake) Artifact(a string) bool {
	select {
	case h.artifacts <- a:
		<-h.ack
		return true
	case <-h.done:
		return false
	}
}

// Ready resolves the handshake with client and waits for Initialize to return
func (h *Handshake) Ready(client automation.Client) bool {
	return h.resolve(outcome{client: client})
}

// Fail rejects the handshake with err and waits for Initialize to return
func (h *Handshake) Fail(err error) bool {
	return h.resolve(outcome{err: err})
}

func (h *Handshake) resolve(o outcome) bool {
	select {
	case h.result <- o:
		<-h.done
		return true
	case <-h.done:
		return false
	}
}

// Done is closed when Initialize has returned
func (h *Handshake) Done() <-chan struct{} {
	return h.done
}

// Cancelled reports whether Initialize returned because its context ended.
// It is only meaningful after Done is closed.
func (h *Handshake) Cancelled() bool {
	select {
	case <-h.done:
		return errors.Is(h.err, context.Canceled)
	default:
		return false
	}
}

// Message is a message accepted by a fake client
type Message struct {
	To   string
	Text string
}

// Client is a fake automation.Client
type Client struct {
	mu       sync.Mutex
	state    string
	stateErr error
	sendErr  error
	closeErr error
	sent     []Message
	closes   int
}

// NewClient creates a connected client
func NewClient() *Client {
	return &Client{state: automation.StateConnected}
}

// SetState sets what ConnectionState reports
func (c *Client) SetState(state string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state, c.stateErr = state, err
}

// SetSendError makes SendMessage fail with err
func (c *Client) SetSendError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// SetCloseError makes Close fail with err
func (c *Client) SetCloseError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeErr = err
}

// SendMessage implements automation.Client
func (c *Client) SendMessage(_ context.Context, to, text string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendErr != nil {
		return nil, c.sendErr
	}
	c.sent = append(c.sent, Message{To: to, Text: text})
	return json.Marshal(map[string]any{
		"id":  fmt.Sprintf("msg-%d", len(c.sent)),
		"to":  to,
		"ack": 1,
	})
}

// ConnectionState implements automation.Client
func (c *Client) ConnectionState(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.stateErr
}

// Close implements automation.Client
func (c *Client) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return c.closeErr
}

// Sent returns the messages accepted so far
func (c *Client) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}

// Closes returns how many times Close was called
func (c *Client) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}
