package automation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Connection states reported by a paired client
const (
	StateConnected   = "CONNECTED"
	StateOpening     = "OPENING"
	StatePairing     = "PAIRING"
	StateUnpaired    = "UNPAIRED"
	StateConflict    = "CONFLICT"
	StateUnlaunched  = "UNLAUNCHED"
	StateDeprecated  = "DEPRECATED_VERSION"
	StateTimeout     = "TIMEOUT"
	StateProxyBlock  = "PROXYBLOCK"
	StateTOSBlock    = "TOS_BLOCK"
	StateSMBTOSBlock = "SMB_TOS_BLOCK"
)

// ChatSuffix is appended to bare phone numbers to form a chat address
const ChatSuffix = "@c.us"

// ErrRejected marks a request the automation side understood and refused
// (bad recipient, unknown chat). The automation itself is healthy.
var ErrRejected = errors.New("request rejected by automation")

// LaunchOptions configure the browser behind one session
type LaunchOptions struct {
	Headless    bool     `json:"headless"`
	BrowserArgs []string `json:"browserArgs,omitempty"`
	ProfileDir  string   `json:"profileDir,omitempty"`
	// Generation identifies the handshake that launched the browser. A
	// session id reused after a delete gets a new generation.
	Generation string `json:"generation,omitempty"`
}

// ArtifactFunc receives each pairing artifact (QR payload) as the automation
// produces it. Calls for one handshake are sequential and all happen before
// Initialize returns.
type ArtifactFunc func(artifact string)

// Driver launches paired automation clients
type Driver interface {
	// Initialize starts a session and blocks until it is paired (returning
	// the live client) or has failed. Cancelling ctx aborts the handshake.
	Initialize(ctx context.Context, sessionID string, opts LaunchOptions, onArtifact ArtifactFunc) (Client, error)
}

// Client is a live, paired automation session
type Client interface {
	// SendMessage delivers text to a chat address and returns the raw
	// delivery result reported by the automation.
	SendMessage(ctx context.Context, to, text string) (json.RawMessage, error)
	// ConnectionState returns the client's current connection state
	ConnectionState(ctx context.Context) (string, error)
	// Close terminates the automation and releases its browser
	Close(ctx context.Context) error
}

// ChatAddress turns a mobile number into a chat address. Values that already
// carry a domain part are returned unchanged.
func ChatAddress(mobile string) string {
	mobile = strings.TrimSpace(mobile)
	if strings.Contains(mobile, "@") {
		return mobile
	}
	return strings.TrimPrefix(mobile, "+") + ChatSuffix
}
