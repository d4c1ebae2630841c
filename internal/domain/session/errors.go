package session

import "errors"

var (
	// ErrInvalidArgument is returned for malformed session ids or messages
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned for operations on sessions that do not exist
	ErrNotFound = errors.New("session not found")
	// ErrNotReady is returned when no pairing artifact is available
	ErrNotReady = errors.New("pairing artifact not ready")
	// ErrNotInitialized is returned when a connection state is requested
	// before the session is paired
	ErrNotInitialized = errors.New("session not initialized")
	// ErrServiceUnavailable is returned when sending through a session that
	// is not paired
	ErrServiceUnavailable = errors.New("client not ready for this session")
	// ErrHandshakeFailed marks a pairing handshake that did not complete
	ErrHandshakeFailed = errors.New("handshake failed")
	// ErrUpstream wraps failures reported by a paired automation client
	ErrUpstream = errors.New("automation client error")
	// ErrShutdown is returned once the manager has been shut down
	ErrShutdown = errors.New("session manager is shut down")
)
