// Package http provides the gateway's REST handlers and the per-session
// websocket event stream.
//
// Endpoints:
//   - POST   /session/:id            start pairing (idempotent)
//   - GET    /session/:id            session status and profile usage
//   - DELETE /session/:id            tear down in any state
//   - GET    /session/:id/stream     websocket of lifecycle events
//   - GET    /sessions               list sessions
//   - GET    /qr/:id                 latest pairing QR code
//   - POST   /send-text/:id          send {mobile, message}
//   - GET    /connection-state/:id   transport state of a paired session
//   - GET    /, /health              service info and stats
//
// Errors are JSON bodies; session errors map to status codes in statusFor.
package http
