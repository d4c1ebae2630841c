// Package automation defines the contract between the session manager and
// the browser automation that actually talks to the messaging network.
//
// A Driver runs the pairing handshake for one session: it reports pairing
// artifacts (QR payloads) through a callback and resolves with a Client once
// the phone has scanned one. The HTTP bridge implementation lives in the
// bridge subpackage; automationtest provides a scriptable fake.
package automation
