// Package session manages the lifecycle of messaging automation sessions.
//
// Each caller-named session is a Record in a concurrent Registry, driven
// through its states by the Manager:
//
//	INITIALIZING -> AWAITING_PAIRING -> READY -> CLOSED
//	                       |
//	                       +-> FAILED -> (replaced by the next Create)
//
// Create reserves a record and starts the pairing handshake on a worker pool
// without waiting for it. Pairing artifacts (QR codes) reported during the
// handshake overwrite each other on the record until it is READY. Delete
// removes the record, closes its client and wipes its browser profile. A
// handshake that resolves after its record was removed is discarded, and a
// client it produced is closed.
//
// All record mutations go through Manager methods holding the record's
// lock. The registry's shard lock may be held while taking a record lock,
// never the other way around.
//
// Example Usage:
//
//	mgr, err := session.NewManager(driver, store, logger, session.DefaultConfig())
//	snap, created, err := mgr.Create(ctx, "alice")
//	qr, err := mgr.PairingArtifact("alice")
//	result, err := mgr.SendMessage(ctx, "alice", "5511999999999", "hi")
//	err = mgr.Delete(ctx, "alice")
package session
