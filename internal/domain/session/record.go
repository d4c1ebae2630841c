package session

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/sessiongate/internal/automation"
	"github.com/GriffinCanCode/sessiongate/internal/shared/id"
)

// Record holds the state of one session. Fields behind mu are only written
// by the Manager.
type Record struct {
	ID         string
	Generation id.HandshakeID
	CreatedAt  time.Time

	mu            sync.Mutex
	state         State
	artifact      string
	artifactCount int
	client        automation.Client
	lastError     string
	updatedAt     time.Time

	// cancel aborts the pairing handshake
	cancel context.CancelFunc
}

func newRecord(sessionID string, now time.Time) *Record {
	return &Record{
		ID:         sessionID,
		Generation: id.NewHandshakeID(),
		CreatedAt:  now,
		state:      StateInitializing,
		updatedAt:  now,
	}
}


// Snapshot is a point-in-time copy of a record
type Snapshot struct {
	ID              string    `json:"id"`
	State           State     `json:"state"`
	HasArtifact     bool      `json:"has_artifact"`
	ArtifactUpdates int       `json:"artifact_updates"`
	LastError       string    `json:"last_error,omitempty"`
	Generation      string    `json:"generation"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// State returns the record's current state
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot copies the record
func (r *Record) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Record) snapshotLocked() Snapshot {
	return Snapshot{
		ID:              r.ID,
		State:           r.state,
		HasArtifact:     r.artifact != "",
		ArtifactUpdates: r.artifactCount,
		LastError:       r.lastError,
		Generation:      r.Generation.String(),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.updatedAt,
	}
}

// reusable reports whether Create should hand back this record
func (r *Record) reusable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.live()
}

// close marks the record CLOSED, aborts a pending handshake and hands the
// client to the caller. It returns nil if the record held no client or was
// already closed.
func (r *Record) close(now time.Time) automation.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	if r.state == StateClosed {
		return nil
	}
	client := r.client
	r.state = StateClosed
	r.client = nil
	r.artifact = ""
	r.updatedAt = now
	return client
}
