package session

import (
	"fmt"
	"sort"
)

// Stats summarises the registry
type Stats struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

// PairingArtifact returns the latest pairing artifact of a session. Unknown
// sessions and sessions without an artifact both yield ErrNotReady.
func (m *Manager) PairingArtifact(sessionID string) (string, error) {
	rec, ok := m.registry.Get(sessionID)
	if !ok {
		return "", fmt.Errorf("%w: session %s does not exist", ErrNotReady, sessionID)
	}

	rec.mu.Lock()
	artifact := rec.artifact
	rec.mu.Unlock()

	if artifact == "" {
		return "", fmt.Errorf("%w: QR code not yet generated for session %s", ErrNotReady, sessionID)
	}
	return artifact, nil
}

// Status returns a snapshot of one session
func (m *Manager) Status(sessionID string) (Snapshot, error) {
	rec, ok := m.registry.Get(sessionID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: session %s does not exist", ErrNotFound, sessionID)
	}
	return rec.Snapshot(), nil
}

// List returns snapshots of every session ordered by id
func (m *Manager) List() []Snapshot {
	records := m.registry.Snapshot()
	out := make([]Snapshot, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats counts sessions by state
func (m *Manager) Stats() Stats {
	stats := Stats{ByState: make(map[string]int)}
	for _, rec := range m.registry.Snapshot() {
		stats.ByState[rec.State().String()]++
		stats.Total++
	}
	return stats
}
