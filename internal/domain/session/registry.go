package session

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Registry maps session ids to their live record
type Registry struct {
	records cmap.ConcurrentMap[string, *Record]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{records: cmap.New[*Record]()}
}

// Get returns the record for sessionID
func (r *Registry) Get(sessionID string) (*Record, bool) {
	return r.records.Get(sessionID)
}

// GetOrCreate returns the live record for sessionID, or stores the one built
// by create. Records in INITIALIZING, AWAITING_PAIRING or READY are reused;
// a FAILED record is replaced. The check and the store happen under one
// shard lock, so concurrent callers agree on a single record.
func (r *Registry) GetOrCreate(sessionID string, create func() *Record) (*Record, bool) {
	created := false
	rec := r.records.Upsert(sessionID, nil, func(exists bool, current, _ *Record) *Record {
		if exists && current.reusable() {
			return current
		}
		created = true
		return create()
	})
	return rec, created
}

// Remove deletes and returns the record for sessionID
func (r *Registry) Remove(sessionID string) (*Record, bool) {
	return r.records.Pop(sessionID)
}

// RemoveIf deletes sessionID only while it still maps to rec
func (r *Registry) RemoveIf(sessionID string, rec *Record) bool {
	return r.records.RemoveCb(sessionID, func(_ string, current *Record, exists bool) bool {
		return exists && current == rec
	})
}

// Snapshot returns every stored record
func (r *Registry) Snapshot() []*Record {
	items := r.records.Items()
	out := make([]*Record, 0, len(items))
	for _, rec := range items {
		out = append(out, rec)
	}
	return out
}

// Len returns the number of stored records
func (r *Registry) Len() int {
	return r.records.Count()
}
