package caching

import (
	"encoding/json"
	"time"
)

// Priority controls eviction order. High-priority entries are evicted last.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Options controls how an entry is written.
type Options struct {
	TTL             time.Duration
	Priority        Priority
	UseSessionStore bool
	UseLocalStore   bool
}

// Entry is a single cached value in the memory tier. Values are opaque JSON
// payloads; each key namespace decodes its own type at the call site.
type Entry struct {
	Key        string
	Value      json.RawMessage
	Priority   Priority
	StoredAt   time.Time
	ExpiresAt  time.Time
	LastAccess time.Time
}

// Expired reports whether the entry's TTL has elapsed. An entry is dead the
// instant its deadline arrives, not one tick later. Both the lazy read-path
// check and the active sweep use this single predicate.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// envelopeVersion guards persisted entries across schema changes. A payload
// written with a different version reads as a miss.
const envelopeVersion = 1

// persistedEntry is the serialized form written to the session and local tiers.
type persistedEntry struct {
	V         int             `json:"v"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Priority  Priority        `json:"priority"`
	StoredAt  time.Time       `json:"storedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func encodeEntry(e *Entry) ([]byte, error) {
	return json.Marshal(persistedEntry{
		V:         envelopeVersion,
		Key:       e.Key,
		Value:     e.Value,
		Priority:  e.Priority,
		StoredAt:  e.StoredAt,
		ExpiresAt: e.ExpiresAt,
	})
}

func decodeEntry(payload []byte) (*Entry, bool) {
	var p persistedEntry
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false
	}
	if p.V != envelopeVersion {
		return nil, false
	}
	return &Entry{
		Key:        p.Key,
		Value:      p.Value,
		Priority:   p.Priority,
		StoredAt:   p.StoredAt,
		ExpiresAt:  p.ExpiresAt,
		LastAccess: time.Now().UTC(),
	}, true
}
