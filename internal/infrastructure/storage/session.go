package storage

import (
	"strings"
	"sync"
	"time"
)

// SessionStore is the ephemeral mid tier. It lives for the lifetime of the
// process and is lost on restart, mirroring browser sessionStorage semantics.
type SessionStore struct {
	mu         sync.RWMutex
	entries    map[string]sessionEntry
	maxEntries int
}

type sessionEntry struct {
	payload  []byte
	storedAt time.Time
}

// NewSessionStore creates a session store capped at maxEntries.
func NewSessionStore(maxEntries int) *SessionStore {
	return &SessionStore{
		entries:    make(map[string]sessionEntry),
		maxEntries: maxEntries,
	}
}

func (s *SessionStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return entry.payload, true
}

func (s *SessionStore) Set(key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictOldestUnsafe()
	}

	s.entries[key] = sessionEntry{payload: payload, storedAt: time.Now().UTC()}
	return nil
}

func (s *SessionStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *SessionStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// evictOldestUnsafe removes the oldest entry by insertion time.
// Caller must hold the write lock.
func (s *SessionStore) evictOldestUnsafe() {
	var oldestKey string
	var oldestAt time.Time
	for key, entry := range s.entries {
		if oldestKey == "" || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
