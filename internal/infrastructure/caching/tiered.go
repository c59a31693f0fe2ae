package caching

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/storage"
)

// TieredCache is the three-tier blog cache.
//
// LOCKING HIERARCHY:
//  1. tc.mu protects the memory tier map. Methods suffixed *Unsafe assume it
//     is already held.
//  2. The session and local stores lock internally; never call into a store
//     while holding tc.mu on the write path that the store can re-enter.
//
// The memory tier is synchronous and authoritative: a Set is visible to the
// next Get the moment it returns. The persistent tiers are mirrors written
// best-effort; their failures are logged on the cache channel and never
// surface to callers.
type TieredCache struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	maxEntries int

	session storage.Store
	local   storage.Store

	counters counters
	logger   *logging.ChanneledLogger
}

// NewTieredCache creates the cache over the given persistent tiers.
func NewTieredCache(maxEntries int, session, local storage.Store, logger *logging.ChanneledLogger) *TieredCache {
	return &TieredCache{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
		session:    session,
		local:      local,
		logger:     logger,
	}
}

// Set writes value under key. The memory tier is always written; the
// persistent tiers are mirrored per opts. A zero TTL entry expires
// immediately, so callers always pass one explicitly.
func (tc *TieredCache) Set(key string, value any, opts Options) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if opts.Priority == "" {
		opts.Priority = PriorityNormal
	}

	entry := &Entry{
		Key:        key,
		Value:      payload,
		Priority:   opts.Priority,
		StoredAt:   now,
		ExpiresAt:  now.Add(opts.TTL),
		LastAccess: now,
	}

	tc.mu.Lock()
	if _, exists := tc.entries[key]; !exists && len(tc.entries) >= tc.maxEntries {
		tc.evictOldestUnsafe()
	}
	tc.entries[key] = entry
	tc.mu.Unlock()

	if opts.UseSessionStore {
		tc.mirror(tc.session, "session", entry)
	}
	if opts.UseLocalStore {
		tc.mirror(tc.local, "local", entry)
	}
	return nil
}

// Get returns the payload for key, checking memory first and then the
// persistent tiers. Expired entries found anywhere are deleted there and
// treated as absent. A non-expired persistent hit is promoted into memory.
func (tc *TieredCache) Get(key string) (json.RawMessage, bool) {
	start := time.Now()
	now := start.UTC()

	tc.mu.RLock()
	entry, ok := tc.entries[key]
	tc.mu.RUnlock()

	if ok {
		if entry.Expired(now) {
			tc.mu.Lock()
			// Re-check under the write lock: a fresh Set may have replaced it.
			if current, still := tc.entries[key]; still && current.Expired(now) {
				delete(tc.entries, key)
			}
			tc.mu.Unlock()
		} else {
			tc.mu.Lock()
			entry.LastAccess = now
			tc.mu.Unlock()
			tc.counters.memoryHits.Add(1)
			tc.logger.LogCacheOperation("get", key, true, time.Since(start))
			return entry.Value, true
		}
	}
	tc.counters.memoryMisses.Add(1)

	if value, ok := tc.lookupStore(tc.session, &tc.counters.sessionHits, &tc.counters.sessionMisses, key, now); ok {
		tc.logger.LogCacheOperation("get", key, true, time.Since(start))
		return value, true
	}
	if value, ok := tc.lookupStore(tc.local, &tc.counters.localHits, &tc.counters.localMisses, key, now); ok {
		tc.logger.LogCacheOperation("get", key, true, time.Since(start))
		return value, true
	}
	tc.logger.LogCacheOperation("get", key, false, time.Since(start))
	return nil, false
}

// GetJSON reads key and unmarshals the payload into dest.
func (tc *TieredCache) GetJSON(key string, dest any) bool {
	payload, ok := tc.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		tc.logger.Cache().Warn("Cache payload failed to decode, dropping entry", "key", key, "error", err.Error())
		tc.Remove(key)
		return false
	}
	return true
}

// Remove deletes key from every tier.
func (tc *TieredCache) Remove(key string) {
	tc.mu.Lock()
	delete(tc.entries, key)
	tc.mu.Unlock()

	tc.session.Remove(key)
	tc.local.Remove(key)
}

// Has reports whether key is present and fresh in the memory tier.
func (tc *TieredCache) Has(key string) bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	entry, ok := tc.entries[key]
	return ok && !entry.Expired(time.Now().UTC())
}

// Keys returns memory-tier keys matching prefix.
func (tc *TieredCache) Keys(prefix string) []string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	keys := make([]string, 0, len(tc.entries))
	for key := range tc.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	return keys
}

// CleanupExpired sweeps the memory tier and returns the number of entries
// removed. The persistent tiers are pruned lazily on read instead; sweeping
// SQLite on a timer buys nothing there.
func (tc *TieredCache) CleanupExpired() int {
	now := time.Now().UTC()

	tc.mu.Lock()
	defer tc.mu.Unlock()

	var cleaned int
	for key, entry := range tc.entries {
		if entry.Expired(now) {
			delete(tc.entries, key)
			cleaned++
		}
	}
	return cleaned
}

// Clear empties the memory tier and removes all blog-namespaced keys from
// the persistent tiers.
func (tc *TieredCache) Clear() {
	tc.mu.Lock()
	tc.entries = make(map[string]*Entry)
	tc.mu.Unlock()

	for _, prefix := range []string{PostsPrefix, PostPrefix, CategoriesPrefix, SearchPrefix} {
		for _, store := range []storage.Store{tc.session, tc.local} {
			for _, key := range store.Keys(prefix) {
				store.Remove(key)
			}
		}
	}
	tc.logger.Cache().Info("Cache cleared across all tiers")
}

// Stats returns a snapshot of per-tier counters and memory pressure.
func (tc *TieredCache) Stats() Stats {
	tc.mu.RLock()
	memEntries := len(tc.entries)
	maxEntries := tc.maxEntries
	tc.mu.RUnlock()

	mh, mm := tc.counters.memoryHits.Load(), tc.counters.memoryMisses.Load()
	sh, sm := tc.counters.sessionHits.Load(), tc.counters.sessionMisses.Load()
	lh, lm := tc.counters.localHits.Load(), tc.counters.localMisses.Load()

	var usage float64
	if maxEntries > 0 {
		usage = float64(memEntries) / float64(maxEntries) * 100
	}

	return Stats{
		Memory:             TierStats{Entries: memEntries, Hits: mh, Misses: mm, HitRate: hitRate(mh, mm)},
		Session:            TierStats{Entries: tc.session.Len(), Hits: sh, Misses: sm, HitRate: hitRate(sh, sm)},
		Local:              TierStats{Entries: tc.local.Len(), Hits: lh, Misses: lm, HitRate: hitRate(lh, lm)},
		Evictions:          tc.counters.evictions.Load(),
		MemoryUsagePercent: usage,
	}
}

// lookupStore checks one persistent tier for key. Expired or undecodable
// payloads are removed there. Fresh hits are promoted into memory.
func (tc *TieredCache) lookupStore(store storage.Store, hits, misses *atomic.Uint64, key string, now time.Time) (json.RawMessage, bool) {
	payload, ok := store.Get(key)
	if !ok {
		misses.Add(1)
		return nil, false
	}

	entry, ok := decodeEntry(payload)
	if !ok {
		store.Remove(key)
		misses.Add(1)
		return nil, false
	}
	if entry.Expired(now) {
		store.Remove(key)
		misses.Add(1)
		return nil, false
	}

	tc.mu.Lock()
	if _, exists := tc.entries[key]; !exists && len(tc.entries) >= tc.maxEntries {
		tc.evictOldestUnsafe()
	}
	tc.entries[key] = entry
	tc.mu.Unlock()

	hits.Add(1)
	return entry.Value, true
}

// mirror writes an entry to one persistent tier, logging failures.
func (tc *TieredCache) mirror(store storage.Store, tier string, entry *Entry) {
	payload, err := encodeEntry(entry)
	if err != nil {
		tc.logger.Cache().Warn("Failed to encode entry for persistent tier", "tier", tier, "key", entry.Key, "error", err.Error())
		return
	}
	if err := store.Set(entry.Key, payload); err != nil {
		tc.logger.Cache().Warn("Persistent tier write failed", "tier", tier, "key", entry.Key, "error", err.Error())
	}
}

// evictOldestUnsafe removes the least-recently-accessed quarter of the
// memory tier, keeping high-priority entries for last. Caller must hold the
// write lock.
func (tc *TieredCache) evictOldestUnsafe() {
	if len(tc.entries) == 0 {
		return
	}

	candidates := make([]*Entry, 0, len(tc.entries))
	for _, entry := range tc.entries {
		candidates = append(candidates, entry)
	}
	sort.Slice(candidates, func(i, j int) bool {
		iHigh := candidates[i].Priority == PriorityHigh
		jHigh := candidates[j].Priority == PriorityHigh
		if iHigh != jHigh {
			return !iHigh
		}
		return candidates[i].LastAccess.Before(candidates[j].LastAccess)
	})

	evictCount := len(candidates) / 4
	if evictCount < 1 {
		evictCount = 1
	}
	for i := 0; i < evictCount; i++ {
		delete(tc.entries, candidates[i].Key)
		tc.counters.evictions.Add(1)
	}
}
