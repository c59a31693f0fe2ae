package caching

import "sync/atomic"

// TierStats holds hit/miss counters for one tier.
type TierStats struct {
	Entries int     `json:"entries"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// Stats is a point-in-time snapshot of cache health.
type Stats struct {
	Memory             TierStats `json:"memory"`
	Session            TierStats `json:"session"`
	Local              TierStats `json:"local"`
	Evictions          uint64    `json:"evictions"`
	MemoryUsagePercent float64   `json:"memoryUsagePercent"`
}

// counters tracks per-tier hits and misses with atomics so the read path
// never takes the cache lock just to count.
type counters struct {
	memoryHits    atomic.Uint64
	memoryMisses  atomic.Uint64
	sessionHits   atomic.Uint64
	sessionMisses atomic.Uint64
	localHits     atomic.Uint64
	localMisses   atomic.Uint64
	evictions     atomic.Uint64
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
