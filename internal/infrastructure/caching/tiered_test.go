package caching

import (
	"log/slog"
	"testing"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = false
	cfg.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(cfg)
	require.NoError(t, err)
	return logger
}

func newTestCache(t *testing.T, maxEntries int) *TieredCache {
	t.Helper()
	return NewTieredCache(maxEntries, storage.NewSessionStore(100), storage.NewSessionStore(100), newTestLogger(t))
}

func TestSetAndGetJSON(t *testing.T) {
	cache := newTestCache(t, 10)

	type payload struct {
		Title string `json:"title"`
	}

	err := cache.Set("blog_post_go-habilidade", payload{Title: "Go"}, Options{TTL: time.Minute})
	require.NoError(t, err)

	var got payload
	require.True(t, cache.GetJSON("blog_post_go-habilidade", &got))
	assert.Equal(t, "Go", got.Title)

	assert.False(t, cache.GetJSON("blog_post_missing", &got))
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	cache := newTestCache(t, 10)

	require.NoError(t, cache.Set("blog_post_old", "stale", Options{TTL: 10 * time.Millisecond}))
	time.Sleep(20 * time.Millisecond)

	_, ok := cache.Get("blog_post_old")
	assert.False(t, ok)
	assert.False(t, cache.Has("blog_post_old"))
}

func TestEntryExpiredAtExactDeadline(t *testing.T) {
	deadline := time.Now().Add(time.Minute)
	entry := &Entry{ExpiresAt: deadline}

	assert.False(t, entry.Expired(deadline.Add(-time.Nanosecond)))
	assert.True(t, entry.Expired(deadline), "an entry is dead the instant its deadline arrives")
	assert.True(t, entry.Expired(deadline.Add(time.Nanosecond)))
}

func TestPersistentTierPromotion(t *testing.T) {
	local := storage.NewSessionStore(100)
	cache := NewTieredCache(10, storage.NewSessionStore(100), local, newTestLogger(t))

	require.NoError(t, cache.Set("blog_post_warm", "v1", Options{TTL: time.Minute, UseLocalStore: true}))

	// Drop the memory tier only; the mirror in the local store survives and
	// the next read promotes it back.
	cache.mu.Lock()
	delete(cache.entries, "blog_post_warm")
	cache.mu.Unlock()

	var got string
	require.True(t, cache.GetJSON("blog_post_warm", &got))
	assert.Equal(t, "v1", got)
	assert.True(t, cache.Has("blog_post_warm"), "hit should promote into memory")

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Local.Hits)
	assert.Equal(t, uint64(1), stats.Memory.Misses)
}

func TestEnvelopeVersionMismatchIsAMiss(t *testing.T) {
	local := storage.NewSessionStore(100)
	cache := NewTieredCache(10, storage.NewSessionStore(100), local, newTestLogger(t))

	// A payload from a different envelope version must read as a miss and be
	// dropped from the store.
	require.NoError(t, local.Set("blog_post_v0", []byte(`{"v":0,"key":"blog_post_v0","value":"x"}`)))

	_, ok := cache.Get("blog_post_v0")
	assert.False(t, ok)
	_, still := local.Get("blog_post_v0")
	assert.False(t, still)
}

func TestEvictionDropsQuarterAndSparesHighPriority(t *testing.T) {
	cache := newTestCache(t, 8)

	require.NoError(t, cache.Set("blog_categories_all", "keep", Options{TTL: time.Minute, Priority: PriorityHigh}))
	for _, key := range []string{"blog_posts_a", "blog_posts_b", "blog_posts_c", "blog_posts_d", "blog_posts_e", "blog_posts_f", "blog_posts_g"} {
		require.NoError(t, cache.Set(key, "v", Options{TTL: time.Minute}))
		time.Sleep(time.Millisecond)
	}

	// Cache is full; the next insert evicts len/4 = 2 of the oldest
	// normal-priority entries.
	require.NoError(t, cache.Set("blog_posts_h", "v", Options{TTL: time.Minute}))

	assert.True(t, cache.Has("blog_categories_all"))
	assert.False(t, cache.Has("blog_posts_a"))
	assert.False(t, cache.Has("blog_posts_b"))
	assert.True(t, cache.Has("blog_posts_h"))
	assert.Equal(t, uint64(2), cache.Stats().Evictions)
}

func TestCleanupExpired(t *testing.T) {
	cache := newTestCache(t, 10)

	require.NoError(t, cache.Set("blog_posts_fresh", "v", Options{TTL: time.Minute}))
	require.NoError(t, cache.Set("blog_posts_stale1", "v", Options{TTL: 5 * time.Millisecond}))
	require.NoError(t, cache.Set("blog_posts_stale2", "v", Options{TTL: 5 * time.Millisecond}))
	time.Sleep(15 * time.Millisecond)

	assert.Equal(t, 2, cache.CleanupExpired())
	assert.True(t, cache.Has("blog_posts_fresh"))
}

func TestClearEmptiesEveryTier(t *testing.T) {
	session := storage.NewSessionStore(100)
	local := storage.NewSessionStore(100)
	cache := NewTieredCache(10, session, local, newTestLogger(t))

	require.NoError(t, cache.Set("blog_posts_1_10_all", "v", Options{TTL: time.Minute, UseLocalStore: true}))
	require.NoError(t, cache.Set("blog_search_go_1", "v", Options{TTL: time.Minute, UseSessionStore: true}))

	cache.Clear()

	assert.False(t, cache.Has("blog_posts_1_10_all"))
	assert.Empty(t, local.Keys("blog_"))
	assert.Empty(t, session.Keys("blog_"))
}

func TestStatsHitRate(t *testing.T) {
	cache := newTestCache(t, 10)

	require.NoError(t, cache.Set("blog_post_x", "v", Options{TTL: time.Minute}))
	cache.Get("blog_post_x")
	cache.Get("blog_post_x")
	cache.Get("blog_post_missing")

	stats := cache.Stats()
	assert.Equal(t, uint64(2), stats.Memory.Hits)
	assert.Equal(t, uint64(1), stats.Memory.Misses)
	assert.InDelta(t, 66.6, stats.Memory.HitRate, 0.1)
	assert.InDelta(t, 10.0, stats.MemoryUsagePercent, 0.01)
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "blog_posts_1_10_all", DefaultPostsKey())
	assert.Equal(t, "blog_posts_2_5_design", PostsKey(2, 5, "design"))
	assert.Equal(t, "blog_post_meu-post", PostKey("meu-post"))
	assert.Equal(t, "blog_categories_all", CategoriesKey())
	assert.Equal(t, "blog_search_golang_2", SearchKey("  GoLang ", 2))
}
