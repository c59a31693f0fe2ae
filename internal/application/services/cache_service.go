// Package services holds the application-level orchestration layer: the blog
// cache service, the analytics service, and the image processing service.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/domain/content"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/caching"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/messaging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/performance"
	"github.com/escolahabilidade/habilidade-go/pkg/config"
)

// Cache event types published to subscribers and websocket clients.
const (
	EventSet         = "set"
	EventInvalidate  = "invalidation"
	EventClear       = "clear"
	EventWarm        = "warm"
	EventPerformance = "performance"
)

// ContentSource is the backend the cache reads through on a miss.
type ContentSource interface {
	GetCategories() ([]content.Category, error)
	ListPosts(page, limit int, category, search string) (*content.PostList, error)
	GetPostBySlug(slug string) (*content.Post, error)
	PopularSlugs(limit int) ([]string, error)
}

// CacheServiceConfig carries the tunables so tests can shrink the intervals.
type CacheServiceConfig struct {
	DrainInterval       time.Duration
	BatchSize           int
	MaintenanceInterval time.Duration
	MonitorInterval     time.Duration
	PostsListTTL        time.Duration
	SearchTTL           time.Duration
	SinglePostTTL       time.Duration
	CategoriesTTL       time.Duration
	PrefetchLimit       int
}

// NewDefaultCacheServiceConfig reads the tunables from the environment layer.
func NewDefaultCacheServiceConfig() CacheServiceConfig {
	return CacheServiceConfig{
		DrainInterval:       config.InvalidationDrainInterval,
		BatchSize:           config.InvalidationBatchSize,
		MaintenanceInterval: config.MaintenanceInterval,
		MonitorInterval:     config.MonitorInterval,
		PostsListTTL:        config.PostsListTTL,
		SearchTTL:           config.SearchTTL,
		SinglePostTTL:       config.SinglePostTTL,
		CategoriesTTL:       config.CategoriesTTL,
		PrefetchLimit:       config.PopularPrefetchLimit,
	}
}

// InvalidateOptions controls how an invalidation is applied.
type InvalidateOptions struct {
	// Immediate bypasses the queue and removes the key synchronously.
	Immediate bool
	// Cascade also drops the default post listing when the key is a single
	// post or the category list.
	Cascade bool
}

type queuedInvalidation struct {
	key     string
	cascade bool
}

// CacheService owns the blog read path: cache-first content access, the
// batched invalidation queue, periodic maintenance and monitoring, warming,
// and the cache event pub/sub.
type CacheService struct {
	cache       *caching.TieredCache
	source      ContentSource
	logger      *logging.ChanneledLogger
	perf        *performance.Tracker
	broadcaster *messaging.Broadcaster
	config      CacheServiceConfig

	initialized atomic.Bool
	processing  atomic.Bool
	warming     *caching.WarmingLock

	queueMu sync.Mutex
	queue   []queuedInvalidation

	subMu       sync.RWMutex
	subscribers map[string]map[int]func(messaging.CacheEvent)
	nextSubID   int

	cancel context.CancelFunc
	done   sync.WaitGroup
}

func NewCacheService(cache *caching.TieredCache, source ContentSource, perf *performance.Tracker, broadcaster *messaging.Broadcaster, logger *logging.ChanneledLogger, cfg CacheServiceConfig) *CacheService {
	return &CacheService{
		cache:       cache,
		source:      source,
		logger:      logger,
		perf:        perf,
		broadcaster: broadcaster,
		config:      cfg,
		warming:     caching.NewWarmingLock(),
		subscribers: make(map[string]map[int]func(messaging.CacheEvent)),
	}
}

// Initialize starts the background loops and kicks off the initial warming
// pass. It is idempotent; only the first call does anything.
func (s *CacheService) Initialize(ctx context.Context) {
	if !s.initialized.CompareAndSwap(false, true) {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)

	s.done.Add(3)
	go s.drainLoop(ctx)
	go s.maintenanceLoop(ctx)
	go s.monitorLoop(ctx)

	go s.WarmCache(ctx)

	s.logger.Cache().Info("Cache service initialized",
		"drainInterval", s.config.DrainInterval,
		"batchSize", s.config.BatchSize,
		"maintenanceInterval", s.config.MaintenanceInterval,
		"monitorInterval", s.config.MonitorInterval)
}

// Shutdown stops the background loops and waits for them to exit.
func (s *CacheService) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.done.Wait()
}

// GetPosts returns one page of the post listing, cache-first.
func (s *CacheService) GetPosts(page, limit int, category string) (*content.PostList, error) {
	key := caching.PostsKey(page, limit, category)
	marker := s.perf.StartOperation("cache_service.get_posts")
	defer s.perf.CompleteOperation(marker)

	var cached content.PostList
	if s.cache.GetJSON(key, &cached) {
		marker.AddCacheHit()
		return &cached, nil
	}
	marker.AddCacheMiss()

	list, err := s.source.ListPosts(page, limit, category, "")
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	opts := caching.Options{
		TTL:           s.config.PostsListTTL,
		Priority:      caching.PriorityNormal,
		UseLocalStore: true,
	}
	if key == caching.DefaultPostsKey() {
		opts.Priority = caching.PriorityHigh
	}
	s.set(key, list, opts)
	return list, nil
}

// GetPost returns a single post by slug, cache-first.
func (s *CacheService) GetPost(slug string) (*content.Post, error) {
	key := caching.PostKey(slug)
	marker := s.perf.StartOperation("cache_service.get_post")
	defer s.perf.CompleteOperation(marker)

	var cached content.Post
	if s.cache.GetJSON(key, &cached) {
		marker.AddCacheHit()
		return &cached, nil
	}
	marker.AddCacheMiss()

	post, err := s.source.GetPostBySlug(slug)
	if err != nil {
		if !content.IsNotFound(err) {
			marker.SetError(err)
		}
		return nil, err
	}

	s.set(key, post, caching.Options{
		TTL:           s.config.SinglePostTTL,
		Priority:      caching.PriorityNormal,
		UseLocalStore: true,
	})
	return post, nil
}

// GetCategories returns the category list, cache-first.
func (s *CacheService) GetCategories() ([]content.Category, error) {
	key := caching.CategoriesKey()
	marker := s.perf.StartOperation("cache_service.get_categories")
	defer s.perf.CompleteOperation(marker)

	var cached []content.Category
	if s.cache.GetJSON(key, &cached) {
		marker.AddCacheHit()
		return cached, nil
	}
	marker.AddCacheMiss()

	categories, err := s.source.GetCategories()
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	s.set(key, categories, caching.Options{
		TTL:           s.config.CategoriesTTL,
		Priority:      caching.PriorityHigh,
		UseLocalStore: true,
	})
	return categories, nil
}

// SearchPosts returns one page of search results. Results are short-lived
// and mirrored to the session tier only.
func (s *CacheService) SearchPosts(query string, page, limit int) (*content.PostList, error) {
	key := caching.SearchKey(query, page)
	marker := s.perf.StartOperation("cache_service.search_posts")
	defer s.perf.CompleteOperation(marker)

	var cached content.PostList
	if s.cache.GetJSON(key, &cached) {
		marker.AddCacheHit()
		return &cached, nil
	}
	marker.AddCacheMiss()

	list, err := s.source.ListPosts(page, limit, "", query)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	s.set(key, list, caching.Options{
		TTL:             s.config.SearchTTL,
		Priority:        caching.PriorityLow,
		UseSessionStore: true,
	})
	return list, nil
}

// Invalidate drops a key. By default the request is queued and applied by
// the next drain pass; Immediate applies it synchronously.
func (s *CacheService) Invalidate(key string, opts InvalidateOptions) {
	if opts.Immediate {
		s.applyInvalidation(queuedInvalidation{key: key, cascade: opts.Cascade})
		return
	}

	s.queueMu.Lock()
	s.queue = append(s.queue, queuedInvalidation{key: key, cascade: opts.Cascade})
	depth := len(s.queue)
	s.queueMu.Unlock()

	s.logger.Cache().Debug("Invalidation queued", "key", key, "cascade", opts.Cascade, "queueDepth", depth)
}

// QueueDepth reports pending invalidations.
func (s *CacheService) QueueDepth() int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	return len(s.queue)
}

// Subscribe registers a callback for a cache event type ("*" matches every
// type). The returned function removes the subscription.
func (s *CacheService) Subscribe(eventType string, cb func(messaging.CacheEvent)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	if s.subscribers[eventType] == nil {
		s.subscribers[eventType] = make(map[int]func(messaging.CacheEvent))
	}
	s.subscribers[eventType][id] = cb

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subscribers[eventType], id)
			if len(s.subscribers[eventType]) == 0 {
				delete(s.subscribers, eventType)
			}
		})
	}
}

// WarmCache preloads the category list, the default post listing, and the
// most viewed posts. Concurrent callers are coalesced; only one warming pass
// runs at a time.
func (s *CacheService) WarmCache(ctx context.Context) {
	if !s.warming.TryLock("blog") {
		s.logger.Cache().Debug("Warming already in progress, skipping")
		return
	}
	defer s.warming.Unlock("blog")

	marker := s.perf.StartOperationWithContext(ctx, "cache_service.warm")
	defer s.perf.CompleteOperation(marker)

	if _, err := s.GetCategories(); err != nil {
		s.logger.LogError(logging.ChannelCache, "warm_categories", err, nil)
	}
	if _, err := s.GetPosts(1, 10, ""); err != nil {
		s.logger.LogError(logging.ChannelCache, "warm_posts", err, nil)
	}

	slugs, err := s.source.PopularSlugs(s.config.PrefetchLimit)
	if err != nil {
		s.logger.LogError(logging.ChannelCache, "warm_popular", err, nil)
	} else {
		s.Prefetch(ctx, slugs)
	}

	s.publish(EventWarm, "")
	s.logger.WithOperation(logging.ChannelCache, "warm").Info("Cache warmed", "popularPosts", len(slugs))
}

// Prefetch loads the given posts into the cache, stopping early if the
// context is cancelled.
func (s *CacheService) Prefetch(ctx context.Context, slugs []string) {
	for _, slug := range slugs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := s.GetPost(slug); err != nil && !content.IsNotFound(err) {
			s.logger.LogError(logging.ChannelCache, "prefetch", err, map[string]any{"slug": slug})
		}
	}
}

// ClearAll empties every tier.
func (s *CacheService) ClearAll() {
	s.cache.Clear()
	s.publish(EventClear, "")
	s.logger.Cache().Info("Cache cleared")
}

// GetStats returns the current tier statistics.
func (s *CacheService) GetStats() caching.Stats {
	return s.cache.Stats()
}

// set writes through to the cache and publishes the set event.
func (s *CacheService) set(key string, value any, opts caching.Options) {
	if err := s.cache.Set(key, value, opts); err != nil {
		s.logger.LogError(logging.ChannelCache, "set", err, map[string]any{"key": key})
		return
	}
	s.publish(EventSet, key)
}

// drainLoop applies queued invalidations in batches.
func (s *CacheService) drainLoop(ctx context.Context) {
	defer s.done.Done()

	ticker := time.NewTicker(s.config.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drainQueue()
		}
	}
}

// drainQueue pops up to one batch from the head of the queue and applies it.
// A guard flag keeps overlapping drains from running; requests arriving during
// a drain wait for the next tick.
func (s *CacheService) drainQueue() {
	if !s.processing.CompareAndSwap(false, true) {
		return
	}
	defer s.processing.Store(false)

	s.queueMu.Lock()
	if len(s.queue) == 0 {
		s.queueMu.Unlock()
		return
	}
	n := len(s.queue)
	if n > s.config.BatchSize {
		n = s.config.BatchSize
	}
	batch := make([]queuedInvalidation, n)
	copy(batch, s.queue[:n])
	s.queue = s.queue[n:]
	remaining := len(s.queue)
	s.queueMu.Unlock()

	for _, inv := range batch {
		s.applyInvalidation(inv)
	}

	s.logger.Cache().Debug("Invalidation batch drained", "applied", len(batch), "remaining", remaining)
}

// applyInvalidation removes a key and applies the cascade rules: dropping a
// single post or the category list also drops the default post listing. An
// empty key requests an expiry sweep instead of a removal.
func (s *CacheService) applyInvalidation(inv queuedInvalidation) {
	if inv.key == "" {
		if removed := s.cache.CleanupExpired(); removed > 0 {
			s.logger.Cache().Debug("Expiry sweep via invalidation", "removed", removed)
		}
		return
	}

	s.cache.Remove(inv.key)
	s.publish(EventInvalidate, inv.key)

	if !inv.cascade {
		return
	}
	if strings.HasPrefix(inv.key, caching.PostPrefix) || strings.HasPrefix(inv.key, caching.CategoriesPrefix) {
		defaultKey := caching.DefaultPostsKey()
		if inv.key != defaultKey {
			s.cache.Remove(defaultKey)
			s.publish(EventInvalidate, defaultKey)
		}
	}
}

// maintenanceLoop sweeps expired entries and persists a stats snapshot.
func (s *CacheService) maintenanceLoop(ctx context.Context) {
	defer s.done.Done()

	ticker := time.NewTicker(s.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.performMaintenance()
		}
	}
}

func (s *CacheService) performMaintenance() {
	removed := s.cache.CleanupExpired()

	stats := s.cache.Stats()
	if err := s.cache.Set(caching.MetricsKey, stats, caching.Options{
		TTL:           s.config.MaintenanceInterval * 2,
		Priority:      caching.PriorityLow,
		UseLocalStore: true,
	}); err != nil {
		s.logger.LogError(logging.ChannelCache, "persist_metrics", err, nil)
	}

	s.logger.Cache().Info("Maintenance pass complete",
		"expiredRemoved", removed,
		"memoryEntries", stats.Memory.Entries,
		"hitRate", fmt.Sprintf("%.1f%%", stats.Memory.HitRate))
}

// monitorLoop checks cache health and reacts: a low hit rate triggers a
// rewarm, memory pressure triggers an expiry sweep.
func (s *CacheService) monitorLoop(ctx context.Context) {
	defer s.done.Done()

	ticker := time.NewTicker(s.config.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.monitorPass(ctx)
		}
	}
}

func (s *CacheService) monitorPass(ctx context.Context) {
	stats := s.cache.Stats()
	lookups := stats.Memory.Hits + stats.Memory.Misses

	s.publishEvent(messaging.CacheEvent{Type: EventPerformance, Payload: stats})
	s.logger.Perf().Debug("Monitor sample",
		"hitRate", fmt.Sprintf("%.1f%%", stats.Memory.HitRate),
		"usage", fmt.Sprintf("%.1f%%", stats.MemoryUsagePercent),
		"lookups", lookups)

	if alert := s.perf.CheckCacheHitRatio(stats.Memory.HitRate/100, lookups); alert != nil {
		s.logger.Alert().Warn("Low cache hit rate, rewarming",
			"hitRate", fmt.Sprintf("%.1f%%", stats.Memory.HitRate), "lookups", lookups)
		go s.WarmCache(ctx)
	}

	if alert := s.perf.CheckMemoryPressure(stats.MemoryUsagePercent); alert != nil {
		removed := s.cache.CleanupExpired()
		s.logger.Alert().Warn("Memory pressure sweep",
			"usage", fmt.Sprintf("%.1f%%", stats.MemoryUsagePercent), "removed", removed)
	}
}

// publish notifies in-process subscribers and websocket clients. A panicking
// subscriber is isolated; it never takes down the publisher or its peers.
func (s *CacheService) publish(eventType, key string) {
	s.publishEvent(messaging.CacheEvent{Type: eventType, Key: key})
}

func (s *CacheService) publishEvent(event messaging.CacheEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	s.subMu.RLock()
	callbacks := make([]func(messaging.CacheEvent), 0, 4)
	for _, cb := range s.subscribers[event.Type] {
		callbacks = append(callbacks, cb)
	}
	for _, cb := range s.subscribers["*"] {
		callbacks = append(callbacks, cb)
	}
	s.subMu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Cache().Error("Panic recovered in cache event subscriber", "error", r, "eventType", event.Type)
				}
			}()
			cb(event)
		}()
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(event)
	}
}
