// Package container provides dependency injection for all singleton services
package container

import (
	"fmt"

	"github.com/escolahabilidade/habilidade-go/internal/application/services"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/caching"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/deferred"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/media"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/messaging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/performance"
	persistence "github.com/escolahabilidade/habilidade-go/internal/infrastructure/persistence/content"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/seo"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/storage"
	"github.com/escolahabilidade/habilidade-go/pkg/config"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application services
	CacheService     *services.CacheService
	AnalyticsService *services.AnalyticsService
	ImageService     *services.ImageService

	// Infrastructure
	Logger          *logging.ChanneledLogger
	PerfTracker     *performance.Tracker
	Cache           *caching.TieredCache
	ContentStore    *persistence.Store
	LocalStore      *storage.LocalStore
	Broadcaster     *messaging.Broadcaster
	GateRegistry    *deferred.Registry
	Observers       *deferred.ObserverPool
	SchemaFragments *seo.FragmentSet
	MediaBasePath   string
}

// NewContainer creates and wires all singleton services
func NewContainer(logger *logging.ChanneledLogger) (*Container, error) {
	trackerConfig := performance.DefaultTrackerConfig()
	thresholds := performance.DefaultAlertThresholds()
	thresholds.LowCacheHitRatio = config.HitRateRewarmThreshold / 100
	thresholds.HighMemoryUsagePercent = config.MemoryPressureThreshold
	trackerConfig.Thresholds = thresholds
	perfTracker := performance.NewTracker(trackerConfig)

	localStore, err := storage.NewLocalStore(config.CacheDBPath, config.StorageCacheMaxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache store: %w", err)
	}
	sessionStore := storage.NewSessionStore(config.StorageCacheMaxEntries)

	contentStore, err := persistence.NewStore(config.ContentDBPath, logger)
	if err != nil {
		localStore.Close()
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}

	cache := caching.NewTieredCache(config.MemoryCacheMaxEntries, sessionStore, localStore, logger)
	broadcaster := messaging.NewBroadcaster(logger)

	cacheService := services.NewCacheService(cache, contentStore, perfTracker, broadcaster, logger, services.NewDefaultCacheServiceConfig())
	analyticsService := services.NewAnalyticsService(localStore, logger, services.NewDefaultAnalyticsServiceConfig())

	pipeline := media.NewPipeline(config.MediaBasePath, config.ImageMaxFileSize)
	imageService := services.NewImageService(pipeline, logger, services.NewDefaultImageServiceConfig())

	fragments := seo.NewFragmentSet()
	observers := deferred.NewObserverPool()
	registry := deferred.NewRegistry(config.GateSessionTTL, config.GateCleanupInterval, gateFactory(analyticsService, fragments, observers, logger), logger)

	return &Container{
		CacheService:     cacheService,
		AnalyticsService: analyticsService,
		ImageService:     imageService,

		Logger:          logger,
		PerfTracker:     perfTracker,
		Cache:           cache,
		ContentStore:    contentStore,
		LocalStore:      localStore,
		Broadcaster:     broadcaster,
		GateRegistry:    registry,
		Observers:       observers,
		SchemaFragments: fragments,
		MediaBasePath:   config.MediaBasePath,
	}, nil
}

// sessionRecorder binds a session ID onto the analytics service so gate
// events land attributed.
type sessionRecorder struct {
	analytics *services.AnalyticsService
	sessionID string
}

func (r sessionRecorder) Track(name string, props map[string]any) {
	r.analytics.Track(name, props, r.sessionID)
}

// watchedElement is the page section whose visibility fires the gates.
const watchedElement = "faq-schema"

// gateFactory builds the analytics and schema gates for one session. Both
// gates subscribe to the shared observer pool under a session-scoped watch
// key; the teardown drops the subscription once the gate fires or the
// janitor discards it.
func gateFactory(analytics *services.AnalyticsService, fragments *seo.FragmentSet, observers *deferred.ObserverPool, logger *logging.ChanneledLogger) deferred.GateFactory {
	return func(sessionID string, reducedMotion bool) *deferred.SessionGates {
		recorder := sessionRecorder{analytics: analytics, sessionID: sessionID}
		analyticsGate := deferred.NewGate("analytics", deferred.NewGtagSink(recorder, config.GAMeasurementID, logger), deferred.Config{
			ScrollThreshold: config.GateScrollThreshold,
			ReducedMotion:   reducedMotion,
		}, logger)

		schemaGate := deferred.NewGate("schema", deferred.NewSchemaSink(fragments, logger), deferred.Config{
			ScrollThreshold: config.GateScrollThreshold,
			IdleFallback:    config.GateIdleFallback,
			ReducedMotion:   reducedMotion,
		}, logger)

		watchKey := deferred.WatchKey(sessionID, watchedElement)
		analyticsGate.AddTeardown(observers.Observe(watchKey, analyticsGate.SignalVisible))
		schemaGate.AddTeardown(observers.Observe(watchKey, schemaGate.SignalVisible))

		return &deferred.SessionGates{Analytics: analyticsGate, Schema: schemaGate}
	}
}

// Close releases every infrastructure handle the container owns.
func (c *Container) Close() error {
	var firstErr error
	if err := c.ContentStore.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.LocalStore.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
