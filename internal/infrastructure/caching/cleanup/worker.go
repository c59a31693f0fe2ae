// Package cleanup provides background worker
package cleanup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/caching"
)

// Worker handles background cache cleanup operations
type Worker struct {
	cache  *caching.TieredCache
	config *Config
}

// NewWorker creates a new cleanup worker with injected configuration
func NewWorker(cache *caching.TieredCache, config *Config) *Worker {
	return &Worker{
		cache:  cache,
		config: config,
	}
}

// Start begins the cleanup worker routine, using the configured interval
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CleanupInterval)
	defer ticker.Stop()

	log.Printf("Cache cleanup worker started (interval: %v, verbose: %v)",
		w.config.CleanupInterval, w.config.VerboseReporting)

	for {
		select {
		case <-ctx.Done():
			log.Println("Cache cleanup worker stopping...")
			return
		case <-ticker.C:
			w.performCleanup()
		}
	}
}

// performCleanup sweeps expired entries out of the memory tier. The
// persistent tiers prune lazily on read and are left alone here.
func (w *Worker) performCleanup() {
	start := time.Now()
	reporter := NewReporter(w.cache)

	if w.config.VerboseReporting {
		reporter.LogStage("PERIODIC CACHE CLEANUP")
		fmt.Print(reporter.GenerateReport())
	}

	cleaned := w.cache.CleanupExpired()

	duration := time.Since(start)
	if cleaned > 0 {
		reporter.LogSuccess("Cache cleanup finished: %d expired entries removed in %v", cleaned, duration)
	} else if w.config.VerboseReporting {
		reporter.LogInfo("Cache cleanup completed - no expired items found (%v)", duration)
	}
}
