// Package performance provides performance tracking and monitoring capabilities
// for the Habilidade server with real-time metrics.
package performance

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Tracker manages performance markers and provides metrics aggregation
type Tracker struct {
	markers    map[string]*Marker // Active and completed markers by unique ID
	alerts     []*Alert           // Active performance alerts
	thresholds *AlertThresholds   // Configurable alert thresholds
	mu         sync.RWMutex       // Protects concurrent access
	started    time.Time          // When tracking started
	config     *TrackerConfig     // Tracker configuration
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers   int              `json:"maxMarkers"`   // Maximum number of markers to retain
	MaxAlerts    int              `json:"maxAlerts"`    // Maximum number of alerts to retain
	EnableAlerts bool             `json:"enableAlerts"` // Whether to generate performance alerts
	Thresholds   *AlertThresholds `json:"thresholds"`   // Alert thresholds, defaults when nil
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:   10000,
		MaxAlerts:    500,
		EnableAlerts: true,
	}
}

// AlertThresholds defines performance thresholds for generating alerts
type AlertThresholds struct {
	// Response time thresholds
	SlowResponseThreshold     time.Duration `json:"slowResponseThreshold"`     // 500ms
	CriticalResponseThreshold time.Duration `json:"criticalResponseThreshold"` // 5s

	// Cache performance thresholds
	LowCacheHitRatio float64 `json:"lowCacheHitRatio"` // 0.60 (60%)

	// Memory pressure threshold (percent of cache capacity)
	HighMemoryUsagePercent float64 `json:"highMemoryUsagePercent"` // 90%
}

// DefaultAlertThresholds returns sensible default alert thresholds
func DefaultAlertThresholds() *AlertThresholds {
	return &AlertThresholds{
		SlowResponseThreshold:     time.Millisecond * 500,
		CriticalResponseThreshold: time.Second * 5,
		LowCacheHitRatio:          0.60,
		HighMemoryUsagePercent:    90.0,
	}
}

// NewTracker creates a new performance tracker with the given configuration
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	thresholds := config.Thresholds
	if thresholds == nil {
		thresholds = DefaultAlertThresholds()
	}

	return &Tracker{
		markers:    make(map[string]*Marker),
		alerts:     make([]*Alert, 0),
		thresholds: thresholds,
		started:    time.Now(),
		config:     config,
	}
}

// StartOperation creates and tracks a new performance marker for an operation
func (t *Tracker) StartOperation(operation string) *Marker {
	marker := &Marker{
		Operation: operation,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true, // Assume success until proven otherwise
	}

	markerID := fmt.Sprintf("%s_%d", operation, time.Now().UnixNano())

	t.mu.Lock()
	if len(t.markers) >= t.config.MaxMarkers {
		t.pruneCompletedUnsafe()
	}
	t.markers[markerID] = marker
	t.mu.Unlock()

	return marker
}

// StartOperationWithContext creates a performance marker with context cancellation support
func (t *Tracker) StartOperationWithContext(ctx context.Context, operation string) *Marker {
	marker := t.StartOperation(operation)

	go func() {
		<-ctx.Done()
		if !marker.Completed {
			marker.SetError(ctx.Err())
			marker.Complete()
		}
	}()

	return marker
}

// CompleteOperation manually completes an operation and checks for alerts
func (t *Tracker) CompleteOperation(marker *Marker) {
	if marker == nil || marker.Completed {
		return
	}

	marker.Complete()

	if t.config.EnableAlerts {
		t.checkDurationAlert(marker)
	}
}

// CheckCacheHitRatio raises an alert when the observed hit ratio falls below
// the configured threshold. The cache monitor calls this on every sample.
func (t *Tracker) CheckCacheHitRatio(ratio float64, lookups uint64) *Alert {
	if !t.config.EnableAlerts || ratio >= t.thresholds.LowCacheHitRatio {
		return nil
	}
	return t.addAlert(AlertWarning, "cache:hit_ratio",
		fmt.Sprintf("cache hit ratio %.1f%% below %.1f%% threshold", ratio*100, t.thresholds.LowCacheHitRatio*100),
		map[string]any{"ratio": ratio, "lookups": lookups})
}

// CheckMemoryPressure raises an alert when memory-tier usage crosses the
// configured percentage of capacity.
func (t *Tracker) CheckMemoryPressure(usagePercent float64) *Alert {
	if !t.config.EnableAlerts || usagePercent <= t.thresholds.HighMemoryUsagePercent {
		return nil
	}
	return t.addAlert(AlertCritical, "cache:memory_pressure",
		fmt.Sprintf("cache memory usage at %.1f%% of capacity", usagePercent),
		map[string]any{"usagePercent": usagePercent})
}

// Alerts returns a copy of the retained alerts, newest last.
func (t *Tracker) Alerts() []*Alert {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Alert, len(t.alerts))
	copy(out, t.alerts)
	return out
}

// Thresholds returns the active alert thresholds.
func (t *Tracker) Thresholds() *AlertThresholds {
	return t.thresholds
}

// Uptime returns how long the tracker has been running.
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.started)
}

func (t *Tracker) checkDurationAlert(marker *Marker) {
	switch {
	case marker.Duration > t.thresholds.CriticalResponseThreshold:
		t.addAlert(AlertCritical, marker.Operation,
			fmt.Sprintf("operation took %v (critical threshold %v)", marker.Duration, t.thresholds.CriticalResponseThreshold),
			map[string]any{"duration": marker.Duration.String()})
	case marker.Duration > t.thresholds.SlowResponseThreshold:
		t.addAlert(AlertWarning, marker.Operation,
			fmt.Sprintf("operation took %v (slow threshold %v)", marker.Duration, t.thresholds.SlowResponseThreshold),
			map[string]any{"duration": marker.Duration.String()})
	}
}

func (t *Tracker) addAlert(severity AlertSeverity, operation, message string, metadata map[string]any) *Alert {
	alert := &Alert{
		ID:        fmt.Sprintf("%s_%d", operation, time.Now().UnixNano()),
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Operation: operation,
		Message:   message,
		Metadata:  metadata,
	}

	t.mu.Lock()
	t.alerts = append(t.alerts, alert)
	if len(t.alerts) > t.config.MaxAlerts {
		t.alerts = t.alerts[len(t.alerts)-t.config.MaxAlerts:]
	}
	t.mu.Unlock()

	return alert
}

// pruneCompletedUnsafe drops completed markers to make room for new ones.
// Caller must hold the write lock.
func (t *Tracker) pruneCompletedUnsafe() {
	for id, marker := range t.markers {
		if marker.Completed {
			delete(t.markers, id)
		}
	}
}
