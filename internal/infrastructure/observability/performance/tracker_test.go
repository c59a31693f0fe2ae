package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerDefaultThresholds(t *testing.T) {
	tracker := NewTracker(nil)

	assert.Equal(t, 0.60, tracker.Thresholds().LowCacheHitRatio)
	assert.Equal(t, 90.0, tracker.Thresholds().HighMemoryUsagePercent)

	assert.Nil(t, tracker.CheckCacheHitRatio(0.75, 100))
	require.NotNil(t, tracker.CheckCacheHitRatio(0.50, 100))
	assert.Nil(t, tracker.CheckMemoryPressure(85.0))
	require.NotNil(t, tracker.CheckMemoryPressure(95.0))
}

func TestTrackerHonorsConfiguredThresholds(t *testing.T) {
	thresholds := DefaultAlertThresholds()
	thresholds.LowCacheHitRatio = 0.80
	thresholds.HighMemoryUsagePercent = 50.0

	config := DefaultTrackerConfig()
	config.Thresholds = thresholds
	tracker := NewTracker(config)

	// A ratio fine under the defaults now trips the stricter threshold.
	alert := tracker.CheckCacheHitRatio(0.75, 200)
	require.NotNil(t, alert)
	assert.Equal(t, AlertWarning, alert.Severity)
	assert.Equal(t, "cache:hit_ratio", alert.Operation)
	assert.Nil(t, tracker.CheckCacheHitRatio(0.85, 200))

	pressure := tracker.CheckMemoryPressure(60.0)
	require.NotNil(t, pressure)
	assert.Equal(t, AlertCritical, pressure.Severity)
	assert.Nil(t, tracker.CheckMemoryPressure(45.0))

	assert.Len(t, tracker.Alerts(), 2)
}

func TestTrackerAlertsDisabled(t *testing.T) {
	config := DefaultTrackerConfig()
	config.EnableAlerts = false
	tracker := NewTracker(config)

	assert.Nil(t, tracker.CheckCacheHitRatio(0.0, 100))
	assert.Nil(t, tracker.CheckMemoryPressure(100.0))
	assert.Empty(t, tracker.Alerts())
}

func TestCompleteOperationRaisesDurationAlert(t *testing.T) {
	thresholds := DefaultAlertThresholds()
	thresholds.SlowResponseThreshold = time.Nanosecond

	config := DefaultTrackerConfig()
	config.Thresholds = thresholds
	tracker := NewTracker(config)

	marker := tracker.StartOperation("posts:list")
	time.Sleep(time.Millisecond)
	tracker.CompleteOperation(marker)

	alerts := tracker.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "posts:list", alerts[0].Operation)
}
