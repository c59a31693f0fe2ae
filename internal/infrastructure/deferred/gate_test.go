package deferred

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
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

// recordingSink captures activation and dispatch order.
type recordingSink struct {
	mu          sync.Mutex
	activations int
	events      []Event
	activateErr error
}

func (s *recordingSink) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activations++
	return s.activateErr
}

func (s *recordingSink) Dispatch(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) eventNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.events))
	for i, e := range s.events {
		names[i] = e.Name
	}
	return names
}

func TestGateFiresOnceAndReplaysInOrder(t *testing.T) {
	sink := &recordingSink{}
	gate := NewGate("analytics", sink, Config{ScrollThreshold: 0.25}, newTestLogger(t))

	gate.QueueEvent("first", nil)
	gate.QueueEvent("second", nil)
	assert.False(t, gate.Loaded())
	assert.Empty(t, sink.eventNames(), "events must not reach the sink pre-load")

	require.True(t, gate.Fire("interaction"))
	assert.True(t, gate.Loaded())
	assert.Equal(t, []string{"first", "second"}, sink.eventNames())
	assert.Equal(t, 1, sink.activations)

	// Second fire is a no-op; post-load events dispatch directly.
	assert.False(t, gate.Fire("scroll"))
	gate.QueueEvent("third", nil)
	assert.Equal(t, []string{"first", "second", "third"}, sink.eventNames())
	assert.Equal(t, 1, sink.activations)
}

func TestGateReducedMotionLoadsSynchronously(t *testing.T) {
	sink := &recordingSink{}
	gate := NewGate("analytics", sink, Config{ReducedMotion: true}, newTestLogger(t))

	assert.True(t, gate.Loaded())
	assert.Equal(t, 1, sink.activations)
}

func TestGateScrollThreshold(t *testing.T) {
	sink := &recordingSink{}
	gate := NewGate("analytics", sink, Config{ScrollThreshold: 0.25}, newTestLogger(t))

	gate.SignalScroll(0.10)
	assert.False(t, gate.Loaded())

	gate.SignalScroll(0.30)
	assert.True(t, gate.Loaded())
}

func TestGateIdleSignalOnlyWithFallback(t *testing.T) {
	sink := &recordingSink{}
	gate := NewGate("analytics", sink, Config{ScrollThreshold: 0.25}, newTestLogger(t))

	gate.SignalIdle()
	assert.False(t, gate.Loaded(), "idle must not fire a gate without an idle fallback")

	schemaSink := &recordingSink{}
	schemaGate := NewGate("schema", schemaSink, Config{ScrollThreshold: 0.25, IdleFallback: time.Minute}, newTestLogger(t))
	schemaGate.SignalIdle()
	assert.True(t, schemaGate.Loaded())
}

func TestGateIdleFallbackTimer(t *testing.T) {
	sink := &recordingSink{}
	gate := NewGate("schema", sink, Config{ScrollThreshold: 0.25, IdleFallback: 20 * time.Millisecond}, newTestLogger(t))

	assert.False(t, gate.Loaded())
	assert.Eventually(t, gate.Loaded, time.Second, 5*time.Millisecond)
}

func TestGateActivationErrorStillLoads(t *testing.T) {
	sink := &recordingSink{activateErr: errors.New("script blocked")}
	gate := NewGate("analytics", sink, Config{}, newTestLogger(t))

	gate.QueueEvent("only", nil)
	require.True(t, gate.Fire("interaction"))

	assert.True(t, gate.Loaded())
	assert.Equal(t, []string{"only"}, sink.eventNames())
}

func TestGateTeardownsRunOnFireAndDiscard(t *testing.T) {
	sink := &recordingSink{}
	gate := NewGate("analytics", sink, Config{}, newTestLogger(t))

	var torn int
	gate.AddTeardown(func() { torn++ })
	gate.AddTeardown(func() { torn++ })

	gate.Fire("interaction")
	assert.Equal(t, 2, torn)

	// Registered after load: runs immediately.
	gate.AddTeardown(func() { torn++ })
	assert.Equal(t, 3, torn)

	discarded := NewGate("schema", &recordingSink{}, Config{}, newTestLogger(t))
	var cancelled bool
	discarded.AddTeardown(func() { cancelled = true })
	discarded.Discard()
	assert.True(t, cancelled)
	assert.False(t, discarded.Loaded())
}

func TestGateConcurrentEventsReplayExactlyOnce(t *testing.T) {
	sink := &recordingSink{}
	gate := NewGate("analytics", sink, Config{}, newTestLogger(t))

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				gate.QueueEvent(fmt.Sprintf("w%d-%d", w, i), nil)
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		gate.Fire("interaction")
	}()
	wg.Wait()

	assert.Len(t, sink.eventNames(), writers*perWriter, "every event dispatches exactly once")
}

func TestObserverPool(t *testing.T) {
	pool := NewObserverPool()

	var hits int
	cancel := pool.Observe("faq-section", func() { hits++ })
	pool.Observe("faq-section", func() { hits++ })
	assert.Equal(t, 1, pool.Watched())

	pool.Notify("faq-section")
	assert.Equal(t, 2, hits)

	pool.Notify("unknown-section")
	assert.Equal(t, 2, hits)

	cancel()
	cancel() // idempotent
	pool.Notify("faq-section")
	assert.Equal(t, 3, hits)
}

func TestRegistryJanitorDiscardsIdleSessions(t *testing.T) {
	logger := newTestLogger(t)
	factory := func(sessionID string, reducedMotion bool) *SessionGates {
		return &SessionGates{
			Analytics: NewGate("analytics", &recordingSink{}, Config{}, logger),
			Schema:    NewGate("schema", &recordingSink{}, Config{}, logger),
		}
	}
	registry := NewRegistry(10*time.Millisecond, time.Minute, factory, logger)

	gates := registry.GetOrCreate("sess-1", false)
	same := registry.GetOrCreate("sess-1", false)
	assert.Same(t, gates, same)
	assert.Equal(t, 1, registry.Len())

	time.Sleep(20 * time.Millisecond)
	registry.expireIdle()
	assert.Equal(t, 0, registry.Len())

	_, ok := registry.Get("sess-1")
	assert.False(t, ok)
}
