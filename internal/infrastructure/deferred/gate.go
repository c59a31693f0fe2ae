package deferred

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
)

// Config controls which triggers a gate arms.
type Config struct {
	// ScrollThreshold is the page-depth fraction (0..1) that fires the gate.
	ScrollThreshold float64
	// IdleFallback, when positive, arms a timer that fires the gate after
	// the given duration even with zero interaction. The idle signal fires
	// it earlier. Used by the schema gate only.
	IdleFallback time.Duration
	// ReducedMotion loads the payload synchronously at construction and
	// arms nothing.
	ReducedMotion bool
}

// Gate is a one-way NOT_LOADED to LOADED latch in front of a Sink.
//
// The mutex is held through queue replay so that an event arriving during
// the replay cannot jump ahead of the buffered ones: the queue drains in
// enqueue order, exactly once.
type Gate struct {
	name   string
	sink   Sink
	config Config
	logger *logging.ChanneledLogger

	mu        sync.Mutex
	loaded    bool
	queue     []Event
	teardowns []func()

	scrollInFlight atomic.Bool
	lastActivity   atomic.Int64
	idleTimer      *time.Timer
}

// NewGate creates a gate in front of sink. With ReducedMotion set, the
// payload loads before NewGate returns.
func NewGate(name string, sink Sink, config Config, logger *logging.ChanneledLogger) *Gate {
	g := &Gate{
		name:   name,
		sink:   sink,
		config: config,
		logger: logger,
	}
	g.Touch()

	if config.ReducedMotion {
		g.Fire("reduced-motion")
		return g
	}

	if config.IdleFallback > 0 {
		g.armIdleFallback()
	}
	return g
}

// Loaded reports whether the gate has fired.
func (g *Gate) Loaded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loaded
}

// QueueEvent buffers an event pre-load and dispatches it directly post-load.
// The pre-load buffer is unbounded; gates are short-lived and session-scoped.
func (g *Gate) QueueEvent(name string, params map[string]any) {
	g.Touch()
	event := Event{Name: name, Params: params}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.loaded {
		g.sink.Dispatch(event)
		return
	}
	g.queue = append(g.queue, event)
}

// AddTeardown registers a cancel function run when the gate fires or is
// discarded. Pre-fire triggers register themselves here.
func (g *Gate) AddTeardown(cancel func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.loaded {
		cancel()
		return
	}
	g.teardowns = append(g.teardowns, cancel)
}

// Fire transitions the gate to LOADED: activate the sink, replay the buffer
// in order, tear down the remaining triggers. Every call after the first is
// a no-op. Returns whether this call made the transition.
func (g *Gate) Fire(reason string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.loaded {
		return false
	}
	g.loaded = true

	if g.idleTimer != nil {
		g.idleTimer.Stop()
		g.idleTimer = nil
	}
	for _, cancel := range g.teardowns {
		cancel()
	}
	g.teardowns = nil

	if err := g.sink.Activate(); err != nil {
		g.logger.System().Error("Gate payload activation failed", "gate", g.name, "reason", reason, "error", err.Error())
	}

	for _, event := range g.queue {
		g.sink.Dispatch(event)
	}
	replayed := len(g.queue)
	g.queue = nil

	g.logger.System().Info("Gate fired", "gate", g.name, "reason", reason, "replayedEvents", replayed)
	return true
}

// SignalInteraction handles the first click, touchstart, or keydown.
func (g *Gate) SignalInteraction() {
	g.Touch()
	g.Fire("interaction")
}

// SignalScroll handles a scroll-depth sample. Samples arriving while one is
// being evaluated are dropped, mirroring a frame-throttled listener.
func (g *Gate) SignalScroll(depth float64) {
	g.Touch()
	if !g.scrollInFlight.CompareAndSwap(false, true) {
		return
	}
	defer g.scrollInFlight.Store(false)

	if depth >= g.config.ScrollThreshold {
		g.Fire("scroll")
	}
}

// SignalIdle handles an idle notification. Only meaningful for gates armed
// with an idle fallback, but harmless otherwise.
func (g *Gate) SignalIdle() {
	g.Touch()
	if g.config.IdleFallback > 0 {
		g.Fire("idle")
	}
}

// SignalVisible handles a watched element entering the viewport.
func (g *Gate) SignalVisible() {
	g.Touch()
	g.Fire("intersection")
}

// Touch records activity for the session janitor.
func (g *Gate) Touch() {
	g.lastActivity.Store(time.Now().UTC().UnixNano())
}

// LastActivity returns the time of the most recent signal or event.
func (g *Gate) LastActivity() time.Time {
	return time.Unix(0, g.lastActivity.Load()).UTC()
}

// Discard tears down pending triggers without firing. The janitor calls this
// when a session expires unloaded.
func (g *Gate) Discard() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idleTimer != nil {
		g.idleTimer.Stop()
		g.idleTimer = nil
	}
	for _, cancel := range g.teardowns {
		cancel()
	}
	g.teardowns = nil
}

// armIdleFallback guarantees eventual load with zero interaction: whichever
// comes first of the idle signal and this timer fires the gate.
func (g *Gate) armIdleFallback() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idleTimer = time.AfterFunc(g.config.IdleFallback, func() {
		g.Fire("idle-fallback")
	})
}
