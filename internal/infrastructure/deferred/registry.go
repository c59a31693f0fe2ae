package deferred

import (
	"context"
	"sync"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
)

// SessionGates holds the two gate variants for one page session.
type SessionGates struct {
	Analytics *Gate
	Schema    *Gate
}

// lastActivity returns the most recent activity across both gates.
func (sg *SessionGates) lastActivity() time.Time {
	a, s := sg.Analytics.LastActivity(), sg.Schema.LastActivity()
	if a.After(s) {
		return a
	}
	return s
}

// GateFactory builds the per-session gate pair.
type GateFactory func(sessionID string, reducedMotion bool) *SessionGates

// Registry tracks gate pairs per session ID and expires idle sessions with a
// background janitor.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*SessionGates

	factory  GateFactory
	ttl      time.Duration
	interval time.Duration
	logger   *logging.ChanneledLogger
}

// NewRegistry creates a registry with the given session TTL and janitor
// interval.
func NewRegistry(ttl, interval time.Duration, factory GateFactory, logger *logging.ChanneledLogger) *Registry {
	return &Registry{
		sessions: make(map[string]*SessionGates),
		factory:  factory,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
	}
}

// GetOrCreate returns the gate pair for sessionID, building it on first use.
func (r *Registry) GetOrCreate(sessionID string, reducedMotion bool) *SessionGates {
	r.mu.RLock()
	gates, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		return gates
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check under the write lock.
	if gates, ok := r.sessions[sessionID]; ok {
		return gates
	}

	gates = r.factory(sessionID, reducedMotion)
	r.sessions[sessionID] = gates
	r.logger.System().Debug("Gate session created", "sessionId", sessionID, "reducedMotion", reducedMotion)
	return gates
}

// Get returns an existing gate pair, if any.
func (r *Registry) Get(sessionID string) (*SessionGates, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gates, ok := r.sessions[sessionID]
	return gates, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartJanitor runs the expiry loop until ctx is cancelled.
func (r *Registry) StartJanitor(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.expireIdle()
		}
	}
}

// expireIdle discards sessions idle past the TTL.
func (r *Registry) expireIdle() {
	cutoff := time.Now().UTC().Add(-r.ttl)

	r.mu.Lock()
	expired := make([]*SessionGates, 0)
	for sessionID, gates := range r.sessions {
		if gates.lastActivity().Before(cutoff) {
			delete(r.sessions, sessionID)
			expired = append(expired, gates)
		}
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	for _, gates := range expired {
		gates.Analytics.Discard()
		gates.Schema.Discard()
	}
	if len(expired) > 0 {
		r.logger.System().Info("Expired idle gate sessions", "expired", len(expired), "remaining", remaining)
	}
}
