package deferred

import "sync"

// WatchKey scopes an element subscription to one session, so a visibility
// report fires only that session's gates.
func WatchKey(sessionID, elementID string) string {
	return sessionID + "#" + elementID
}

// ObserverPool multiplexes visibility subscriptions over shared watch state
// instead of one watcher per gate. Subscribers observing the same element
// share a single entry; unsubscribing the last one drops the entry.
type ObserverPool struct {
	mu       sync.Mutex
	watchers map[string]map[int]func()
	nextID   int
}

// NewObserverPool creates an empty pool.
func NewObserverPool() *ObserverPool {
	return &ObserverPool{
		watchers: make(map[string]map[int]func()),
	}
}

// Observe registers fn to run when elementID becomes visible. The returned
// cancel function is idempotent.
func (p *ObserverPool) Observe(elementID string, fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watchers[elementID] == nil {
		p.watchers[elementID] = make(map[int]func())
	}
	id := p.nextID
	p.nextID++
	p.watchers[elementID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if subs, ok := p.watchers[elementID]; ok {
				delete(subs, id)
				if len(subs) == 0 {
					delete(p.watchers, elementID)
				}
			}
		})
	}
}

// Notify reports elementID as visible and invokes its subscribers.
func (p *ObserverPool) Notify(elementID string) {
	p.mu.Lock()
	subs := make([]func(), 0, len(p.watchers[elementID]))
	for _, fn := range p.watchers[elementID] {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	// Run outside the lock: a subscriber firing a gate will call back into
	// the pool through the trigger teardowns.
	for _, fn := range subs {
		fn()
	}
}

// Watched returns the number of elements with live subscribers.
func (p *ObserverPool) Watched() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}
