// Package messaging fans cache lifecycle events out to connected websocket
// admin clients.
package messaging

import (
	"sync"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
)

// CacheEvent describes one cache mutation pushed to subscribers. Performance
// events carry the stats snapshot in Payload instead of a key.
type CacheEvent struct {
	Type      string    `json:"type"`
	Key       string    `json:"key,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Broadcaster manages per-client event channels. Slow clients are never
// allowed to block a broadcast; their events are dropped instead.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[int]chan CacheEvent
	nextID  int
	logger  *logging.ChanneledLogger
}

func NewBroadcaster(logger *logging.ChanneledLogger) *Broadcaster {
	return &Broadcaster{
		clients: make(map[int]chan CacheEvent),
		logger:  logger,
	}
}

// AddClient registers a subscriber and returns its id and event channel.
func (b *Broadcaster) AddClient() (int, chan CacheEvent) {
	ch := make(chan CacheEvent, 10)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.clients[id] = ch

	b.logger.WS().Debug("Websocket client registered", "clientId", id)
	return id, ch
}

// RemoveClient unregisters a subscriber and closes its channel.
func (b *Broadcaster) RemoveClient(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, exists := b.clients[id]; exists {
		delete(b.clients, id)
		close(ch)
	}
	b.logger.WS().Debug("Websocket client unregistered", "clientId", id)
}

// ClientCount returns the number of connected subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Broadcast delivers an event to every subscriber without blocking.
func (b *Broadcaster) Broadcast(event CacheEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WS().Error("Panic recovered in Broadcast", "error", r, "eventType", event.Type)
		}
	}()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.clients {
		select {
		case ch <- event:
		default:
			b.logger.WS().Warn("Websocket channel full, event dropped", "clientId", id, "eventType", event.Type)
		}
	}
}
