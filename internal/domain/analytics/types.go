// Package analytics defines the event types flowing through the analytics pipeline.
package analytics

import "time"

// Storage keys shared with the web client.
const (
	ConsentKey      = "habilidade_analytics_consent"
	StoredEventsKey = "habilidade_analytics_events"
)

// Event is a single analytics event after enrichment.
type Event struct {
	Name      string         `json:"event"`
	Props     map[string]any `json:"props,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Batch is the wire format sent to the collector endpoint.
type Batch struct {
	Events []Event `json:"events"`
}

// EntryCount pairs a key with its occurrence count.
type EntryCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary aggregates the locally persisted events.
type Summary struct {
	TotalEvents   int            `json:"totalEvents"`
	EventCounts   map[string]int `json:"eventCounts"`
	TopPosts      []EntryCount   `json:"topPosts"`
	TopSearches   []EntryCount   `json:"topSearches"`
	TopCategories []EntryCount   `json:"topCategories"`
}

// EngagementLevel buckets time-on-page into low, medium, and high.
func EngagementLevel(timeOnPage time.Duration) string {
	switch {
	case timeOnPage < 30*time.Second:
		return "low"
	case timeOnPage < 2*time.Minute:
		return "medium"
	default:
		return "high"
	}
}
