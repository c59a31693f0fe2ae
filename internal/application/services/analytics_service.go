package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/domain/analytics"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/storage"
	"github.com/escolahabilidade/habilidade-go/pkg/config"
)

// AnalyticsServiceConfig carries the tunables so tests can shrink them.
type AnalyticsServiceConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
	MaxStored    int
	DevMode      bool
	CollectorURL string
}

func NewDefaultAnalyticsServiceConfig() AnalyticsServiceConfig {
	return AnalyticsServiceConfig{
		BatchSize:    config.AnalyticsBatchSize,
		BatchTimeout: config.AnalyticsBatchTimeout,
		MaxStored:    config.AnalyticsMaxStored,
		DevMode:      config.AnalyticsDevMode,
		CollectorURL: config.AnalyticsCollectorURL,
	}
}

var (
	emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	digitPattern = regexp.MustCompile(`\d{6,}`)
)

const maxPropLength = 200

// AnalyticsService collects events behind a persisted consent gate, batches
// them, and either stores them locally (dev) or ships them to a collector
// endpoint (prod). Failed shipments are requeued at the head so order holds.
type AnalyticsService struct {
	store  storage.Store
	logger *logging.ChanneledLogger
	config AnalyticsServiceConfig
	client *http.Client

	mu      sync.Mutex
	consent bool
	pending []analytics.Event

	cancel context.CancelFunc
	done   sync.WaitGroup
}

func NewAnalyticsService(store storage.Store, logger *logging.ChanneledLogger, cfg AnalyticsServiceConfig) *AnalyticsService {
	s := &AnalyticsService{
		store:  store,
		logger: logger,
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	s.consent = s.loadConsent()
	return s
}

// Start launches the periodic flush loop.
func (s *AnalyticsService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done.Add(1)
	go s.flushLoop(ctx)
}

// Shutdown flushes whatever is pending and stops the loop.
func (s *AnalyticsService) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.done.Wait()
	s.Flush()
}

// SetConsent records the visitor's choice and persists it. Revoking consent
// drops anything still pending.
func (s *AnalyticsService) SetConsent(granted bool) {
	s.mu.Lock()
	s.consent = granted
	if !granted {
		s.pending = nil
	}
	s.mu.Unlock()

	payload, _ := json.Marshal(granted)
	if err := s.store.Set(analytics.ConsentKey, payload); err != nil {
		s.logger.LogError(logging.ChannelAnalytics, "persist_consent", err, nil)
	}
	s.logger.Analytics().Info("Consent updated", "granted", granted)
}

// HasConsent reports the current consent state.
func (s *AnalyticsService) HasConsent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consent
}

// Track enriches and queues one event. Without consent the event is dropped
// silently. A full batch flushes immediately.
func (s *AnalyticsService) Track(name string, props map[string]any, sessionID string) {
	event := analytics.Event{
		Name:      name,
		Props:     sanitizeProps(props),
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	if !s.consent {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, event)
	full := len(s.pending) >= s.config.BatchSize
	s.mu.Unlock()

	s.logger.WithSession(logging.ChannelAnalytics, sessionID).Debug("Event tracked", "event", name)

	if full {
		s.Flush()
	}
}

// TrackPostView records a blog post view.
func (s *AnalyticsService) TrackPostView(slug, category, sessionID string, timeOnPage time.Duration) {
	props := map[string]any{
		"slug":       slug,
		"category":   category,
		"engagement": analytics.EngagementLevel(timeOnPage),
	}
	if timeOnPage > 0 {
		props["timeOnPage"] = int(timeOnPage.Seconds())
	}
	s.Track("blog_post_view", props, sessionID)
}

// TrackSearch records a blog search with its result count.
func (s *AnalyticsService) TrackSearch(query string, results int, sessionID string) {
	s.Track("blog_search", map[string]any{
		"query":   strings.ToLower(strings.TrimSpace(query)),
		"results": results,
	}, sessionID)
}

// Flush ships the pending batch. In dev mode events are logged and appended
// to local storage; in prod they are posted to the collector and requeued at
// the head of the pending list when the post fails.
func (s *AnalyticsService) Flush() {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	if s.config.DevMode || s.config.CollectorURL == "" {
		s.storeLocally(batch)
		return
	}

	if err := s.ship(batch); err != nil {
		s.logger.LogError(logging.ChannelAnalytics, "ship_batch", err, map[string]any{"events": len(batch)})
		s.mu.Lock()
		s.pending = append(batch, s.pending...)
		s.mu.Unlock()
		return
	}
	s.logger.Analytics().Debug("Batch shipped", "events", len(batch))
}

// Pending reports the queued event count.
func (s *AnalyticsService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Summary aggregates the locally stored events.
func (s *AnalyticsService) Summary() analytics.Summary {
	events := s.storedEvents()

	summary := analytics.Summary{
		TotalEvents: len(events),
		EventCounts: make(map[string]int),
	}
	posts := make(map[string]int)
	searches := make(map[string]int)
	categories := make(map[string]int)

	for _, event := range events {
		summary.EventCounts[event.Name]++
		switch event.Name {
		case "blog_post_view":
			if slug, ok := event.Props["slug"].(string); ok && slug != "" {
				posts[slug]++
			}
			if category, ok := event.Props["category"].(string); ok && category != "" {
				categories[category]++
			}
		case "blog_search":
			if query, ok := event.Props["query"].(string); ok && query != "" {
				searches[query]++
			}
		}
	}

	summary.TopPosts = topEntries(posts, 10)
	summary.TopSearches = topEntries(searches, 10)
	summary.TopCategories = topEntries(categories, 10)
	return summary
}

func (s *AnalyticsService) flushLoop(ctx context.Context) {
	defer s.done.Done()

	ticker := time.NewTicker(s.config.BatchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

func (s *AnalyticsService) loadConsent() bool {
	payload, ok := s.store.Get(analytics.ConsentKey)
	if !ok {
		return false
	}
	var granted bool
	if err := json.Unmarshal(payload, &granted); err != nil {
		return false
	}
	return granted
}

func (s *AnalyticsService) storedEvents() []analytics.Event {
	payload, ok := s.store.Get(analytics.StoredEventsKey)
	if !ok {
		return nil
	}
	var events []analytics.Event
	if err := json.Unmarshal(payload, &events); err != nil {
		s.logger.LogError(logging.ChannelAnalytics, "decode_stored_events", err, nil)
		return nil
	}
	return events
}

// storeLocally appends a batch to local storage, keeping only the newest
// MaxStored events.
func (s *AnalyticsService) storeLocally(batch []analytics.Event) {
	for _, event := range batch {
		s.logger.Analytics().Debug("Event", "name", event.Name, "props", event.Props)
	}

	events := append(s.storedEvents(), batch...)
	if len(events) > s.config.MaxStored {
		events = events[len(events)-s.config.MaxStored:]
	}

	payload, err := json.Marshal(events)
	if err != nil {
		s.logger.LogError(logging.ChannelAnalytics, "encode_stored_events", err, nil)
		return
	}
	if err := s.store.Set(analytics.StoredEventsKey, payload); err != nil {
		s.logger.LogError(logging.ChannelAnalytics, "persist_events", err, nil)
	}
}

func (s *AnalyticsService) ship(batch []analytics.Event) error {
	payload, err := json.Marshal(analytics.Batch{Events: batch})
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	resp, err := s.client.Post(s.config.CollectorURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to post batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned %d", resp.StatusCode)
	}
	return nil
}

// sanitizeProps copies the props, masking emails and long digit runs and
// capping string length. The input map is never mutated.
func sanitizeProps(props map[string]any) map[string]any {
	if len(props) == 0 {
		return nil
	}
	clean := make(map[string]any, len(props))
	for key, value := range props {
		if text, ok := value.(string); ok {
			clean[key] = sanitizeText(text)
			continue
		}
		clean[key] = value
	}
	return clean
}

func sanitizeText(text string) string {
	text = emailPattern.ReplaceAllString(text, "[email]")
	text = digitPattern.ReplaceAllString(text, "[number]")
	if len(text) > maxPropLength {
		text = text[:maxPropLength]
	}
	return text
}

// SanitizeUserAgent reduces a raw user agent to browser and OS families so
// no fingerprintable detail is stored.
func SanitizeUserAgent(ua string) string {
	browser := "other"
	switch {
	case strings.Contains(ua, "Edg/"):
		browser = "edge"
	case strings.Contains(ua, "OPR/") || strings.Contains(ua, "Opera"):
		browser = "opera"
	case strings.Contains(ua, "Chrome/"):
		browser = "chrome"
	case strings.Contains(ua, "Safari/"):
		browser = "safari"
	case strings.Contains(ua, "Firefox/"):
		browser = "firefox"
	}

	os := "other"
	switch {
	case strings.Contains(ua, "Windows"):
		os = "windows"
	case strings.Contains(ua, "Android"):
		os = "android"
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad"):
		os = "ios"
	case strings.Contains(ua, "Mac OS X"):
		os = "macos"
	case strings.Contains(ua, "Linux"):
		os = "linux"
	}

	return browser + "/" + os
}

func topEntries(counts map[string]int, limit int) []analytics.EntryCount {
	entries := make([]analytics.EntryCount, 0, len(counts))
	for key, count := range counts {
		entries = append(entries, analytics.EntryCount{Key: key, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
