package services

import (
	"strings"
	"testing"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/domain/analytics"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyticsService(t *testing.T, cfg AnalyticsServiceConfig) (*AnalyticsService, *storage.SessionStore) {
	t.Helper()
	store := storage.NewSessionStore(100)
	return NewAnalyticsService(store, newTestLogger(t), cfg), store
}

func devConfig() AnalyticsServiceConfig {
	return AnalyticsServiceConfig{
		BatchSize:    10,
		BatchTimeout: time.Hour,
		MaxStored:    1000,
		DevMode:      true,
	}
}

func TestTrackRequiresConsent(t *testing.T) {
	svc, _ := newTestAnalyticsService(t, devConfig())

	svc.Track("blog_post_view", map[string]any{"slug": "x"}, "sess-1")
	assert.Equal(t, 0, svc.Pending(), "events without consent are dropped")

	svc.SetConsent(true)
	svc.Track("blog_post_view", map[string]any{"slug": "x"}, "sess-1")
	assert.Equal(t, 1, svc.Pending())
}

func TestConsentPersistsAcrossRestarts(t *testing.T) {
	svc, store := newTestAnalyticsService(t, devConfig())
	svc.SetConsent(true)

	reloaded := NewAnalyticsService(store, newTestLogger(t), devConfig())
	assert.True(t, reloaded.HasConsent())
}

func TestRevokingConsentDropsPending(t *testing.T) {
	svc, _ := newTestAnalyticsService(t, devConfig())
	svc.SetConsent(true)
	svc.Track("blog_post_view", nil, "sess-1")
	require.Equal(t, 1, svc.Pending())

	svc.SetConsent(false)
	assert.Equal(t, 0, svc.Pending())
}

func TestFullBatchFlushesToLocalStore(t *testing.T) {
	cfg := devConfig()
	cfg.BatchSize = 3
	svc, store := newTestAnalyticsService(t, cfg)
	svc.SetConsent(true)

	svc.Track("blog_search", map[string]any{"query": "excel"}, "sess-1")
	svc.Track("blog_search", map[string]any{"query": "excel"}, "sess-1")
	assert.Equal(t, 2, svc.Pending())

	svc.Track("blog_search", map[string]any{"query": "sketchup"}, "sess-1")
	assert.Equal(t, 0, svc.Pending(), "a full batch flushes immediately")

	_, ok := store.Get(analytics.StoredEventsKey)
	assert.True(t, ok)
	assert.Equal(t, 3, svc.Summary().TotalEvents)
}

func TestStoredEventsAreCapped(t *testing.T) {
	cfg := devConfig()
	cfg.BatchSize = 1
	cfg.MaxStored = 5
	svc, _ := newTestAnalyticsService(t, cfg)
	svc.SetConsent(true)

	for i := 0; i < 8; i++ {
		svc.Track("blog_post_view", map[string]any{"slug": "a"}, "sess-1")
	}

	assert.Equal(t, 5, svc.Summary().TotalEvents)
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "contato: [email]", sanitizeText("contato: aluno@escola.com.br"))
	assert.Equal(t, "tel [number]", sanitizeText("tel 4833334444"))
	assert.Equal(t, "curto", sanitizeText("curto"))

	long := strings.Repeat("a", 500)
	assert.Len(t, sanitizeText(long), 200)
}

func TestSanitizePropsDoesNotMutateInput(t *testing.T) {
	props := map[string]any{"note": "mande para x@y.com", "count": 3}
	clean := sanitizeProps(props)

	assert.Equal(t, "mande para [email]", clean["note"])
	assert.Equal(t, 3, clean["count"])
	assert.Equal(t, "mande para x@y.com", props["note"])
}

func TestSanitizeUserAgent(t *testing.T) {
	chrome := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	assert.Equal(t, "chrome/windows", SanitizeUserAgent(chrome))

	safari := "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/604.1"
	assert.Equal(t, "safari/ios", SanitizeUserAgent(safari))

	firefox := "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"
	assert.Equal(t, "firefox/linux", SanitizeUserAgent(firefox))

	assert.Equal(t, "other/other", SanitizeUserAgent("curl/8.0"))
}

func TestSummaryAggregates(t *testing.T) {
	cfg := devConfig()
	cfg.BatchSize = 1
	svc, _ := newTestAnalyticsService(t, cfg)
	svc.SetConsent(true)

	svc.TrackPostView("curso-de-informatica", "tecnologia", "sess-1", 45*time.Second)
	svc.TrackPostView("curso-de-informatica", "tecnologia", "sess-2", 3*time.Minute)
	svc.TrackPostView("curso-de-projetista", "design", "sess-1", 10*time.Second)
	svc.TrackSearch("autocad", 4, "sess-1")

	summary := svc.Summary()
	assert.Equal(t, 4, summary.TotalEvents)
	assert.Equal(t, 3, summary.EventCounts["blog_post_view"])
	assert.Equal(t, 1, summary.EventCounts["blog_search"])

	require.NotEmpty(t, summary.TopPosts)
	assert.Equal(t, "curso-de-informatica", summary.TopPosts[0].Key)
	assert.Equal(t, 2, summary.TopPosts[0].Count)

	require.NotEmpty(t, summary.TopSearches)
	assert.Equal(t, "autocad", summary.TopSearches[0].Key)

	require.NotEmpty(t, summary.TopCategories)
	assert.Equal(t, "tecnologia", summary.TopCategories[0].Key)
}

func TestEngagementLevels(t *testing.T) {
	assert.Equal(t, "low", analytics.EngagementLevel(10*time.Second))
	assert.Equal(t, "medium", analytics.EngagementLevel(time.Minute))
	assert.Equal(t, "high", analytics.EngagementLevel(5*time.Minute))
}
