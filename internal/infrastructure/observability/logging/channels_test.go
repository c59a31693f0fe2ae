package logging

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileLogger(t *testing.T) (*ChanneledLogger, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultLoggerConfig()
	cfg.OutputToConsole = false
	cfg.LogDirectory = dir
	cfg.DefaultLevel = slog.LevelDebug
	cfg.IncludeSource = false
	logger, err := NewChanneledLogger(cfg)
	require.NoError(t, err)
	return logger, dir
}

func readChannelLog(t *testing.T, dir string, channel Channel) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, string(channel)+".log"))
	require.NoError(t, err)
	return string(data)
}

func TestLogCacheOperationRecordsHitAndMiss(t *testing.T) {
	logger, dir := newFileLogger(t)

	logger.LogCacheOperation("get", "blog_post_curso-de-informatica", true, 40*time.Microsecond)
	logger.LogCacheOperation("get", "blog_post_nao-cacheado", false, 2*time.Millisecond)

	out := readChannelLog(t, dir, ChannelCache)
	assert.Contains(t, out, "Cache hit")
	assert.Contains(t, out, "Cache miss")
	assert.Contains(t, out, "blog_post_curso-de-informatica")
	assert.Contains(t, out, `"hit":true`)
	assert.Contains(t, out, `"hit":false`)
}

func TestWithOperationAndSessionContext(t *testing.T) {
	logger, dir := newFileLogger(t)

	logger.WithOperation(ChannelCache, "warm").Info("Cache warmed", "popularPosts", 5)
	logger.WithSession(ChannelAnalytics, "sess_1234567890abcdef").Debug("Event tracked", "event", "page_view")

	cacheOut := readChannelLog(t, dir, ChannelCache)
	assert.Contains(t, cacheOut, `"operation":"warm"`)

	analyticsOut := readChannelLog(t, dir, ChannelAnalytics)
	assert.Contains(t, analyticsOut, `"sessionId":"sess****cdef"`)
	assert.NotContains(t, analyticsOut, "sess_1234567890abcdef", "full session ids never reach the logs")
}

func TestWithSessionMasksShortIDs(t *testing.T) {
	logger, _ := newFileLogger(t)
	assert.Equal(t, "********", logger.sanitizeSessionID("short"))
	assert.Equal(t, "abcd****mnop", logger.sanitizeSessionID("abcdefghijklmnop"))
}

func TestLogErrorCarriesMetadata(t *testing.T) {
	logger, dir := newFileLogger(t)

	logger.LogError(ChannelMedia, "process_image", errors.New("unsupported format"), map[string]any{"file": "notas.txt"})

	out := readChannelLog(t, dir, ChannelMedia)
	assert.Contains(t, out, "Operation failed")
	assert.Contains(t, out, "unsupported format")
	assert.Contains(t, out, "notas.txt")
}
