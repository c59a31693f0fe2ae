package storage

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStore(t *testing.T, maxEntries int) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(filepath.Join(t.TempDir(), "cache.db"), maxEntries)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store := newTestLocalStore(t, 10)

	require.NoError(t, store.Set("blog_post_a", []byte(`{"title":"a"}`)))

	payload, ok := store.Get("blog_post_a")
	require.True(t, ok)
	assert.JSONEq(t, `{"title":"a"}`, string(payload))

	_, ok = store.Get("blog_post_missing")
	assert.False(t, ok)
}

func TestLocalStoreUpsert(t *testing.T) {
	store := newTestLocalStore(t, 10)

	require.NoError(t, store.Set("blog_post_a", []byte(`1`)))
	require.NoError(t, store.Set("blog_post_a", []byte(`2`)))

	payload, ok := store.Get("blog_post_a")
	require.True(t, ok)
	assert.Equal(t, "2", string(payload))
	assert.Equal(t, 1, store.Len())
}

func TestLocalStoreRemove(t *testing.T) {
	store := newTestLocalStore(t, 10)

	require.NoError(t, store.Set("blog_post_a", []byte(`1`)))
	store.Remove("blog_post_a")

	_, ok := store.Get("blog_post_a")
	assert.False(t, ok)
}

func TestLocalStoreKeysByPrefix(t *testing.T) {
	store := newTestLocalStore(t, 10)

	require.NoError(t, store.Set("blog_posts_1", []byte(`1`)))
	require.NoError(t, store.Set("blog_posts_2", []byte(`2`)))
	require.NoError(t, store.Set("blog_search_go", []byte(`3`)))

	assert.ElementsMatch(t, []string{"blog_posts_1", "blog_posts_2"}, store.Keys("blog_posts_"))
	assert.Len(t, store.Keys("blog_"), 3)
}

func TestLocalStoreEnforcesCap(t *testing.T) {
	store := newTestLocalStore(t, 5)

	for i := 0; i < 8; i++ {
		require.NoError(t, store.Set(fmt.Sprintf("blog_post_%d", i), []byte(`x`)))
	}

	assert.LessOrEqual(t, store.Len(), 5)
	// The newest keys survive.
	_, ok := store.Get("blog_post_7")
	assert.True(t, ok)
}

func TestSessionStoreEvictsOldest(t *testing.T) {
	store := NewSessionStore(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set(fmt.Sprintf("blog_search_%d", i), []byte(`x`)))
	}

	assert.Equal(t, 3, store.Len())
	_, ok := store.Get("blog_search_0")
	assert.False(t, ok)
	_, ok = store.Get("blog_search_4")
	assert.True(t, ok)
}
