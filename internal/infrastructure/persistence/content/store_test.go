package content

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	domain "github.com/escolahabilidade/habilidade-go/internal/domain/content"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = false
	cfg.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(cfg)
	require.NoError(t, err)

	store, err := NewStore(filepath.Join(t.TempDir(), "content.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	seed(t, store)
	return store
}

func seed(t *testing.T, store *Store) {
	t.Helper()
	_, err := store.db.Exec(`INSERT INTO categories (id, slug, name) VALUES
		('c1', 'tecnologia', 'Tecnologia'),
		('c2', 'design', 'Design')`)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Unix()
	_, err = store.db.Exec(`INSERT INTO posts
		(id, slug, title, excerpt, content, image_url, category_id, views, published_at, updated_at) VALUES
		('p1', 'curso-de-informatica', 'Curso de Informática', 'Do básico ao avançado', 'corpo', '', 'c1', 250, ?, ?),
		('p2', 'curso-de-sketchup', 'Curso de SketchUp', 'Modelagem 3D', 'corpo', '', 'c2', 120, ?, ?),
		('p3', 'curso-de-excel', 'Curso de Excel', 'Planilhas profissionais', 'corpo', '', 'c1', 300, ?, ?)`,
		base, base, base+100, base+100, base+200, base+200)
	require.NoError(t, err)
}

func TestGetCategoriesWithCounts(t *testing.T) {
	store := newTestStore(t)

	categories, err := store.GetCategories()
	require.NoError(t, err)
	require.Len(t, categories, 2)

	byName := map[string]domain.Category{}
	for _, c := range categories {
		byName[c.Slug] = c
	}
	assert.Equal(t, 2, byName["tecnologia"].PostCount)
	assert.Equal(t, 1, byName["design"].PostCount)
}

func TestListPostsPagination(t *testing.T) {
	store := newTestStore(t)

	list, err := store.ListPosts(1, 2, "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, 2, list.TotalPages)
	require.Len(t, list.Posts, 2)
	// Newest first.
	assert.Equal(t, "curso-de-excel", list.Posts[0].Slug)

	page2, err := store.ListPosts(2, 2, "", "")
	require.NoError(t, err)
	require.Len(t, page2.Posts, 1)
	assert.Equal(t, "curso-de-informatica", page2.Posts[0].Slug)
}

func TestListPostsByCategory(t *testing.T) {
	store := newTestStore(t)

	list, err := store.ListPosts(1, 10, "design", "")
	require.NoError(t, err)
	require.Len(t, list.Posts, 1)
	assert.Equal(t, "curso-de-sketchup", list.Posts[0].Slug)
}

func TestListPostsSearch(t *testing.T) {
	store := newTestStore(t)

	list, err := store.ListPosts(1, 10, "", "planilhas")
	require.NoError(t, err)
	require.Len(t, list.Posts, 1)
	assert.Equal(t, "curso-de-excel", list.Posts[0].Slug)

	empty, err := store.ListPosts(1, 10, "", "inexistente")
	require.NoError(t, err)
	assert.Empty(t, empty.Posts)
	assert.Equal(t, 0, empty.Total)
}

func TestGetPostBySlug(t *testing.T) {
	store := newTestStore(t)

	post, err := store.GetPostBySlug("curso-de-informatica")
	require.NoError(t, err)
	assert.Equal(t, "Curso de Informática", post.Title)
	assert.Equal(t, "corpo", post.Content)
	assert.Equal(t, 250, post.Views)

	_, err = store.GetPostBySlug("nao-existe")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestPopularSlugs(t *testing.T) {
	store := newTestStore(t)

	slugs, err := store.PopularSlugs(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"curso-de-excel", "curso-de-informatica"}, slugs)
}
