// Package content provides the SQLite-backed blog content store. It is the
// backend that cache misses and warming passes read through.
package content

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	domain "github.com/escolahabilidade/habilidade-go/internal/domain/content"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	_ "github.com/mattn/go-sqlite3"
)

// Store reads posts and categories from the local content database.
type Store struct {
	db     *sql.DB
	logger *logging.ChanneledLogger
}

// NewStore opens the content database at path and ensures the schema exists.
func NewStore(path string, logger *logging.ChanneledLogger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create content db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open content db: %w", err)
	}

	store := &Store{db: db, logger: logger}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Content().Debug("Content store opened", "path", path)
	return store, nil
}

func (s *Store) createSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			excerpt TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			category_id TEXT REFERENCES categories(id),
			views INTEGER NOT NULL DEFAULT 0,
			published_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_category ON posts(category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(published_at DESC)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create content schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetCategories returns all categories with their post counts.
func (s *Store) GetCategories() ([]domain.Category, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.slug, c.name, COUNT(p.id)
		FROM categories c
		LEFT JOIN posts p ON p.category_id = c.id
		GROUP BY c.id
		ORDER BY c.name`)
	if err != nil {
		return nil, domain.NewBackend("get_categories", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.PostCount); err != nil {
			return nil, domain.NewBackend("get_categories", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewBackend("get_categories", err)
	}
	return categories, nil
}

// ListPosts returns one page of posts, optionally filtered by category slug
// or a search term over title and excerpt.
func (s *Store) ListPosts(page, limit int, category, search string) (*domain.PostList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if category != "" {
		where = append(where, "c.slug = ?")
		args = append(args, category)
	}
	if search != "" {
		where = append(where, "(p.title LIKE ? OR p.excerpt LIKE ?)")
		term := "%" + strings.TrimSpace(search) + "%"
		args = append(args, term, term)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM posts p LEFT JOIN categories c ON c.id = p.category_id` + whereClause
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, domain.NewBackend("list_posts", err)
	}

	query := `
		SELECT p.id, p.slug, p.title, p.excerpt, p.image_url,
		       COALESCE(p.category_id, ''), p.views, p.published_at, p.updated_at
		FROM posts p LEFT JOIN categories c ON c.id = p.category_id` +
		whereClause + `
		ORDER BY p.published_at DESC
		LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, domain.NewBackend("list_posts", err)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0, limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, domain.NewBackend("list_posts", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewBackend("list_posts", err)
	}

	totalPages := (total + limit - 1) / limit
	return &domain.PostList{
		Posts:      posts,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// GetPostBySlug returns a single post including its body.
func (s *Store) GetPostBySlug(slug string) (*domain.Post, error) {
	row := s.db.QueryRow(`
		SELECT id, slug, title, excerpt, content, image_url,
		       COALESCE(category_id, ''), views, published_at, updated_at
		FROM posts WHERE slug = ?`, slug)

	var p domain.Post
	var publishedAt, updatedAt int64
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Content, &p.ImageURL,
		&p.CategoryID, &p.Views, &publishedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFound("post", slug)
	}
	if err != nil {
		return nil, domain.NewBackend("get_post", err)
	}

	p.PublishedAt = time.Unix(publishedAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

// PopularSlugs returns the most-viewed post slugs, for prefetch warming.
func (s *Store) PopularSlugs(limit int) ([]string, error) {
	rows, err := s.db.Query(`SELECT slug FROM posts ORDER BY views DESC LIMIT ?`, limit)
	if err != nil {
		return nil, domain.NewBackend("popular_slugs", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, domain.NewBackend("popular_slugs", err)
		}
		slugs = append(slugs, slug)
	}
	return slugs, nil
}

// scanPost reads a listing row (no body column).
func scanPost(rows *sql.Rows) (domain.Post, error) {
	var p domain.Post
	var publishedAt, updatedAt int64
	err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.ImageURL,
		&p.CategoryID, &p.Views, &publishedAt, &updatedAt)
	if err != nil {
		return p, err
	}
	p.PublishedAt = time.Unix(publishedAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return p, nil
}
