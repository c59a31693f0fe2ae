package caching

import (
	"fmt"
	"strings"
)

// Key namespaces. The invalidation cascade matches on these prefixes, so they
// are shared between the cache and the cache service.
const (
	PostsPrefix      = "blog_posts_"
	PostPrefix       = "blog_post_"
	CategoriesPrefix = "blog_categories_"
	SearchPrefix     = "blog_search_"

	// MetricsKey is where the cache persists its own stats snapshot.
	MetricsKey = "blog_cache_metrics"
)

// PostsKey builds the key for one page of the post listing.
func PostsKey(page, limit int, category string) string {
	if category == "" {
		category = "all"
	}
	return fmt.Sprintf("%s%d_%d_%s", PostsPrefix, page, limit, category)
}

// DefaultPostsKey is the first page of the unfiltered listing. The cascade
// rules target this key: stale pagination beyond page one is tolerated until
// its TTL runs out.
func DefaultPostsKey() string {
	return PostsKey(1, 10, "")
}

// PostKey builds the key for a single post by slug.
func PostKey(slug string) string {
	return PostPrefix + slug
}

// CategoriesKey is the single key holding the category list.
func CategoriesKey() string {
	return CategoriesPrefix + "all"
}

// SearchKey builds the key for one page of search results.
func SearchKey(query string, page int) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	return fmt.Sprintf("%s%s_%d", SearchPrefix, normalized, page)
}
