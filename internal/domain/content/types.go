// Package content defines the blog content entities served by the cache layer.
package content

import "time"

// Post is a single blog post.
type Post struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Excerpt     string    `json:"excerpt"`
	Content     string    `json:"content,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CategoryID  string    `json:"categoryId,omitempty"`
	Views       int       `json:"views"`
	PublishedAt time.Time `json:"publishedAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Category groups posts.
type Category struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	PostCount int    `json:"postCount"`
}

// PostList is one page of posts plus pagination metadata.
type PostList struct {
	Posts      []Post `json:"posts"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	Total      int    `json:"total"`
	TotalPages int    `json:"totalPages"`
}
