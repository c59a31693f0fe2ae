// Package handlers provides HTTP handlers for the blog API endpoints
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/application/services"
	"github.com/escolahabilidade/habilidade-go/internal/domain/content"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// ContentHandlers contains all blog content HTTP handlers
type ContentHandlers struct {
	cacheService *services.CacheService
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
}

// NewContentHandlers creates content handlers with injected dependencies
func NewContentHandlers(cacheService *services.CacheService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *ContentHandlers {
	return &ContentHandlers{
		cacheService: cacheService,
		logger:       logger,
		perfTracker:  perfTracker,
	}
}

// GetPosts returns one page of the post listing, cache-first
func (h *ContentHandlers) GetPosts(c *gin.Context) {
	start := time.Now()

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)
	category := c.Query("category")

	marker := h.perfTracker.StartOperation("get_posts_request")
	defer marker.Complete()

	list, err := h.cacheService.GetPosts(page, limit, category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	marker.SetSuccess(true)
	h.logger.Content().Debug("Get posts request completed", "page", page, "count", len(list.Posts), "duration", time.Since(start))
	c.JSON(http.StatusOK, list)
}

// GetPost returns a single post by slug
func (h *ContentHandlers) GetPost(c *gin.Context) {
	slug := c.Param("slug")

	marker := h.perfTracker.StartOperation("get_post_request")
	defer marker.Complete()

	post, err := h.cacheService.GetPost(slug)
	if err != nil {
		if content.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, post)
}

// GetCategories returns the category list
func (h *ContentHandlers) GetCategories(c *gin.Context) {
	marker := h.perfTracker.StartOperation("get_categories_request")
	defer marker.Complete()

	categories, err := h.cacheService.GetCategories()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"count":      len(categories),
	})
}

// SearchPosts returns one page of search results
func (h *ContentHandlers) SearchPosts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)

	marker := h.perfTracker.StartOperation("search_posts_request")
	defer marker.Complete()

	list, err := h.cacheService.SearchPosts(query, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	marker.SetSuccess(true)
	h.logger.Content().Debug("Search request completed", "query", query, "results", list.Total)
	c.JSON(http.StatusOK, list)
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
