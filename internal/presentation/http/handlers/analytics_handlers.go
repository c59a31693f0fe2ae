// Package handlers provides HTTP handlers for analytics endpoints
package handlers

import (
	"net/http"
	"time"

	"github.com/escolahabilidade/habilidade-go/internal/application/services"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/performance"
	"github.com/escolahabilidade/habilidade-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// EventRequest is one client-side event.
type EventRequest struct {
	Name  string         `json:"event" binding:"required"`
	Props map[string]any `json:"props"`
}

// EventsRequest is the batch body posted by the web client.
type EventsRequest struct {
	Events []EventRequest `json:"events" binding:"required"`
}

// ConsentRequest records the visitor's analytics choice.
type ConsentRequest struct {
	Granted *bool `json:"granted" binding:"required"`
}

// PostViewRequest tracks a single blog post view.
type PostViewRequest struct {
	Slug       string `json:"slug" binding:"required"`
	Category   string `json:"category"`
	TimeOnPage int    `json:"timeOnPage"`
}

// AnalyticsHandlers contains all analytics HTTP handlers
type AnalyticsHandlers struct {
	analyticsService *services.AnalyticsService
	logger           *logging.ChanneledLogger
	perfTracker      *performance.Tracker
}

// NewAnalyticsHandlers creates analytics handlers with injected dependencies
func NewAnalyticsHandlers(analyticsService *services.AnalyticsService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		analyticsService: analyticsService,
		logger:           logger,
		perfTracker:      perfTracker,
	}
}

// PostEvents queues a batch of client events
func (h *AnalyticsHandlers) PostEvents(c *gin.Context) {
	var req EventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	marker := h.perfTracker.StartOperation("post_events_request")
	defer marker.Complete()

	sessionID := middleware.SessionID(c)
	for _, event := range req.Events {
		props := event.Props
		if props == nil {
			props = map[string]any{}
		}
		props["userAgent"] = services.SanitizeUserAgent(c.Request.UserAgent())
		h.analyticsService.Track(event.Name, props, sessionID)
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusAccepted, gin.H{"queued": len(req.Events)})
}

// PostView tracks a single blog post view
func (h *AnalyticsHandlers) PostView(c *gin.Context) {
	var req PostViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.analyticsService.TrackPostView(req.Slug, req.Category, middleware.SessionID(c), time.Duration(req.TimeOnPage)*time.Second)
	c.JSON(http.StatusAccepted, gin.H{"tracked": true})
}

// PostConsent persists the visitor's analytics consent choice
func (h *AnalyticsHandlers) PostConsent(c *gin.Context) {
	var req ConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.analyticsService.SetConsent(*req.Granted)
	c.JSON(http.StatusOK, gin.H{"granted": *req.Granted})
}

// GetConsent reports the current consent state
func (h *AnalyticsHandlers) GetConsent(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"granted": h.analyticsService.HasConsent()})
}

// GetSummary aggregates the stored events for the admin dashboard
func (h *AnalyticsHandlers) GetSummary(c *gin.Context) {
	marker := h.perfTracker.StartOperation("analytics_summary_request")
	defer marker.Complete()

	summary := h.analyticsService.Summary()

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, summary)
}
