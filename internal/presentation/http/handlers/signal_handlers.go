package handlers

import (
	"net/http"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/deferred"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SignalRequest carries one loading trigger observed by the web client.
type SignalRequest struct {
	Type          string  `json:"type" binding:"required"`
	ReducedMotion bool    `json:"reducedMotion"`
	Depth         float64 `json:"depth"`
	ElementID     string  `json:"elementId"`
}

// SignalHandlers routes client loading signals into the per-session gates
type SignalHandlers struct {
	registry  *deferred.Registry
	observers *deferred.ObserverPool
	logger    *logging.ChanneledLogger
}

func NewSignalHandlers(registry *deferred.Registry, observers *deferred.ObserverPool, logger *logging.ChanneledLogger) *SignalHandlers {
	return &SignalHandlers{
		registry:  registry,
		observers: observers,
		logger:    logger,
	}
}

// PostSignal applies one trigger to the session's gates
func (h *SignalHandlers) PostSignal(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-Session-ID header"})
		return
	}

	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gates := h.registry.GetOrCreate(sessionID, req.ReducedMotion)

	switch req.Type {
	case "interaction":
		gates.Analytics.SignalInteraction()
		gates.Schema.SignalInteraction()
	case "scroll":
		gates.Analytics.SignalScroll(req.Depth)
		gates.Schema.SignalScroll(req.Depth)
	case "idle":
		gates.Analytics.SignalIdle()
		gates.Schema.SignalIdle()
	case "visible":
		if req.ElementID != "" {
			h.observers.Notify(deferred.WatchKey(sessionID, req.ElementID))
		} else {
			gates.Analytics.SignalVisible()
			gates.Schema.SignalVisible()
		}
	case "heartbeat":
		gates.Analytics.Touch()
		gates.Schema.Touch()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown signal type"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analyticsLoaded": gates.Analytics.Loaded(),
		"schemaLoaded":    gates.Schema.Loaded(),
	})
}

// GetStatus reports the gate state for the session
func (h *SignalHandlers) GetStatus(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	gates, ok := h.registry.Get(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no gates for session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analyticsLoaded": gates.Analytics.Loaded(),
		"schemaLoaded":    gates.Schema.Loaded(),
		"lastActivity":    gates.Analytics.LastActivity(),
	})
}
