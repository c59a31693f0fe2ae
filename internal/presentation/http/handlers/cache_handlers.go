package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/escolahabilidade/habilidade-go/internal/application/services"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/messaging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// InvalidateRequest drops one cache key.
type InvalidateRequest struct {
	Key       string `json:"key" binding:"required"`
	Immediate bool   `json:"immediate"`
	Cascade   bool   `json:"cascade"`
}

// SetLogLevelRequest changes one log channel's level at runtime.
type SetLogLevelRequest struct {
	Channel string `json:"channel" binding:"required"`
	Level   string `json:"level" binding:"required"`
}

// CacheHandlers exposes the admin cache endpoints and the websocket event
// stream.
type CacheHandlers struct {
	cacheService *services.CacheService
	broadcaster  *messaging.Broadcaster
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
	upgrader     websocket.Upgrader
}

func NewCacheHandlers(cacheService *services.CacheService, broadcaster *messaging.Broadcaster, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *CacheHandlers {
	return &CacheHandlers{
		cacheService: cacheService,
		broadcaster:  broadcaster,
		logger:       logger,
		perfTracker:  perfTracker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" ||
					strings.Contains(origin, "escolahabilidade.com") ||
					strings.Contains(origin, "localhost") ||
					strings.Contains(origin, "127.0.0.1")
			},
		},
	}
}

// GetStats returns the tier statistics
func (h *CacheHandlers) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cacheService.GetStats())
}

// PostInvalidate queues or applies one invalidation
func (h *CacheHandlers) PostInvalidate(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.cacheService.Invalidate(req.Key, services.InvalidateOptions{
		Immediate: req.Immediate,
		Cascade:   req.Cascade,
	})

	status := http.StatusAccepted
	if req.Immediate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"key": req.Key, "queueDepth": h.cacheService.QueueDepth()})
}

// PostClear empties every tier
func (h *CacheHandlers) PostClear(c *gin.Context) {
	h.cacheService.ClearAll()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// PostWarm kicks off a warming pass
func (h *CacheHandlers) PostWarm(c *gin.Context) {
	go h.cacheService.WarmCache(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"warming": true})
}

// StreamEvents upgrades to a websocket and pushes cache events until the
// client disconnects
func (h *CacheHandlers) StreamEvents(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.LogError(logging.ChannelWS, "ws_upgrade", err, nil)
		return
	}

	id, events := h.broadcaster.AddClient()
	defer func() {
		h.broadcaster.RemoveClient(id)
		conn.Close()
	}()

	// Reader goroutine: we never expect client messages, but reading is how
	// close frames are noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.WS().Debug("Websocket write failed, dropping client", "clientId", id, "error", err.Error())
				return
			}
		}
	}
}

// GetLogLevels reports the current level of every log channel
func (h *CacheHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, h.logger.GetChannelLevels())
}

// SetLogLevel changes one channel's level at runtime
func (h *CacheHandlers) SetLogLevel(c *gin.Context) {
	var req SetLogLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var level slog.Level
	switch strings.ToLower(req.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown level"})
		return
	}

	if err := h.logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": req.Channel, "level": req.Level})
}
