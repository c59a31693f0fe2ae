package handlers

import (
	"net/http"

	"github.com/escolahabilidade/habilidade-go/internal/infrastructure/observability/logging"
	"github.com/escolahabilidade/habilidade-go/pkg/config"
	"github.com/escolahabilidade/habilidade-go/utils"
	"github.com/gin-gonic/gin"
)

// LoginRequest carries the admin password.
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// AuthHandlers exposes admin authentication
type AuthHandlers struct {
	logger *logging.ChanneledLogger
}

func NewAuthHandlers(logger *logging.ChanneledLogger) *AuthHandlers {
	return &AuthHandlers{logger: logger}
}

// PostLogin exchanges the admin password for a bearer token
func (h *AuthHandlers) PostLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if config.AdminPasswordHash == "" || !utils.CheckPassword(config.AdminPasswordHash, req.Password) {
		h.logger.Auth().Warn("Failed admin login attempt", "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := utils.GenerateAdminToken(config.JWTSecret, config.TokenTTL)
	if err != nil {
		h.logger.LogError(logging.ChannelAuth, "generate_token", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	h.logger.Auth().Info("Admin login", "ip", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresIn": int(config.TokenTTL.Seconds())})
}

// GetStatus validates the current token
func (h *AuthHandlers) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": true})
}
