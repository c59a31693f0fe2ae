package middleware

import (
	"net/http"
	"strings"

	"github.com/escolahabilidade/habilidade-go/pkg/config"
	"github.com/escolahabilidade/habilidade-go/utils"
	"github.com/gin-gonic/gin"
)

// AdminAuthMiddleware guards the admin endpoints with a bearer token.
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := utils.ValidateJWT(strings.TrimPrefix(header, "Bearer "), config.JWTSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if role, _ := claims["role"].(string); role != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}

		c.Next()
	}
}

// SessionID extracts the client session identifier, if any.
func SessionID(c *gin.Context) string {
	return c.GetHeader("X-Session-ID")
}
