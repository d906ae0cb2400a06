package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SharedSecretHeader is the well-known header name admission checks against.
// Case-sensitive name, exact value match (spec.md §4.7).
const SharedSecretHeader = "X-Executor-Token"

// authMiddleware rejects the handshake with 401 before it ever reaches
// handleWS if the shared secret header is missing or mismatched.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.SharedSecret == "" || c.GetHeader(SharedSecretHeader) != s.opts.SharedSecret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication failed"})
			return
		}
		c.Next()
	}
}
