package api

import "github.com/gin-gonic/gin"

// securityHeaders sets a small set of defensive response headers on every
// response, grounded on the teacher's equivalent echo middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}
