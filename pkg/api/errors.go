package api

import "github.com/gin-gonic/gin"

// respondError writes the shared non-SSE error body and aborts the chain.
func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   code,
		"message": message,
		"path":    c.Request.URL.Path,
	})
}
