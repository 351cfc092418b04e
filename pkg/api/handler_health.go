package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// health reports service status and whether a browser session snapshot is
// loaded. Unauthenticated: load balancers and probes call it.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	configured := false
	source := "unavailable"
	if s.deps.Sessions != nil {
		if snap, err := s.deps.Sessions.Get(ctx); err == nil {
			configured = snap.Configured()
			source = snap.Source
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":             "ok",
		"session_configured": configured,
		"session_source":     source,
		"environment":        s.cfg.Environment,
	})
}
