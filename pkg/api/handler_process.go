package api

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/mediabrief/mediabrief/pkg/pipeline"
	"github.com/mediabrief/mediabrief/pkg/pipeline/bus"
)

// processStream ingests a URL and streams pipeline progress as SSE.
func (s *Server) processStream(c *gin.Context) {
	rawURL := c.Query("url")
	if !validSubmissionURL(rawURL) {
		respondError(c, http.StatusBadRequest, "invalid_url", "url must be an absolute http(s) URL")
		return
	}

	opts := pipeline.Options{
		URL:            rawURL,
		Identity:       identityFrom(c),
		ForceReprocess: c.Query("force_reprocess") == "true",
		DemoVideo:      c.Query("demo_video") == "true",
	}

	b := bus.New()
	go s.deps.Runner.Run(c.Request.Context(), opts, b)
	streamBus(c, b)
}

func validSubmissionURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
