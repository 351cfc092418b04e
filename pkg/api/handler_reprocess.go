package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mediabrief/mediabrief/pkg/pipeline"
	"github.com/mediabrief/mediabrief/pkg/pipeline/bus"
	"github.com/mediabrief/mediabrief/pkg/store"
)

type reprocessRequest struct {
	ArticleID int64    `json:"article_id" binding:"required"`
	IsPrivate bool     `json:"is_private"`
	Steps     []string `json:"steps" binding:"required"`
}

// reprocessStream re-runs selected pipeline steps on a stored article and
// streams per-step progress as SSE.
func (s *Server) reprocessStream(c *gin.Context) {
	var req reprocessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	steps, err := pipeline.ParseSteps(req.Steps)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_steps", err.Error())
		return
	}

	opts := pipeline.ReprocessOptions{
		ArticleID: req.ArticleID,
		IsPrivate: req.IsPrivate,
		Steps:     steps,
	}

	b := bus.New()
	go s.deps.Runner.Reprocess(c.Request.Context(), opts, b)
	streamBus(c, b)
}

// reprocessInfo reports which steps are available for an article.
func (s *Server) reprocessInfo(c *gin.Context) {
	articleID, err := strconv.ParseInt(c.Query("article_id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "article_id must be an integer")
		return
	}
	isPrivate := c.Query("is_private") == "true"

	statuses, err := s.deps.Runner.ReprocessInfo(c.Request.Context(), articleID, isPrivate)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "article not found")
		return
	}
	if err != nil {
		s.log.Error("Reprocess info failed", "article_id", articleID, "error", err)
		respondError(c, http.StatusInternalServerError, "internal", "failed to load article")
		return
	}

	c.JSON(http.StatusOK, gin.H{"article_id": articleID, "is_private": isPrivate, "steps": statuses})
}

// reprocessList pages articles for the reprocess picker.
func (s *Server) reprocessList(c *gin.Context) {
	search := c.Query("search")
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	var (
		items []store.ListItem
		err   error
	)
	if c.Query("is_private") == "true" {
		orgID := identityFrom(c).OrganizationID
		if orgID == "" {
			respondError(c, http.StatusForbidden, "forbidden", "token has no organization")
			return
		}
		items, err = s.deps.Private.List(c.Request.Context(), orgID, search, limit, offset)
	} else {
		items, err = s.deps.Articles.List(c.Request.Context(), search, limit, offset)
	}
	if err != nil {
		s.log.Error("Article listing failed", "error", err)
		respondError(c, http.StatusInternalServerError, "internal", "failed to list articles")
		return
	}

	if items == nil {
		items = []store.ListItem{}
	}
	c.JSON(http.StatusOK, gin.H{"articles": items, "limit": limit, "offset": offset})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
