package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mediabrief/mediabrief/pkg/models"
	"github.com/mediabrief/mediabrief/pkg/store"
)

// listSources returns the caller's subscriptions.
func (s *Server) listSources(c *gin.Context) {
	sources, err := s.deps.Sources.ListByUser(c.Request.Context(), identityFrom(c).UserID)
	if err != nil {
		s.log.Error("Source listing failed", "error", err)
		respondError(c, http.StatusInternalServerError, "internal", "failed to list sources")
		return
	}
	if sources == nil {
		sources = []models.ContentSourceRow{}
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

type createSourceRequest struct {
	Title      string `json:"title" binding:"required"`
	URL        string `json:"url" binding:"required"`
	SourceType string `json:"source_type" binding:"required"`
}

// createSource adds a subscription for the caller.
func (s *Server) createSource(c *gin.Context) {
	var req createSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sourceType := models.SourceType(req.SourceType)
	if sourceType != models.SourceTypeNewsletter && sourceType != models.SourceTypePodcast {
		respondError(c, http.StatusBadRequest, "invalid_request", "source_type must be newsletter or podcast")
		return
	}
	if !validSubmissionURL(req.URL) {
		respondError(c, http.StatusBadRequest, "invalid_url", "url must be an absolute http(s) URL")
		return
	}

	created, err := s.deps.Sources.Create(c.Request.Context(), &models.ContentSourceRow{
		UserID:     identityFrom(c).UserID,
		Title:      req.Title,
		URL:        req.URL,
		SourceType: sourceType,
		IsActive:   true,
	})
	if err != nil {
		s.log.Error("Source creation failed", "url", req.URL, "error", err)
		respondError(c, http.StatusInternalServerError, "internal", "failed to create source")
		return
	}
	c.JSON(http.StatusCreated, created)
}

type updateSourceRequest struct {
	Title    *string `json:"title"`
	URL      *string `json:"url"`
	IsActive *bool   `json:"is_active"`
}

// updateSource patches a subscription owned by the caller.
func (s *Server) updateSource(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "id must be an integer")
		return
	}

	var req updateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.URL != nil && !validSubmissionURL(*req.URL) {
		respondError(c, http.StatusBadRequest, "invalid_url", "url must be an absolute http(s) URL")
		return
	}

	updated, err := s.deps.Sources.Update(c.Request.Context(), id, identityFrom(c).UserID, store.UpdateParams{
		Title:    req.Title,
		URL:      req.URL,
		IsActive: req.IsActive,
	})
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "source not found")
		return
	}
	if err != nil {
		s.log.Error("Source update failed", "id", id, "error", err)
		respondError(c, http.StatusInternalServerError, "internal", "failed to update source")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// deleteSource removes a subscription owned by the caller.
func (s *Server) deleteSource(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "id must be an integer")
		return
	}

	err = s.deps.Sources.Delete(c.Request.Context(), id, identityFrom(c).UserID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "source not found")
		return
	}
	if err != nil {
		s.log.Error("Source deletion failed", "id", id, "error", err)
		respondError(c, http.StatusInternalServerError, "internal", "failed to delete source")
		return
	}
	c.Status(http.StatusNoContent)
}

type discoverSourceRequest struct {
	URL string `json:"url" binding:"required"`
}

// discoverSource previews a URL as a feed source: RSS auto-discovery plus
// the newest posts.
func (s *Server) discoverSource(c *gin.Context) {
	var req discoverSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if !validSubmissionURL(req.URL) {
		respondError(c, http.StatusBadRequest, "invalid_url", "url must be an absolute http(s) URL")
		return
	}

	info, err := s.deps.Discovery.DiscoverFeed(c.Request.Context(), req.URL)
	if err != nil {
		s.log.Warn("Feed discovery failed", "url", req.URL, "error", err)
		respondError(c, http.StatusBadGateway, "discovery_failed", "could not inspect the URL")
		return
	}
	c.JSON(http.StatusOK, info)
}
