package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mediabrief/mediabrief/pkg/models"
	"github.com/mediabrief/mediabrief/pkg/store"
)

// checkPodcasts runs a listening-history sweep immediately.
func (s *Server) checkPodcasts(c *gin.Context) {
	summary, err := s.deps.Discovery.CheckHistory(c.Request.Context())
	if err != nil {
		s.log.Error("Podcast check failed", "error", err)
		respondError(c, http.StatusInternalServerError, "internal", "podcast check failed")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// checkPosts runs a feed sweep immediately.
func (s *Server) checkPosts(c *gin.Context) {
	summary, err := s.deps.Discovery.CheckFeeds(c.Request.Context())
	if err != nil {
		s.log.Error("Post check failed", "error", err)
		respondError(c, http.StatusInternalServerError, "internal", "post check failed")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// discoveredPodcasts lists queued podcast episodes.
func (s *Server) discoveredPodcasts(c *gin.Context) {
	s.listQueue(c, models.QueueContentPodcast)
}

// discoveredPosts lists queued articles.
func (s *Server) discoveredPosts(c *gin.Context) {
	s.listQueue(c, models.QueueContentArticle)
}

func (s *Server) listQueue(c *gin.Context, contentType models.QueueContentType) {
	status := models.QueueStatus(c.Query("status"))
	if status != "" && !validQueueStatus(status) {
		respondError(c, http.StatusBadRequest, "invalid_request", "unknown status filter")
		return
	}

	items, err := s.deps.Queue.List(c.Request.Context(), contentType, status, intQuery(c, "limit", 50))
	if err != nil {
		s.log.Error("Queue listing failed", "content_type", string(contentType), "error", err)
		respondError(c, http.StatusInternalServerError, "internal", "failed to list queue")
		return
	}
	if items == nil {
		items = []models.QueueItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type queueStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// updateQueueStatus transitions a discovered row, e.g. to processing or
// skipped once a user acts on it.
func (s *Server) updateQueueStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "id must be an integer")
		return
	}

	var req queueStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	status := models.QueueStatus(strings.ToLower(req.Status))
	if !validQueueStatus(status) {
		respondError(c, http.StatusBadRequest, "invalid_request", "unknown status")
		return
	}

	err = s.deps.Queue.UpdateStatus(c.Request.Context(), id, status)
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, "not_found", "queue item not found")
		return
	}
	if err != nil {
		s.log.Error("Queue status update failed", "id", id, "error", err)
		respondError(c, http.StatusInternalServerError, "internal", "failed to update status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": status})
}

func validQueueStatus(s models.QueueStatus) bool {
	switch s {
	case models.QueueStatusDiscovered, models.QueueStatusQueued, models.QueueStatusProcessing,
		models.QueueStatusCompleted, models.QueueStatusFailed, models.QueueStatusSkipped:
		return true
	}
	return false
}
