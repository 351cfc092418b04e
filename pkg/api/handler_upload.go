package api

import (
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediabrief/mediabrief/pkg/storage"
)

// maxUploadBytes bounds multipart uploads.
const maxUploadBytes = 2 << 30

// uploadMedia stores a user-supplied media file in the permanent bucket
// and returns its public URL.
func (s *Server) uploadMedia(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "multipart field 'file' is required")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(header.Filename)); byExt != "" {
			contentType = byExt
		} else {
			contentType = "application/octet-stream"
		}
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "failed to read uploaded file")
		return
	}
	defer file.Close()

	key := storage.UploadKey(identityFrom(c).UserID, header.Filename, time.Now())
	bucket := s.deps.Objects.PermanentBucket()

	if err := s.deps.Objects.Upload(c.Request.Context(), bucket, key, file, contentType); err != nil {
		s.log.Error("Media upload failed", "key", key, "error", err)
		respondError(c, http.StatusInternalServerError, "internal", "failed to store media")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":          s.deps.Objects.PublicURL(bucket, key),
		"storage_path": key,
		"media_type":   contentType,
	})
}
