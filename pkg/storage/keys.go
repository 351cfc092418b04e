package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// Visibility selects the public or private key namespace for article media.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// MediaKey builds the expiring-bucket key for an article's media asset:
// article-media/<public|private>/<article_id>/media.<ext>
func MediaKey(vis Visibility, articleID int64, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("article-media/%s/%d/media.%s", vis, articleID, ext)
}

// FrameKey builds the frames-bucket key for one sampled frame:
// video-frames/article_<article_id>/frame_<int_seconds>.jpg
func FrameKey(articleID int64, seconds int) string {
	return fmt.Sprintf("video-frames/article_%d/frame_%d.jpg", articleID, seconds)
}

// UploadKey builds the permanent-bucket key for a user upload:
// uploaded-media/user_<user_id>/<epoch>_<filename>
func UploadKey(userID, filename string, now time.Time) string {
	return fmt.Sprintf("uploaded-media/user_%s/%d_%s", userID, now.Unix(), SanitizeFilename(filename))
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeFilename strips path components and unsafe characters from a
// client-provided filename.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "upload"
	}
	return name
}
