package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMediaKey(t *testing.T) {
	assert.Equal(t, "article-media/public/42/media.mp4", MediaKey(VisibilityPublic, 42, ".mp4"))
	assert.Equal(t, "article-media/private/7/media.mp3", MediaKey(VisibilityPrivate, 7, "mp3"))
}

func TestFrameKey(t *testing.T) {
	assert.Equal(t, "video-frames/article_42/frame_90.jpg", FrameKey(42, 90))
}

func TestUploadKey(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, "uploaded-media/user_alice/1700000000_demo.mp4", UploadKey("alice", "demo.mp4", at))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"demo.mp4", "demo.mp4"},
		{"../../etc/passwd", "passwd"},
		{"my file (final).mov", "my_file_final_.mov"},
		{"..\\..\\evil.exe", "evil.exe"},
		{"", "upload"},
		{"...", "upload"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}
}
