package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabrief/mediabrief/pkg/classify"
)

func TestFirstEmbeddedAudio(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "audio src attribute",
			html:     `<html><body><audio src="/episodes/42.mp3"></audio></body></html>`,
			expected: "https://example.com/episodes/42.mp3",
		},
		{
			name:     "nested source element",
			html:     `<html><body><audio><source src="https://cdn.example.com/ep.m4a" type="audio/mp4"></audio></body></html>`,
			expected: "https://cdn.example.com/ep.m4a",
		},
		{
			name:     "source outside audio ignored",
			html:     `<html><body><video><source src="/clip.mp4"></video></body></html>`,
			expected: "",
		},
		{
			name:     "no media",
			html:     `<html><body><p>just text</p></body></html>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := firstEmbeddedAudio(tt.html, "https://example.com/post")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExtractDirectAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("fake mp3 bytes"))
	}))
	defer srv.Close()

	e := NewExtractor(srv.Client(), "test-agent")
	cls := classify.Classification{
		Kind:           classify.KindDirectAudio,
		Platform:       "direct",
		DirectMediaURL: srv.URL + "/episode.mp3",
	}

	info, err := e.Extract(context.Background(), cls, srv.URL+"/episode.mp3", "")
	require.NoError(t, err)
	defer info.Cleanup()

	assert.Equal(t, KindAudio, info.Kind)
	assert.Equal(t, "audio/mpeg", info.ContentType)
	assert.Equal(t, int64(len("fake mp3 bytes")), info.SizeBytes)

	data, err := os.ReadFile(info.DownloadPath)
	require.NoError(t, err)
	assert.Equal(t, "fake mp3 bytes", string(data))

	info.Cleanup()
	_, err = os.Stat(info.TempDir)
	assert.True(t, os.IsNotExist(err))
}

func TestExtractDocumentHasNoMedia(t *testing.T) {
	e := NewExtractor(nil, "")
	cls := classify.Classification{Kind: classify.KindDocument, Platform: "direct"}

	_, err := e.Extract(context.Background(), cls, "https://example.com/report.pdf", "")
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestExtractArticleWithoutAudio(t *testing.T) {
	e := NewExtractor(nil, "")
	cls := classify.Classification{Kind: classify.KindArticleHTML, Platform: "generic"}

	_, err := e.Extract(context.Background(), cls, "https://example.com/post", "<html><body><p>words</p></body></html>")
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestExtractDirectDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	e := NewExtractor(srv.Client(), "")
	cls := classify.Classification{
		Kind:           classify.KindDirectVideo,
		Platform:       "direct",
		DirectMediaURL: srv.URL + "/clip.mp4",
	}

	_, err := e.Extract(context.Background(), cls, srv.URL+"/clip.mp4", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestPlatformWatchURL(t *testing.T) {
	cls := classify.Classification{Kind: classify.KindYouTubeWatch, Platform: "youtube", PlatformID: "dQw4w9WgXcQ"}
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", platformWatchURL(cls, "https://youtu.be/dQw4w9WgXcQ"))

	vimeo := classify.Classification{Kind: classify.KindVimeoEmbed, Platform: "vimeo", PlatformID: "76979871"}
	assert.Equal(t, "https://vimeo.com/76979871", platformWatchURL(vimeo, "https://vimeo.com/76979871"))
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".mp3", extensionFor("https://cdn.example.com/ep.mp3?sig=abc", ""))
	assert.Equal(t, ".mp4", extensionFor("https://cdn.example.com/v/clip.mp4", "application/octet-stream"))
	assert.Equal(t, ".bin", extensionFor("https://cdn.example.com/stream", "not-a-type"))
}
