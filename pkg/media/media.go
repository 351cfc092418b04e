// Package media resolves the playable asset behind a classified URL and
// downloads it for transcription and frame sampling.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/mediabrief/mediabrief/pkg/classify"
	"github.com/mediabrief/mediabrief/pkg/models"
)

// Kind is the broad media type of the resolved asset.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// ErrNoMedia means the content carries no playable asset; the pipeline
// continues text-only.
var ErrNoMedia = errors.New("no media asset found")

// Info describes a resolved media asset. DownloadPath points into TempDir;
// the caller removes TempDir when done.
type Info struct {
	Kind            Kind
	URL             string
	Title           string
	DownloadPath    string
	TempDir         string
	ContentType     string
	SizeBytes       int64
	DurationSeconds float64
}

// Cleanup removes the temp download directory. Safe on nil and on assets
// that were never downloaded.
func (i *Info) Cleanup() {
	if i == nil || i.TempDir == "" {
		return
	}
	if err := os.RemoveAll(i.TempDir); err != nil {
		slog.Warn("Failed to remove media temp dir", "dir", i.TempDir, "error", err)
	}
}

// Extractor resolves and downloads media assets.
type Extractor struct {
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

// NewExtractor builds an extractor using the given HTTP client for direct
// asset downloads.
func NewExtractor(client *http.Client, userAgent string) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Extractor{
		client:    client,
		userAgent: userAgent,
		log:       slog.With("component", "media"),
	}
}

// Extract resolves the asset for a classification and downloads it to a
// temp file. pageHTML is consulted for article-embedded audio. Returns
// ErrNoMedia when the content is text-only.
func (e *Extractor) Extract(ctx context.Context, cls classify.Classification, pageURL, pageHTML string) (*Info, error) {
	switch {
	case cls.Kind == classify.KindDocument:
		// Documents are text content, not playable media.
		return nil, ErrNoMedia

	case cls.IsDirect():
		kind := KindVideo
		if cls.Kind == classify.KindDirectAudio {
			kind = KindAudio
		}
		target := cls.DirectMediaURL
		if target == "" {
			target = pageURL
		}
		return e.download(ctx, target, kind)

	case cls.Kind == classify.KindHostedPodcast:
		return e.platformDownload(ctx, pageURL, KindAudio)

	case cls.Platform != "":
		return e.platformDownload(ctx, platformWatchURL(cls, pageURL), KindVideo)

	default:
		if audioURL := firstEmbeddedAudio(pageHTML, pageURL); audioURL != "" {
			return e.download(ctx, audioURL, KindAudio)
		}
		return nil, ErrNoMedia
	}
}

// Download fetches a remote asset the caller already resolved, e.g. a
// stored media object being re-read for reprocessing.
func (e *Extractor) Download(ctx context.Context, assetURL string, kind Kind) (*Info, error) {
	return e.download(ctx, assetURL, kind)
}

// Uploader is the storage surface Store needs.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// Store uploads a downloaded asset long-term and returns the pointer to
// record on the article row.
func Store(ctx context.Context, st Uploader, info *Info, bucket, key string, permanent bool) (*models.MediaPointer, error) {
	f, err := os.Open(info.DownloadPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open downloaded media: %w", err)
	}
	defer f.Close()

	if err := st.Upload(ctx, bucket, key, f, info.ContentType); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	size := info.SizeBytes
	mime := info.ContentType
	ptr := &models.MediaPointer{
		Bucket:      &bucket,
		Path:        &key,
		UploadedAt:  &now,
		MimeType:    &mime,
		SizeBytes:   &size,
		IsPermanent: permanent,
	}
	if info.DurationSeconds > 0 {
		d := int(info.DurationSeconds)
		ptr.DurationSeconds = &d
	}
	return ptr, nil
}

// platformWatchURL rebuilds the canonical watch URL for a platform embed so
// the downloader gets a stable target.
func platformWatchURL(cls classify.Classification, pageURL string) string {
	if cls.Platform == "youtube" && cls.PlatformID != "" {
		return "https://www.youtube.com/watch?v=" + cls.PlatformID
	}
	return pageURL
}

// firstEmbeddedAudio finds the first <audio> (or nested <source>) asset in
// an article page, resolved against the page URL.
func firstEmbeddedAudio(pageHTML, pageURL string) string {
	if pageHTML == "" {
		return ""
	}
	doc, err := html.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return ""
	}
	base, _ := url.Parse(pageURL)

	var found string
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inAudio bool) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "audio":
				if src := attr(n, "src"); src != "" {
					found = resolve(base, src)
					return
				}
				inAudio = true
			case "source":
				if inAudio {
					if src := attr(n, "src"); src != "" {
						found = resolve(base, src)
						return
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inAudio)
		}
	}
	walk(doc, false)
	return found
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
