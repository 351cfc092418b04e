package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
)

// maxDownloadBytes caps direct asset downloads at 2 GiB.
const maxDownloadBytes = 2 << 30

// download streams a direct asset to a temp file.
func (e *Extractor) download(ctx context.Context, assetURL string, kind Kind) (*Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid media URL: %w", err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download returned status %d", resp.StatusCode)
	}

	dir, err := os.MkdirTemp("", "mediabrief-dl-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	dest := dir + "/media" + extensionFor(assetURL, resp.Header.Get("Content-Type"))
	f, err := os.Create(dest)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(resp.Body, maxDownloadBytes))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("media download interrupted: %w", err)
	}

	e.log.Info("Downloaded media asset", "url", assetURL, "bytes", n, "kind", kind)

	return &Info{
		Kind:         kind,
		URL:          assetURL,
		DownloadPath: dest,
		TempDir:      dir,
		ContentType:  contentTypeOf(resp.Header.Get("Content-Type"), assetURL, kind),
		SizeBytes:    n,
	}, nil
}

// extensionFor picks a file extension from the URL path, falling back to
// the response content type.
func extensionFor(assetURL, contentType string) string {
	if idx := strings.IndexAny(assetURL, "?#"); idx >= 0 {
		assetURL = assetURL[:idx]
	}
	if ext := path.Ext(assetURL); ext != "" && len(ext) <= 5 {
		return ext
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if exts, _ := mime.ExtensionsByType(mt); len(exts) > 0 {
			return exts[0]
		}
	}
	return ".bin"
}

// contentTypeOf normalizes the content type, guessing from the URL when
// the server sent something generic.
func contentTypeOf(header, assetURL string, kind Kind) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil &&
		mt != "application/octet-stream" && mt != "binary/octet-stream" {
		return mt
	}
	if guessed := mime.TypeByExtension(extensionFor(assetURL, "")); guessed != "" {
		return guessed
	}
	if kind == KindAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}
