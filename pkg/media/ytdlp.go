package media

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/lrstanley/go-ytdlp"
)

// platformDownload pulls a platform-hosted asset with yt-dlp: best audio
// for podcast episodes, an mp4 rendition for video embeds.
func (e *Extractor) platformDownload(ctx context.Context, watchURL string, kind Kind) (*Info, error) {
	dir, err := os.MkdirTemp("", "mediabrief-ytdlp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	dl := ytdlp.New().
		NoPlaylist().
		NoProgress().
		PrintJSON().
		Output(filepath.Join(dir, "media.%(ext)s"))

	if kind == KindAudio {
		dl = dl.ExtractAudio().AudioFormat("mp3").Format("bestaudio/best")
	} else {
		dl = dl.Format("bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best")
	}

	result, err := dl.Run(ctx, watchURL)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("platform download failed: %w", err)
	}

	info := &Info{Kind: kind, URL: watchURL, TempDir: dir}
	if extracted, err := result.GetExtractedInfo(); err == nil && len(extracted) > 0 {
		meta := extracted[0]
		if meta.Title != nil {
			info.Title = *meta.Title
		}
		if meta.Duration != nil {
			info.DurationSeconds = *meta.Duration
		}
	}

	path, err := downloadedFile(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	info.DownloadPath = path
	info.ContentType = guessContentType(path, kind)
	if st, err := os.Stat(path); err == nil {
		info.SizeBytes = st.Size()
	}

	e.log.Info("Downloaded platform media",
		"url", watchURL, "kind", kind, "bytes", info.SizeBytes, "duration", info.DurationSeconds)
	return info, nil
}

// downloadedFile finds the single media file yt-dlp wrote; the extension
// depends on the chosen format.
func downloadedFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read download dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("downloader produced no output file")
}

func guessContentType(path string, kind Kind) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	if kind == KindAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}
