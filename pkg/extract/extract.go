// Package extract pulls readable article text out of rendered HTML.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/markusmobius/go-trafilatura"
)

// ErrNoContent means the page yielded no readable text.
var ErrNoContent = errors.New("no readable content")

// Content is the readable form of a page.
type Content struct {
	Title     string
	Text      string
	Author    string
	SiteName  string
	WordCount int
}

// FromHTML extracts the readable text of a rendered page. The fallback
// extractors run when the main algorithm finds nothing.
func FromHTML(rawHTML, pageURL string) (*Content, error) {
	opts := trafilatura.Options{
		EnableFallback: true,
		Focus:          trafilatura.Balanced,
	}
	if u, err := url.Parse(pageURL); err == nil {
		opts.OriginalURL = u
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), opts)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	text := strings.TrimSpace(result.ContentText)
	if text == "" {
		return nil, ErrNoContent
	}

	return &Content{
		Title:     result.Metadata.Title,
		Text:      text,
		Author:    result.Metadata.Author,
		SiteName:  result.Metadata.Sitename,
		WordCount: len(strings.Fields(text)),
	}, nil
}
