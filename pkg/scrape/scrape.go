// Package scrape holds publisher-specific scrapers for sites whose content
// cannot be extracted generically.
package scrape

import (
	"errors"
	"net/url"
	"strings"
	"sync"
)

// ErrNoScraper means no registered scraper handles the host.
var ErrNoScraper = errors.New("no scraper for host")

// Result is what a publisher scraper recovers from a page: the textual
// transcript (if the publisher ships one) and the companion audio asset.
type Result struct {
	Title          string
	TranscriptText string
	AudioURL       string
}

// PublisherScraper recovers structured content from one publisher's pages.
type PublisherScraper interface {
	// Hosts returns the host suffixes this scraper claims.
	Hosts() []string
	// Scrape parses the rendered page.
	Scrape(pageURL, renderedHTML string) (*Result, error)
}

// Registry maps hosts to scrapers.
type Registry struct {
	mu       sync.RWMutex
	scrapers []PublisherScraper
}

// NewRegistry creates a registry preloaded with the built-in scrapers.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(&earningsCallScraper{})
	return r
}

// Register adds a scraper.
func (r *Registry) Register(s PublisherScraper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrapers = append(r.scrapers, s)
}

// For returns the scraper claiming the URL's host, or ErrNoScraper.
func (r *Registry) For(pageURL string) (PublisherScraper, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, ErrNoScraper
	}
	host := strings.ToLower(u.Hostname())

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.scrapers {
		for _, h := range s.Hosts() {
			if host == h || strings.HasSuffix(host, "."+h) {
				return s, nil
			}
		}
	}
	return nil, ErrNoScraper
}
