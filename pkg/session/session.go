// Package session loads the shared browser-session snapshot and scopes its
// cookies to a fetch target.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mediabrief/mediabrief/pkg/models"
	"github.com/mediabrief/mediabrief/pkg/store"
)

// Loader is the store-facing dependency, satisfied by store.SessionStore.
type Loader interface {
	NewestActive(ctx context.Context, platform string) (*models.BrowserSession, error)
}

// Snapshot is a decoded, immutable session snapshot. Readers take one at
// the start of each fetch; the uploader is the only writer of new rows.
type Snapshot struct {
	Cookies   []models.SessionCookie
	Source    string
	UpdatedAt time.Time
}

// Configured reports whether the snapshot carries any cookies.
func (s *Snapshot) Configured() bool {
	return s != nil && len(s.Cookies) > 0
}

// CookiesForHost returns the subset of cookies whose domain matches the
// host, per cookie domain-matching rules.
func (s *Snapshot) CookiesForHost(host string) []models.SessionCookie {
	if s == nil {
		return nil
	}
	host = strings.ToLower(host)
	var out []models.SessionCookie
	for _, c := range s.Cookies {
		if domainMatches(host, c.Domain) {
			out = append(out, c)
		}
	}
	return out
}

// CookiesForURL is CookiesForHost on the URL's hostname.
func (s *Snapshot) CookiesForURL(rawURL string) []models.SessionCookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.CookiesForHost(u.Hostname())
}

func domainMatches(host, domain string) bool {
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Cache is a read-through snapshot cache over the session store. The
// snapshot table is written out-of-band; readers only ever pick the newest
// active row, so a short TTL is enough to see refreshes promptly.
type Cache struct {
	loader Loader
	ttl    time.Duration

	mu       sync.Mutex
	snapshot *Snapshot
	fetched  time.Time
}

// NewCache creates a snapshot cache with the given TTL.
func NewCache(loader Loader, ttl time.Duration) *Cache {
	return &Cache{loader: loader, ttl: ttl}
}

// Get returns the current snapshot, refreshing from the store when the
// cached copy is stale. A missing row yields an empty snapshot, not an
// error: fetches proceed without cookies.
func (c *Cache) Get(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil && time.Since(c.fetched) < c.ttl {
		return c.snapshot, nil
	}

	row, err := c.loader.NewestActive(ctx, models.SessionPlatformAll)
	if errors.Is(err, store.ErrNotFound) {
		c.snapshot = &Snapshot{Source: "none"}
		c.fetched = time.Now()
		return c.snapshot, nil
	}
	if err != nil {
		// Keep serving the stale copy if we have one.
		if c.snapshot != nil {
			slog.Warn("Session snapshot refresh failed, serving cached copy", "error", err)
			return c.snapshot, nil
		}
		return nil, fmt.Errorf("failed to load browser session: %w", err)
	}

	var state models.StorageState
	if err := json.Unmarshal(row.StorageState, &state); err != nil {
		return nil, fmt.Errorf("failed to decode storage state: %w", err)
	}

	c.snapshot = &Snapshot{
		Cookies:   state.Cookies,
		Source:    "database",
		UpdatedAt: row.UpdatedAt,
	}
	c.fetched = time.Now()
	return c.snapshot, nil
}

// Invalidate drops the cached snapshot so the next Get reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}
