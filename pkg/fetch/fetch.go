// Package fetch retrieves fully-rendered pages, escalating from plain HTTP
// to a headless browser when a site blocks bots or requires JavaScript.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/failsafehttp"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/mediabrief/mediabrief/pkg/config"
	"github.com/mediabrief/mediabrief/pkg/models"
	"github.com/mediabrief/mediabrief/pkg/session"
)

// ErrAuthRequired means the fetch reached a login wall despite injected
// cookies; the session snapshot needs a refresh.
var ErrAuthRequired = errors.New("content requires refreshed authentication")

// ErrTimeout wraps fetch timeouts so callers can classify them retryable.
var ErrTimeout = errors.New("fetch timed out")

// maxBodyBytes caps how much of a response we read into memory.
const maxBodyBytes = 10 << 20

// Result is a completed fetch.
type Result struct {
	FinalURL    string
	HTML        string
	Status      int
	Cookies     []models.SessionCookie
	UsedBrowser bool
}

// Fetcher escalates from plain HTTP to a browser fetch. Safe for concurrent
// use; at most one headless browser is kept per process.
type Fetcher struct {
	cfg      config.FetchConfig
	sessions *session.Cache
	client   *http.Client
	browser  *browserFetcher
	log      *slog.Logger
}

// New creates a Fetcher. The HTTP client retries transient failures with
// exponential backoff before the browser path is even considered.
func New(cfg config.FetchConfig, sessions *session.Cache) *Fetcher {
	retryPolicy := retrypolicy.Builder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		}).
		WithBackoff(time.Second, 10*time.Second).
		WithJitterFactor(0.2).
		WithMaxRetries(3).
		Build()

	return &Fetcher{
		cfg:      cfg,
		sessions: sessions,
		client: &http.Client{
			Timeout:   cfg.HTTPTimeout,
			Transport: failsafehttp.NewRoundTripper(http.DefaultTransport, retryPolicy),
		},
		browser: newBrowserFetcher(cfg),
		log:     slog.With("component", "fetcher"),
	}
}

// Fetch returns the fully-rendered page for a URL. Plain HTTP first; the
// browser path runs when the host is force-listed or the response trips a
// bot-block indicator.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	snap, err := f.sessions.Get(ctx)
	if err != nil {
		f.log.Warn("Proceeding without session cookies", "error", err)
		snap = &session.Snapshot{}
	}
	cookies := snap.CookiesForURL(rawURL)

	force := f.forceBrowser(rawURL)
	var plain *Result
	if !force {
		plain, err = f.fetchHTTP(ctx, rawURL, cookies)
		if err == nil && !botBlocked(plain.Status, plain.HTML) {
			if authRedirected(plain.FinalURL) {
				return nil, ErrAuthRequired
			}
			return plain, nil
		}
		if err != nil {
			f.log.Info("Plain fetch failed, escalating to browser", "url", rawURL, "error", err)
		} else {
			f.log.Info("Bot block detected, escalating to browser", "url", rawURL, "status", plain.Status)
		}
	}

	res, err := f.browser.fetch(ctx, rawURL, cookies)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: browser fetch of %s", ErrTimeout, rawURL)
		}
		if plain != nil {
			return nil, fmt.Errorf("browser fetch failed (plain HTTP status %d): %w", plain.Status, err)
		}
		return nil, fmt.Errorf("browser fetch failed: %w", err)
	}
	if authRedirected(res.FinalURL) {
		return nil, ErrAuthRequired
	}
	res.Cookies = cookies
	return res, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string, cookies []models.SessionCookie) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, rawURL)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &Result{
		FinalURL: resp.Request.URL.String(),
		HTML:     string(body),
		Status:   resp.StatusCode,
		Cookies:  cookies,
	}, nil
}

func (f *Fetcher) forceBrowser(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range f.cfg.BrowserDomains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

// Close releases the headless browser, if one was launched.
func (f *Fetcher) Close() error {
	return f.browser.close()
}
