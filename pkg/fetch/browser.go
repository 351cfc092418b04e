package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/mediabrief/mediabrief/pkg/config"
	"github.com/mediabrief/mediabrief/pkg/models"
)

// Selectors that mark the page's semantic content as rendered.
const contentSelector = "article, main, [role=main]"

// browserFetcher owns the lazily-launched headless Chromium instance.
type browserFetcher struct {
	cfg config.FetchConfig

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func newBrowserFetcher(cfg config.FetchConfig) *browserFetcher {
	return &browserFetcher{cfg: cfg}
}

// connect launches Chromium on first use and reuses it afterwards.
func (b *browserFetcher) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	b.launcher = l
	b.browser = browser
	return browser, nil
}

// fetch renders the page in an isolated stealth page: injects the session
// cookies, waits for network idle plus a semantic content selector, scrolls
// to trigger lazy loading, and reads the final DOM.
func (b *browserFetcher) fetch(ctx context.Context, rawURL string, cookies []models.SessionCookie) (*Result, error) {
	browser, err := b.connect()
	if err != nil {
		return nil, err
	}

	if len(cookies) > 0 {
		if err := browser.SetCookies(cookieParams(cookies)); err != nil {
			return nil, fmt.Errorf("failed to inject cookies: %w", err)
		}
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to open stealth page: %w", err)
	}
	defer func() { _ = page.Close() }()

	timeout := b.cfg.BrowserTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	page = page.Context(ctx).Timeout(timeout)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      b.cfg.UserAgent,
		AcceptLanguage: "en-US,en",
	}); err != nil {
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: 1440, Height: 900, DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if err := page.Navigate(rawURL); err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("page load failed: %w", err)
	}
	_ = page.WaitStable(time.Second)

	// Best-effort: many pages never render a semantic container.
	if el, err := page.Timeout(5 * time.Second).Element(contentSelector); err == nil && el != nil {
		_ = el.WaitVisible()
	}

	// Scroll to the bottom to trigger lazy-loaded content, then settle.
	if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err == nil {
		_ = page.WaitStable(500 * time.Millisecond)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read DOM: %w", err)
	}

	info, err := page.Info()
	finalURL := rawURL
	if err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &Result{
		FinalURL:    finalURL,
		HTML:        html,
		Status:      200,
		UsedBrowser: true,
	}, nil
}

func cookieParams(cookies []models.SessionCookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	return params
}

func (b *browserFetcher) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	b.browser = nil
	b.launcher = nil
	return err
}
