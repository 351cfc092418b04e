package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"

	"github.com/mediabrief/mediabrief/pkg/classify"
	"github.com/mediabrief/mediabrief/pkg/models"
)

// maxProbeBytes bounds how much of a page is read during auto-discovery.
const maxProbeBytes = 512 * 1024

// commonFeedPaths are tried when a page neither is a feed nor links one.
var commonFeedPaths = []string{"/feed", "/rss", "/atom.xml", "/feed.xml", "/rss.xml", "/index.xml"}

// CheckFeeds sweeps every active newsletter subscription and queues new
// posts. Per-source failures are tolerated.
func (s *Service) CheckFeeds(ctx context.Context) (Summary, error) {
	sources, err := s.sources.ListActiveByType(ctx, models.SourceTypeNewsletter)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list newsletter sources: %w", err)
	}

	var summary Summary
	for _, src := range sources {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.SourcesChecked++

		added, err := s.sweepFeed(ctx, src)
		if err != nil {
			s.log.Warn("Feed sweep failed", "source", src.URL, "error", err)
			summary.Failed++
			continue
		}
		summary.NewItems += added

		if err := s.sources.TouchChecked(ctx, src.ID, time.Now()); err != nil {
			s.log.Warn("Failed to record feed check", "source_id", src.ID, "error", err)
		}
	}

	s.log.Info("Feed sweep finished",
		"sources", summary.SourcesChecked, "new_items", summary.NewItems, "failed", summary.Failed)
	return summary, nil
}

func (s *Service) sweepFeed(ctx context.Context, src models.ContentSourceRow) (int, error) {
	feedURL, _, err := s.resolveFeed(ctx, src.URL)
	if err != nil {
		return 0, err
	}
	if feedURL == "" {
		return 0, fmt.Errorf("no feed found at %s", src.URL)
	}

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to parse feed: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -s.cfg.PostRecencyDays)
	added := 0
	for _, item := range recentEntries(feed, s.cfg.MaxEntriesPerFeed) {
		if item.Link == "" {
			continue
		}
		if item.PublishedParsed != nil && item.PublishedParsed.Before(cutoff) {
			continue
		}

		inserted, err := s.queue.Insert(ctx, &models.QueueItem{
			URL:           classify.Canonical(item.Link),
			Title:         item.Title,
			ContentType:   models.QueueContentArticle,
			ChannelTitle:  feed.Title,
			ChannelURL:    src.URL,
			Platform:      "web",
			SourceFeed:    &feedURL,
			PublishedDate: item.PublishedParsed,
			Status:        models.QueueStatusDiscovered,
		})
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}
	return added, nil
}

// recentEntries returns the newest limit items, preferring published dates
// over feed order.
func recentEntries(feed *gofeed.Feed, limit int) []*gofeed.Item {
	items := make([]*gofeed.Item, len(feed.Items))
	copy(items, feed.Items)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].PublishedParsed, items[j].PublishedParsed
		if a == nil || b == nil {
			return false
		}
		return a.After(*b)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// DiscoverFeed previews a candidate source URL: locates its feed and the
// newest posts.
func (s *Service) DiscoverFeed(ctx context.Context, rawURL string) (*FeedInfo, error) {
	feedURL, pageTitle, err := s.resolveFeed(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	info := &FeedInfo{URL: rawURL, Title: pageTitle, PreviewPosts: []PreviewPost{}}
	if feedURL == "" {
		return info, nil
	}

	feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		s.log.Warn("Discovered feed failed to parse", "feed_url", feedURL, "error", err)
		return info, nil
	}

	info.HasRSS = true
	if feed.Title != "" {
		info.Title = feed.Title
	}
	for _, item := range recentEntries(feed, s.cfg.MaxEntriesPerFeed) {
		info.PreviewPosts = append(info.PreviewPosts, PreviewPost{
			Title:         item.Title,
			URL:           item.Link,
			PublishedDate: item.PublishedParsed,
		})
	}
	return info, nil
}

// resolveFeed finds the feed URL for a page: the page itself when it is a
// feed, a <link rel=alternate> target, or a common feed path. An empty
// feed URL with nil error means the page has no discoverable feed.
func (s *Service) resolveFeed(ctx context.Context, rawURL string) (string, string, error) {
	body, contentType, err := s.probe(ctx, rawURL)
	if err != nil {
		return "", "", err
	}
	if looksLikeFeed(contentType, body) {
		return rawURL, "", nil
	}

	pageTitle, linked := scanFeedLinks(body, rawURL)
	if linked != "" {
		return linked, pageTitle, nil
	}

	base, err := url.Parse(rawURL)
	if err != nil {
		return "", pageTitle, nil
	}
	for _, path := range commonFeedPaths {
		candidate := base.Scheme + "://" + base.Host + path
		body, contentType, err := s.probe(ctx, candidate)
		if err == nil && looksLikeFeed(contentType, body) {
			return candidate, pageTitle, nil
		}
		if ctx.Err() != nil {
			return "", pageTitle, ctx.Err()
		}
	}
	return "", pageTitle, nil
}

func (s *Service) probe(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBytes))
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func looksLikeFeed(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") || strings.Contains(ct, "xml") {
		prefix := strings.TrimSpace(string(body[:min(len(body), 256)]))
		return strings.HasPrefix(prefix, "<?xml") || strings.HasPrefix(prefix, "<rss") || strings.HasPrefix(prefix, "<feed")
	}
	return false
}

var feedLinkTypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
	"application/feed+json": true,
}

// scanFeedLinks extracts the page title and the first alternate feed link.
func scanFeedLinks(body []byte, pageURL string) (string, string) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", ""
	}
	base, _ := url.Parse(pageURL)

	var title, feedHref string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "link":
				var rel, typ, href string
				for _, a := range n.Attr {
					switch a.Key {
					case "rel":
						rel = strings.ToLower(a.Val)
					case "type":
						typ = strings.ToLower(a.Val)
					case "href":
						href = a.Val
					}
				}
				if feedHref == "" && rel == "alternate" && feedLinkTypes[typ] && href != "" {
					feedHref = resolveRef(base, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title, feedHref
}

func resolveRef(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
