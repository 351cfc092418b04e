// Package classify inspects URLs and rendered pages to decide how a piece
// of content should be processed.
package classify

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Kind is the classification outcome for a URL.
type Kind string

const (
	KindArticleHTML        Kind = "article_html"
	KindDirectVideo        Kind = "direct_video"
	KindDirectAudio        Kind = "direct_audio"
	KindDocument           Kind = "document"
	KindYouTubeWatch       Kind = "youtube_watch"
	KindVimeoEmbed         Kind = "vimeo_embed"
	KindLoomEmbed          Kind = "loom_embed"
	KindWistiaEmbed        Kind = "wistia_embed"
	KindDailymotionEmbed   Kind = "dailymotion_embed"
	KindHostedPodcast      Kind = "hosted_podcast"
	KindPaywalledPublisher Kind = "paywalled_publisher"
)

// Classification is the result of classifying a URL, optionally refined by
// scanning the response body for embeds.
type Classification struct {
	Kind     Kind
	Platform string
	// PlatformID is the platform-specific media identifier (e.g. the
	// YouTube video id) when Kind is a platform embed.
	PlatformID string
	// DirectMediaURL is set for direct media kinds; it is the asset itself.
	DirectMediaURL string
}

// IsMedia reports whether the classification points at playable media.
func (c Classification) IsMedia() bool {
	switch c.Kind {
	case KindArticleHTML, KindPaywalledPublisher, KindDocument:
		return false
	}
	return true
}

// IsDirect reports whether the URL itself is the media asset.
func (c Classification) IsDirect() bool {
	return c.Kind == KindDirectVideo || c.Kind == KindDirectAudio || c.Kind == KindDocument
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".webm": true, ".mkv": true, ".avi": true, ".m4v": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".aac": true, ".ogg": true, ".flac": true, ".opus": true,
}

var documentExtensions = map[string]bool{
	".pdf": true,
}

type platformPattern struct {
	kind     Kind
	platform string
	re       *regexp.Regexp
}

// Patterns are matched against the full URL; the first capture group is the
// platform-specific media id.
var platformPatterns = []platformPattern{
	{KindYouTubeWatch, "youtube", regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|embed/|live/)|youtu\.be/)([A-Za-z0-9_-]{11})`)},
	{KindVimeoEmbed, "vimeo", regexp.MustCompile(`(?:player\.)?vimeo\.com/(?:video/)?(\d+)`)},
	{KindLoomEmbed, "loom", regexp.MustCompile(`loom\.com/(?:share|embed)/([a-f0-9]{32})`)},
	{KindWistiaEmbed, "wistia", regexp.MustCompile(`(?:fast\.)?wistia\.(?:com|net)/(?:medias|embed/iframe)/([a-z0-9]+)`)},
	{KindDailymotionEmbed, "dailymotion", regexp.MustCompile(`dailymotion\.com/(?:video|embed/video)/([a-z0-9]+)`)},
}

// Podcast-hosting platforms serve episode pages whose audio asset must be
// scraped rather than downloaded by id.
var hostedPodcastHosts = []string{
	"megaphone.fm",
	"libsyn.com",
	"buzzsprout.com",
	"transistor.fm",
	"simplecast.com",
	"anchor.fm",
	"podbean.com",
}

// Publishers behind a paywall whose content we reach through a dedicated
// scraper rather than generic extraction.
var paywalledHosts = []string{
	"quartr.com",
	"seekingalpha.com",
	"stratechery.com",
}

var articlePlatforms = []struct {
	marker   string
	platform string
}{
	{"substack.com", "substack"},
	{"medium.com", "medium"},
	{"stratechery.com", "stratechery"},
	{"ghost.io", "ghost"},
}

// URL classifies a URL string without fetching it. It never fails: the
// worst case is article_html on the generic platform.
func URL(rawURL string) Classification {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return Classification{Kind: KindArticleHTML, Platform: "generic"}
	}

	ext := strings.ToLower(path.Ext(u.Path))
	switch {
	case videoExtensions[ext]:
		return Classification{Kind: KindDirectVideo, Platform: "direct", DirectMediaURL: rawURL}
	case audioExtensions[ext]:
		return Classification{Kind: KindDirectAudio, Platform: "direct", DirectMediaURL: rawURL}
	case documentExtensions[ext]:
		return Classification{Kind: KindDocument, Platform: "direct", DirectMediaURL: rawURL}
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	for _, p := range platformPatterns {
		if m := p.re.FindStringSubmatch(rawURL); m != nil && hostMatchesPlatform(host, p.platform) {
			return Classification{Kind: p.kind, Platform: p.platform, PlatformID: m[1]}
		}
	}

	for _, h := range hostedPodcastHosts {
		if hostHasSuffix(host, h) {
			return Classification{Kind: KindHostedPodcast, Platform: strings.SplitN(h, ".", 2)[0]}
		}
	}

	for _, h := range paywalledHosts {
		if hostHasSuffix(host, h) {
			return Classification{Kind: KindPaywalledPublisher, Platform: strings.SplitN(h, ".", 2)[0]}
		}
	}

	return Classification{Kind: KindArticleHTML, Platform: articlePlatform(host)}
}

// Page refines a URL classification using the rendered page body. Iframe
// sources are scanned with the platform patterns; the first match wins and
// overrides article_html. Matching is strict: only known embed domains.
func Page(rawURL, body string) Classification {
	c := URL(rawURL)
	if c.Kind != KindArticleHTML && c.Kind != KindPaywalledPublisher {
		return c
	}

	for _, src := range iframeSources(body) {
		for _, p := range platformPatterns {
			if m := p.re.FindStringSubmatch(src); m != nil {
				refined := Classification{Kind: p.kind, Platform: p.platform, PlatformID: m[1]}
				if c.Kind == KindPaywalledPublisher {
					refined.Kind = c.Kind
					refined.Platform = c.Platform
				}
				return refined
			}
		}
	}
	return c
}

// iframeSources returns the src attribute of every iframe in the document.
func iframeSources(body string) []string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}
	var srcs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "iframe" {
			for _, attr := range n.Attr {
				if attr.Key == "src" && attr.Val != "" {
					srcs = append(srcs, attr.Val)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return srcs
}

func hostMatchesPlatform(host, platform string) bool {
	switch platform {
	case "youtube":
		return hostHasSuffix(host, "youtube.com") || hostHasSuffix(host, "youtu.be")
	case "vimeo":
		return hostHasSuffix(host, "vimeo.com")
	case "loom":
		return hostHasSuffix(host, "loom.com")
	case "wistia":
		return hostHasSuffix(host, "wistia.com") || hostHasSuffix(host, "wistia.net")
	case "dailymotion":
		return hostHasSuffix(host, "dailymotion.com")
	}
	return false
}

func hostHasSuffix(host, suffix string) bool {
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

func articlePlatform(host string) string {
	for _, p := range articlePlatforms {
		if hostHasSuffix(host, p.marker) {
			return p.platform
		}
	}
	return "generic"
}

// Canonical strips the query and fragment from a URL, preserving the path.
// Invalid URLs are returned unchanged.
func Canonical(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
