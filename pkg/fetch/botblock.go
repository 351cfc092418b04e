package fetch

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Markers that indicate the plain-HTTP response is a bot wall or a JS-gated
// shell rather than real content. Matching is case-insensitive.
var botBlockMarkers = []string{
	"checking your browser",
	"cf-challenge",
	"cf-browser-verification",
	"attention required! | cloudflare",
	"access denied",
	"request unsuccessful",
	"captcha",
	"are you a robot",
	"please enable javascript",
	"javascript is required",
	"you need to enable javascript to run this app",
}

var spaRootRe = regexp.MustCompile(`<div[^>]+id=["'](?:root|app|__next)["'][^>]*>\s*</div>`)

// spaBodyThreshold is the body length below which a single empty root div
// marks the page as an unrendered SPA skeleton.
const spaBodyThreshold = 2048

// botBlocked reports whether the response looks like a bot wall, a
// JS-required page, or an unrendered SPA skeleton.
func botBlocked(status int, body string) bool {
	if status == http.StatusForbidden || status == http.StatusTooManyRequests ||
		status == http.StatusServiceUnavailable {
		return true
	}

	lower := strings.ToLower(body)
	for _, marker := range botBlockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	if spaRootRe.MatchString(body) && len(extractBody(body)) < spaBodyThreshold {
		return true
	}
	return false
}

// extractBody returns the <body>...</body> slice, or the whole document if
// no body tags are present.
func extractBody(doc string) string {
	lower := strings.ToLower(doc)
	start := strings.Index(lower, "<body")
	if start < 0 {
		return doc
	}
	if gt := strings.Index(doc[start:], ">"); gt >= 0 {
		start += gt + 1
	}
	end := strings.LastIndex(lower, "</body>")
	if end < 0 || end < start {
		return doc[start:]
	}
	return doc[start:end]
}

// Path segments that mean the fetch was bounced to a login wall despite
// injected cookies.
var authPathSegments = map[string]bool{
	"login": true, "signin": true, "sign-in": true, "auth": true, "sso": true,
}

// authRedirected reports whether the final URL landed on a login page.
func authRedirected(finalURL string) bool {
	u, err := url.Parse(finalURL)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(strings.ToLower(u.Path), "/") {
		if authPathSegments[seg] {
			return true
		}
	}
	return false
}
