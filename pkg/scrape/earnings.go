package scrape

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
)

// earningsCallScraper handles earnings-call pages that publish a prepared
// transcript alongside the call recording. The transcript is the page's
// speaker-labelled paragraphs; the recording is the first audio source.
type earningsCallScraper struct{}

func (s *earningsCallScraper) Hosts() []string {
	return []string{"quartr.com", "seekingalpha.com"}
}

func (s *earningsCallScraper) Scrape(_ string, renderedHTML string) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(renderedHTML))
	if err != nil {
		return nil, err
	}

	res := &Result{
		Title:    findTitle(doc),
		AudioURL: findAudioSource(doc),
	}

	var paragraphs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			if text := strings.TrimSpace(nodeText(n)); text != "" {
				paragraphs = append(paragraphs, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	res.TranscriptText = strings.Join(paragraphs, "\n\n")

	if res.TranscriptText == "" && res.AudioURL == "" {
		return nil, errors.New("page contains neither transcript nor audio")
	}
	return res, nil
}

func findTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "h1" || n.Data == "title") {
			title = strings.TrimSpace(nodeText(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

// findAudioSource returns the first <audio src> or <audio><source src>.
func findAudioSource(doc *html.Node) string {
	var src string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if src != "" {
			return
		}
		if n.Type == html.ElementNode && (n.Data == "audio" || n.Data == "source") {
			for _, attr := range n.Attr {
				if attr.Key == "src" && attr.Val != "" {
					src = attr.Val
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return src
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
