package transcript

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
)

// ErrNoCaptions means the platform has neither a manual nor an
// auto-generated caption track for the video.
var ErrNoCaptions = errors.New("no caption track available")

// YouTubeClient pulls caption tracks from the platform timedtext endpoint.
type YouTubeClient struct {
	BaseURL string
	Client  *http.Client
}

// NewYouTubeClient uses the public timedtext endpoint.
func NewYouTubeClient() *YouTubeClient {
	return &YouTubeClient{
		BaseURL: "https://video.google.com/timedtext",
		Client:  http.DefaultClient,
	}
}

type trackList struct {
	Tracks []struct {
		LangCode string `xml:"lang_code,attr"`
		Kind     string `xml:"kind,attr"`
		Name     string `xml:"name,attr"`
	} `xml:"track"`
}

type timedText struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

// Fetch returns the video's transcript: the manually-created track when one
// exists, the auto-generated track otherwise, ErrNoCaptions when neither.
func (c *YouTubeClient) Fetch(ctx context.Context, videoID string) (*Transcript, error) {
	tracks, err := c.listTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}

	// Manual track first; asr kind marks auto-generated captions.
	var lang, kind string
	for _, t := range tracks.Tracks {
		if t.Kind != "asr" {
			lang, kind = t.LangCode, t.Kind
			break
		}
	}
	if lang == "" {
		for _, t := range tracks.Tracks {
			if t.Kind == "asr" {
				lang, kind = t.LangCode, t.Kind
				break
			}
		}
	}
	if lang == "" {
		return nil, ErrNoCaptions
	}

	segments, err := c.fetchTrack(ctx, videoID, lang, kind)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, ErrNoCaptions
	}

	return &Transcript{Segments: segments, Source: SourcePlatformNative, Dense: true}, nil
}

func (c *YouTubeClient) listTracks(ctx context.Context, videoID string) (*trackList, error) {
	q := url.Values{"type": {"list"}, "v": {videoID}}
	body, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}

	var tracks trackList
	if err := xml.Unmarshal(body, &tracks); err != nil {
		return nil, fmt.Errorf("failed to parse track list: %w", err)
	}
	return &tracks, nil
}

func (c *YouTubeClient) fetchTrack(ctx context.Context, videoID, lang, kind string) ([]Segment, error) {
	q := url.Values{"v": {videoID}, "lang": {lang}}
	if kind != "" {
		q.Set("kind", kind)
	}
	body, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("failed to parse captions: %w", err)
	}

	segments := make([]Segment, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		text := html.UnescapeString(t.Body)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			StartSeconds:    t.Start,
			Text:            text,
			DurationSeconds: t.Dur,
		})
	}
	return segments, nil
}

func (c *YouTubeClient) get(ctx context.Context, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timedtext request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timedtext returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
