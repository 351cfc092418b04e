package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mediabrief/mediabrief/pkg/classify"
	"github.com/mediabrief/mediabrief/pkg/config"
	"github.com/mediabrief/mediabrief/pkg/models"
	"github.com/mediabrief/mediabrief/pkg/store"
)

// historyClient talks to the external podcast listening-history service.
type historyClient struct {
	baseURL  string
	apiKey   string
	username string
	client   *http.Client
}

func newHistoryClient(cfg config.DiscoveryConfig, client *http.Client) *historyClient {
	return &historyClient{
		baseURL:  strings.TrimSuffix(cfg.HistoryAPIURL, "/"),
		apiKey:   cfg.HistoryAPIKey,
		username: cfg.HistoryAPIUsername,
		client:   client,
	}
}

// historyEpisode mirrors the service's episode shape.
type historyEpisode struct {
	UUID          string     `json:"uuid"`
	PodcastUUID   string     `json:"podcastUuid"`
	PodcastTitle  string     `json:"podcastTitle"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Published     *time.Time `json:"published"`
	Duration      int        `json:"duration"`
	PlayedUpTo    int        `json:"playedUpTo"`
	PlayingStatus int        `json:"playingStatus"`
}

// Recent downloads the account's listening history, newest first.
func (h *historyClient) Recent(ctx context.Context) ([]historyEpisode, error) {
	if h.apiKey == "" {
		return nil, errors.New("history API key not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/user/history", strings.NewReader("{}"))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history service returned status %d", resp.StatusCode)
	}

	var decoded struct {
		Episodes []historyEpisode `json:"episodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}
	return decoded.Episodes, nil
}

// CheckHistory sweeps the podcast listening history and queues episodes
// the user actually started. Runs only when at least one podcast source
// is subscribed.
func (s *Service) CheckHistory(ctx context.Context) (Summary, error) {
	sources, err := s.sources.ListActiveByType(ctx, models.SourceTypePodcast)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list podcast sources: %w", err)
	}
	if len(sources) == 0 {
		return Summary{}, nil
	}

	episodes, err := s.history.Recent(ctx)
	if err != nil {
		return Summary{SourcesChecked: len(sources), Failed: len(sources)}, err
	}

	preferred := s.preferredChannels(ctx, sources)

	summary := Summary{SourcesChecked: len(sources)}
	for _, ep := range episodes {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if ep.PlayedUpTo <= 0 {
			continue
		}

		item := queueItemForEpisode(ep)
		if alt, ok := preferred[strings.ToLower(ep.PodcastTitle)]; ok {
			item.VideoURL = &alt
		}

		inserted, err := s.queue.Insert(ctx, item)
		if err != nil {
			s.log.Warn("Failed to queue episode", "episode", ep.UUID, "error", err)
			continue
		}
		if inserted {
			summary.NewItems++
		}
	}

	now := time.Now()
	for _, src := range sources {
		if err := s.sources.TouchChecked(ctx, src.ID, now); err != nil {
			s.log.Warn("Failed to record history check", "source_id", src.ID, "error", err)
		}
	}

	s.log.Info("History sweep finished", "episodes", len(episodes), "new_items", summary.NewItems)
	return summary, nil
}

// preferredChannels resolves known richer-content channels for the
// subscribed podcasts, keyed by lowercased source title.
func (s *Service) preferredChannels(ctx context.Context, sources []models.ContentSourceRow) map[string]string {
	out := make(map[string]string, len(sources))
	for _, src := range sources {
		ch, err := s.channels.GetPreferred(ctx, src.URL)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			s.log.Warn("Known-channel lookup failed", "source", src.URL, "error", err)
			continue
		}
		out[strings.ToLower(src.Title)] = ch.PreferredURL
	}
	return out
}

func queueItemForEpisode(ep historyEpisode) *models.QueueItem {
	epURL := ep.URL
	if epURL == "" {
		epURL = "https://pca.st/episode/" + ep.UUID
	}

	uuid, podcastUUID := ep.UUID, ep.PodcastUUID
	duration, playedUpTo, playingStatus := ep.Duration, ep.PlayedUpTo, ep.PlayingStatus

	item := &models.QueueItem{
		URL:           classify.Canonical(epURL),
		Title:         ep.Title,
		ContentType:   models.QueueContentPodcast,
		ChannelTitle:  ep.PodcastTitle,
		Platform:      "podcast",
		PublishedDate: ep.Published,
		Status:        models.QueueStatusDiscovered,
		PodcastUUID:   &podcastUUID,
		EpisodeUUID:   &uuid,
		PlayingStatus: &playingStatus,
	}
	if duration > 0 {
		item.DurationSeconds = &duration
		pct := float64(playedUpTo) / float64(duration) * 100
		item.ProgressPercent = &pct
	}
	item.PlayedUpTo = &playedUpTo
	return item
}
