// Package discovery polls external catalogs (RSS feeds, a podcast
// listening-history service) and feeds the shared content queue.
package discovery

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mediabrief/mediabrief/pkg/config"
	"github.com/mediabrief/mediabrief/pkg/models"
)

// SourceLister is the subscription surface a sweep iterates.
type SourceLister interface {
	ListActiveByType(ctx context.Context, sourceType models.SourceType) ([]models.ContentSourceRow, error)
	TouchChecked(ctx context.Context, id int64, at time.Time) error
}

// QueueWriter inserts discovered items; Insert returns false on duplicates.
type QueueWriter interface {
	Insert(ctx context.Context, item *models.QueueItem) (bool, error)
}

// ChannelResolver maps a source URL to a preferred richer-content URL.
type ChannelResolver interface {
	GetPreferred(ctx context.Context, sourceURL string) (*models.KnownChannel, error)
}

// Summary reports one sweep.
type Summary struct {
	SourcesChecked int `json:"sources_checked"`
	NewItems       int `json:"new_items"`
	Failed         int `json:"failed"`
}

// PreviewPost is one recent entry shown when previewing a feed source.
type PreviewPost struct {
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
}

// FeedInfo is the result of RSS auto-discovery on a candidate source URL.
type FeedInfo struct {
	URL          string        `json:"url"`
	Title        string        `json:"title"`
	HasRSS       bool          `json:"has_rss"`
	PreviewPosts []PreviewPost `json:"preview_posts"`
}

// Service runs discovery sweeps over the user's subscriptions.
type Service struct {
	cfg      config.DiscoveryConfig
	sources  SourceLister
	queue    QueueWriter
	channels ChannelResolver

	client  *http.Client
	parser  *gofeed.Parser
	history *historyClient

	log *slog.Logger
}

// New creates the discovery service.
func New(cfg config.DiscoveryConfig, sources SourceLister, queue QueueWriter, channels ChannelResolver) *Service {
	client := &http.Client{Timeout: 30 * time.Second}
	parser := gofeed.NewParser()
	parser.Client = client

	return &Service{
		cfg:      cfg,
		sources:  sources,
		queue:    queue,
		channels: channels,
		client:   client,
		parser:   parser,
		history:  newHistoryClient(cfg, client),
		log:      slog.With("component", "discovery"),
	}
}
