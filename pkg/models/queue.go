package models

import "time"

// QueueContentType distinguishes the two discovery item shapes.
type QueueContentType string

const (
	QueueContentArticle QueueContentType = "article"
	QueueContentPodcast QueueContentType = "podcast_episode"
)

// QueueStatus is the lifecycle state of a discovered item.
type QueueStatus string

const (
	QueueStatusDiscovered QueueStatus = "discovered"
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusSkipped    QueueStatus = "skipped"
)

// QueueItem is a row in the shared content queue fed by discovery workers.
type QueueItem struct {
	ID            int64            `json:"id"`
	URL           string           `json:"url"`
	Title         string           `json:"title"`
	ContentType   QueueContentType `json:"content_type"`
	ChannelTitle  string           `json:"channel_title"`
	ChannelURL    string           `json:"channel_url"`
	VideoURL      *string          `json:"video_url,omitempty"`
	Platform      string           `json:"platform"`
	SourceFeed    *string          `json:"source_feed,omitempty"`
	FoundAt       time.Time        `json:"found_at"`
	PublishedDate *time.Time       `json:"published_date,omitempty"`
	Status        QueueStatus      `json:"status"`

	// Podcast listening-history fields
	PodcastUUID     *string  `json:"podcast_uuid,omitempty"`
	EpisodeUUID     *string  `json:"episode_uuid,omitempty"`
	DurationSeconds *int     `json:"duration_seconds,omitempty"`
	PlayedUpTo      *int     `json:"played_up_to,omitempty"`
	ProgressPercent *float64 `json:"progress_percent,omitempty"`
	PlayingStatus   *int     `json:"playing_status,omitempty"`
}
