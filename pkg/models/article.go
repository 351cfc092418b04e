// Package models contains row structs, enums, and business domain types.
package models

import "time"

// ContentSource describes the primary modality of a processed content item.
type ContentSource string

const (
	ContentSourceArticle ContentSource = "article"
	ContentSourceVideo   ContentSource = "video"
	ContentSourceAudio   ContentSource = "audio"
	ContentSourceMixed   ContentSource = "mixed"
)

// KeyInsight is a single timestamped takeaway derived from the content.
type KeyInsight struct {
	Insight          string   `json:"insight"`
	TimestampSeconds *float64 `json:"timestamp_seconds,omitempty"`
	TimeFormatted    *string  `json:"time_formatted,omitempty"`
}

// Quote is a notable quotation, optionally attributed and timestamped.
type Quote struct {
	Quote            string   `json:"quote"`
	Speaker          *string  `json:"speaker,omitempty"`
	TimestampSeconds *float64 `json:"timestamp_seconds,omitempty"`
	TimeFormatted    *string  `json:"time_formatted,omitempty"`
	Context          *string  `json:"context,omitempty"`
}

// Frame is a still image sampled from a video, stored in the frames bucket.
type Frame struct {
	StoragePath      string  `json:"storage_path"`
	URL              string  `json:"url"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	TimeFormatted    string  `json:"time_formatted"`
	PerceptualHash   string  `json:"perceptual_hash,omitempty"`
}

// MediaPointer holds the long-term storage location of a downloaded or
// uploaded media asset. All fields are null together when no media is stored.
type MediaPointer struct {
	Bucket          *string    `json:"media_storage_bucket,omitempty"`
	Path            *string    `json:"media_storage_path,omitempty"`
	UploadedAt      *time.Time `json:"media_uploaded_at,omitempty"`
	MimeType        *string    `json:"media_mime_type,omitempty"`
	SizeBytes       *int64     `json:"media_size_bytes,omitempty"`
	DurationSeconds *int       `json:"media_duration_seconds,omitempty"`
	IsPermanent     bool       `json:"media_is_permanent"`
}

// Article is the global record produced by the pipeline for a unique URL.
type Article struct {
	ID              int64         `json:"id"`
	URL             string        `json:"url"`
	Title           string        `json:"title"`
	ContentSource   ContentSource `json:"content_source"`
	Platform        string        `json:"platform"`
	VideoID         *string       `json:"video_id,omitempty"`
	AudioURL        *string       `json:"audio_url,omitempty"`
	WordCount       int           `json:"word_count"`
	DurationSeconds *int          `json:"duration_seconds,omitempty"`

	SummaryText    string       `json:"summary_text"`
	SummaryHTML    *string      `json:"summary_html,omitempty"`
	TranscriptText *string      `json:"transcript_text,omitempty"`
	KeyInsights    []KeyInsight `json:"key_insights"`
	Quotes         []Quote      `json:"quotes"`
	Topics         []string     `json:"topics"`
	Frames         []Frame      `json:"frames"`
	// EarningsAnalysis carries the sectioned earnings-call notes
	// (key_metrics, guidance, ...) for earnings content, nil otherwise.
	EarningsAnalysis map[string]any `json:"earnings_analysis,omitempty"`
	Embedding        []float32      `json:"-"`

	Media MediaPointer `json:"media"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrivateArticle is the org-scoped variant of Article used for themed insights.
type PrivateArticle struct {
	Article
	OrganizationID string         `json:"organization_id"`
	ThemedInsights map[string]any `json:"themed_insights,omitempty"`
}

// ArticleUser associates an article with a user's library.
type ArticleUser struct {
	ID             int64     `json:"id"`
	ArticleID      int64     `json:"article_id"`
	UserID         string    `json:"user_id"`
	OrganizationID *string   `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
