package models

import "time"

// SourceType is the kind of subscription a user follows.
type SourceType string

const (
	SourceTypeNewsletter SourceType = "newsletter"
	SourceTypePodcast    SourceType = "podcast"
)

// ContentSourceRow is a per-user subscription checked by discovery workers.
type ContentSourceRow struct {
	ID            int64      `json:"id"`
	UserID        string     `json:"user_id"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	SourceType    SourceType `json:"source_type"`
	IsActive      bool       `json:"is_active"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// KnownChannel maps a canonical source URL to a preferred alternative
// content URL, e.g. a podcast feed to the show's YouTube channel.
type KnownChannel struct {
	ID           int64     `json:"id"`
	SourceURL    string    `json:"source_url"`
	PreferredURL string    `json:"preferred_url"`
	Note         *string   `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
