package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mediabrief/mediabrief/pkg/models"
)

// QueueStore persists the shared content queue fed by discovery workers.
type QueueStore struct {
	db *sql.DB
}

const queueColumns = `id, url, title, content_type, channel_title, channel_url,
	video_url, platform, source_feed, found_at, published_date, status,
	podcast_uuid, episode_uuid, duration_seconds, played_up_to,
	progress_percent, playing_status`

// Insert adds a discovered item. Returns false when the URL is already
// queued, which makes discovery sweeps idempotent.
func (s *QueueStore) Insert(ctx context.Context, item *models.QueueItem) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO content_queue (url, title, content_type, channel_title, channel_url,
			video_url, platform, source_feed, published_date, status,
			podcast_uuid, episode_uuid, duration_seconds, played_up_to,
			progress_percent, playing_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (url) DO NOTHING`,
		item.URL, item.Title, item.ContentType, item.ChannelTitle, item.ChannelURL,
		item.VideoURL, item.Platform, item.SourceFeed, item.PublishedDate,
		statusOrDiscovered(item.Status), item.PodcastUUID, item.EpisodeUUID,
		item.DurationSeconds, item.PlayedUpTo, item.ProgressPercent, item.PlayingStatus)
	if err != nil {
		return false, fmt.Errorf("failed to insert queue item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// Exists reports whether a URL is already in the queue.
func (s *QueueStore) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM content_queue WHERE url = $1)`, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check queue: %w", err)
	}
	return exists, nil
}

// List returns queue rows filtered by content type and optionally status,
// newest first.
func (s *QueueStore) List(ctx context.Context, contentType models.QueueContentType, status models.QueueStatus, limit int) ([]models.QueueItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT ` + queueColumns + ` FROM content_queue WHERE content_type = $1`
	args := []any{contentType}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY found_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		var it models.QueueItem
		if err := rows.Scan(&it.ID, &it.URL, &it.Title, &it.ContentType,
			&it.ChannelTitle, &it.ChannelURL, &it.VideoURL, &it.Platform,
			&it.SourceFeed, &it.FoundAt, &it.PublishedDate, &it.Status,
			&it.PodcastUUID, &it.EpisodeUUID, &it.DurationSeconds,
			&it.PlayedUpTo, &it.ProgressPercent, &it.PlayingStatus); err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateStatus transitions a queue row.
func (s *QueueStore) UpdateStatus(ctx context.Context, id int64, status models.QueueStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE content_queue SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update queue status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func statusOrDiscovered(s models.QueueStatus) models.QueueStatus {
	if s == "" {
		return models.QueueStatusDiscovered
	}
	return s
}
