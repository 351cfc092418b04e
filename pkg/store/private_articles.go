package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/mediabrief/mediabrief/pkg/models"
)

// PrivateArticleStore persists org-scoped article variants.
type PrivateArticleStore struct {
	db *sql.DB
}

// GetByID returns the private article with the given id.
func (s *PrivateArticleStore) GetByID(ctx context.Context, id int64) (*models.PrivateArticle, error) {
	var a models.PrivateArticle
	var keyInsights, quotes, topics, frames, themed []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, url, title, content_source, platform, video_id, audio_url,
			word_count, duration_seconds, summary_text, summary_html, transcript_text,
			key_insights, quotes, topics, frames, themed_insights,
			media_storage_bucket, media_storage_path, media_uploaded_at, media_mime_type,
			media_size_bytes, media_duration_seconds, media_is_permanent,
			created_at, updated_at
		 FROM private_articles WHERE id = $1`, id).Scan(
		&a.ID, &a.OrganizationID, &a.URL, &a.Title, &a.ContentSource, &a.Platform,
		&a.VideoID, &a.AudioURL, &a.WordCount, &a.DurationSeconds,
		&a.SummaryText, &a.SummaryHTML, &a.TranscriptText,
		&keyInsights, &quotes, &topics, &frames, &themed,
		&a.Media.Bucket, &a.Media.Path, &a.Media.UploadedAt, &a.Media.MimeType,
		&a.Media.SizeBytes, &a.Media.DurationSeconds, &a.Media.IsPermanent,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan private article: %w", err)
	}
	_ = json.Unmarshal(keyInsights, &a.KeyInsights)
	_ = json.Unmarshal(quotes, &a.Quotes)
	_ = json.Unmarshal(topics, &a.Topics)
	_ = json.Unmarshal(frames, &a.Frames)
	if len(themed) > 0 {
		_ = json.Unmarshal(themed, &a.ThemedInsights)
	}
	return &a, nil
}

// List mirrors ArticleStore.List for the private table, scoped to one org.
func (s *PrivateArticleStore) List(ctx context.Context, orgID, search string, limit, offset int) ([]ListItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `SELECT id, url, title, content_source,
		media_storage_path IS NOT NULL, media_uploaded_at, created_at
		FROM private_articles WHERE organization_id = $1`
	args := []any{orgID}
	if search != "" {
		query += ` AND to_tsvector('english', title || ' ' || summary_text) @@ plainto_tsquery('english', $2)`
		args = append(args, search)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list private articles: %w", err)
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.ID, &it.URL, &it.Title, &it.ContentSource,
			&it.HasMedia, &it.MediaUploadedAt, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan private article row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateInsights overwrites the derived insight fields on a private row.
func (s *PrivateArticleStore) UpdateInsights(ctx context.Context, id int64, summary string, summaryHTML *string, insights []models.KeyInsight, quotes []models.Quote, topics []string) error {
	insightsJSON, _ := json.Marshal(emptyIfNilInsights(insights))
	quotesJSON, _ := json.Marshal(emptyIfNilQuotes(quotes))
	topicsJSON, _ := json.Marshal(emptyIfNilStrings(topics))
	_, err := s.db.ExecContext(ctx,
		`UPDATE private_articles SET summary_text = $1, summary_html = $2, key_insights = $3,
			quotes = $4, topics = $5, updated_at = now() WHERE id = $6`,
		summary, summaryHTML, insightsJSON, quotesJSON, topicsJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update private insights: %w", err)
	}
	return nil
}

// UpdateThemedInsights writes the org-scoped themed insight payload.
func (s *PrivateArticleStore) UpdateThemedInsights(ctx context.Context, id int64, themed map[string]any) error {
	themedJSON, err := json.Marshal(themed)
	if err != nil {
		return fmt.Errorf("failed to encode themed insights: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE private_articles SET themed_insights = $1, updated_at = now() WHERE id = $2`,
		themedJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update themed insights: %w", err)
	}
	return nil
}

// UpdateEmbedding overwrites the embedding vector on a private row.
func (s *PrivateArticleStore) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE private_articles SET embedding = $1, updated_at = now() WHERE id = $2`,
		pgvector.NewVector(embedding), id)
	if err != nil {
		return fmt.Errorf("failed to update private embedding: %w", err)
	}
	return nil
}

// UpdateTranscript overwrites the transcript text on a private row.
func (s *PrivateArticleStore) UpdateTranscript(ctx context.Context, id int64, transcript string, durationSeconds *int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE private_articles SET transcript_text = $1,
			duration_seconds = COALESCE($2, duration_seconds), updated_at = now()
		 WHERE id = $3`,
		transcript, durationSeconds, id)
	if err != nil {
		return fmt.Errorf("failed to update private transcript: %w", err)
	}
	return nil
}

// UpdateFrames overwrites the stored frame list on a private row.
func (s *PrivateArticleStore) UpdateFrames(ctx context.Context, id int64, frames []models.Frame) error {
	framesJSON, _ := json.Marshal(emptyIfNilFrames(frames))
	_, err := s.db.ExecContext(ctx,
		`UPDATE private_articles SET frames = $1, updated_at = now() WHERE id = $2`,
		framesJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update private frames: %w", err)
	}
	return nil
}

// ListExpiredMedia mirrors ArticleStore.ListExpiredMedia for the private table.
func (s *PrivateArticleStore) ListExpiredMedia(ctx context.Context, bucket string, cutoff time.Time) ([]ExpiredMedia, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, media_storage_bucket, media_storage_path FROM private_articles
		 WHERE media_storage_bucket = $1 AND media_is_permanent = FALSE
		   AND media_uploaded_at < $2 AND media_storage_path IS NOT NULL`,
		bucket, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired private media: %w", err)
	}
	defer rows.Close()

	var out []ExpiredMedia
	for rows.Next() {
		var e ExpiredMedia
		if err := rows.Scan(&e.ID, &e.Bucket, &e.Path); err != nil {
			return nil, fmt.Errorf("failed to scan expired private media row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearMediaPointers nulls every media pointer column on the private row.
func (s *PrivateArticleStore) ClearMediaPointers(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE private_articles SET media_storage_bucket = NULL, media_storage_path = NULL,
			media_uploaded_at = NULL, media_mime_type = NULL, media_size_bytes = NULL,
			media_duration_seconds = NULL, media_is_permanent = FALSE, updated_at = now()
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to clear private media pointers: %w", err)
	}
	return nil
}
