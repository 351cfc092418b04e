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

// ArticleStore persists content items and their user associations.
type ArticleStore struct {
	db *sql.DB
}

const articleColumns = `id, url, title, content_source, platform, video_id, audio_url,
	word_count, duration_seconds, summary_text, summary_html, transcript_text,
	key_insights, quotes, topics, frames, earnings_analysis,
	media_storage_bucket, media_storage_path, media_uploaded_at, media_mime_type,
	media_size_bytes, media_duration_seconds, media_is_permanent,
	created_at, updated_at`

// GetByURL returns the article with the given canonical URL.
func (s *ArticleStore) GetByURL(ctx context.Context, url string) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE url = $1`, url)
	return scanArticle(row)
}

// GetByID returns the article with the given id.
func (s *ArticleStore) GetByID(ctx context.Context, id int64) (*models.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)
	return scanArticle(row)
}

// HasAssociation reports whether the user already has the article in their library.
func (s *ArticleStore) HasAssociation(ctx context.Context, articleID int64, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM article_users WHERE article_id = $1 AND user_id = $2)`,
		articleID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check association: %w", err)
	}
	return exists, nil
}

// AttachUser associates an article with a user's library. Idempotent: a
// concurrent or repeated attach is absorbed by the unique constraint.
func (s *ArticleStore) AttachUser(ctx context.Context, articleID int64, userID, orgID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO article_users (article_id, user_id, organization_id)
		 VALUES ($1, $2, NULLIF($3, ''))
		 ON CONFLICT (article_id, user_id) DO NOTHING`,
		articleID, userID, orgID)
	if err != nil {
		return fmt.Errorf("failed to attach user: %w", err)
	}
	return nil
}

// SaveParams carries everything the persistence step writes for one article.
type SaveParams struct {
	Article   *models.Article
	UserID    string
	OrgID     string
	Embedding []float32
	// Reprocess overwrites derived content on URL conflict instead of
	// keeping the existing row untouched.
	Reprocess bool
}

// SaveOutcome reports what the save did.
type SaveOutcome struct {
	ArticleID      int64
	AlreadyExisted bool
}

// Save writes the article row, media pointer, user association, and
// embedding in one transaction. On URL conflict outside reprocess mode the
// existing row wins and only the association is added.
func (s *ArticleStore) Save(ctx context.Context, p SaveParams) (SaveOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveOutcome{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	a := p.Article
	keyInsights, _ := json.Marshal(emptyIfNilInsights(a.KeyInsights))
	quotes, _ := json.Marshal(emptyIfNilQuotes(a.Quotes))
	topics, _ := json.Marshal(emptyIfNilStrings(a.Topics))
	frames, _ := json.Marshal(emptyIfNilFrames(a.Frames))

	var id int64
	outcome := SaveOutcome{}

	conflict := `ON CONFLICT (url) DO NOTHING`
	if p.Reprocess {
		conflict = `ON CONFLICT (url) DO UPDATE SET
			title = EXCLUDED.title,
			content_source = EXCLUDED.content_source,
			platform = EXCLUDED.platform,
			video_id = EXCLUDED.video_id,
			audio_url = EXCLUDED.audio_url,
			word_count = EXCLUDED.word_count,
			duration_seconds = EXCLUDED.duration_seconds,
			summary_text = EXCLUDED.summary_text,
			summary_html = EXCLUDED.summary_html,
			transcript_text = EXCLUDED.transcript_text,
			key_insights = EXCLUDED.key_insights,
			quotes = EXCLUDED.quotes,
			topics = EXCLUDED.topics,
			frames = EXCLUDED.frames,
			earnings_analysis = EXCLUDED.earnings_analysis,
			updated_at = now()`
	}

	var earnings []byte
	if a.EarningsAnalysis != nil {
		earnings, _ = json.Marshal(a.EarningsAnalysis)
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO articles (url, title, content_source, platform, video_id, audio_url,
			word_count, duration_seconds, summary_text, summary_html, transcript_text,
			key_insights, quotes, topics, frames, earnings_analysis)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 `+conflict+` RETURNING id`,
		a.URL, a.Title, a.ContentSource, a.Platform, a.VideoID, a.AudioURL,
		a.WordCount, a.DurationSeconds, a.SummaryText, a.SummaryHTML, a.TranscriptText,
		keyInsights, quotes, topics, frames, earnings).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// Conflict with DO NOTHING: another submission owns this URL.
		outcome.AlreadyExisted = true
		err = tx.QueryRowContext(ctx, `SELECT id FROM articles WHERE url = $1`, a.URL).Scan(&id)
	}
	if err != nil {
		return SaveOutcome{}, fmt.Errorf("failed to upsert article: %w", err)
	}
	outcome.ArticleID = id

	if !outcome.AlreadyExisted && a.Media.Bucket != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE articles SET media_storage_bucket = $1, media_storage_path = $2,
				media_uploaded_at = $3, media_mime_type = $4, media_size_bytes = $5,
				media_duration_seconds = $6, media_is_permanent = $7
			 WHERE id = $8`,
			a.Media.Bucket, a.Media.Path, a.Media.UploadedAt, a.Media.MimeType,
			a.Media.SizeBytes, a.Media.DurationSeconds, a.Media.IsPermanent, id)
		if err != nil {
			return SaveOutcome{}, fmt.Errorf("failed to write media pointer: %w", err)
		}
	}

	if p.UserID != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO article_users (article_id, user_id, organization_id)
			 VALUES ($1, $2, NULLIF($3, ''))
			 ON CONFLICT (article_id, user_id) DO NOTHING`,
			id, p.UserID, p.OrgID)
		if err != nil {
			return SaveOutcome{}, fmt.Errorf("failed to attach user: %w", err)
		}
	}

	if len(p.Embedding) > 0 && !outcome.AlreadyExisted {
		_, err = tx.ExecContext(ctx,
			`UPDATE articles SET embedding = $1 WHERE id = $2`,
			pgvector.NewVector(p.Embedding), id)
		if err != nil {
			return SaveOutcome{}, fmt.Errorf("failed to write embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return SaveOutcome{}, fmt.Errorf("failed to commit: %w", err)
	}
	return outcome, nil
}

// UpdateInsights overwrites the derived insight fields on an existing row.
func (s *ArticleStore) UpdateInsights(ctx context.Context, id int64, summary string, summaryHTML *string, insights []models.KeyInsight, quotes []models.Quote, topics []string) error {
	insightsJSON, _ := json.Marshal(emptyIfNilInsights(insights))
	quotesJSON, _ := json.Marshal(emptyIfNilQuotes(quotes))
	topicsJSON, _ := json.Marshal(emptyIfNilStrings(topics))
	_, err := s.db.ExecContext(ctx,
		`UPDATE articles SET summary_text = $1, summary_html = $2, key_insights = $3,
			quotes = $4, topics = $5, updated_at = now() WHERE id = $6`,
		summary, summaryHTML, insightsJSON, quotesJSON, topicsJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update insights: %w", err)
	}
	return nil
}

// UpdateEmbedding overwrites the embedding vector on an existing row.
func (s *ArticleStore) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE articles SET embedding = $1, updated_at = now() WHERE id = $2`,
		pgvector.NewVector(embedding), id)
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}
	return nil
}

// SetMediaPointer records the long-term storage location of the article's
// media asset. Object keys embed the article id, so this runs after the
// row exists.
func (s *ArticleStore) SetMediaPointer(ctx context.Context, id int64, ptr models.MediaPointer) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE articles SET media_storage_bucket = $1, media_storage_path = $2,
			media_uploaded_at = $3, media_mime_type = $4, media_size_bytes = $5,
			media_duration_seconds = $6, media_is_permanent = $7, updated_at = now()
		 WHERE id = $8`,
		ptr.Bucket, ptr.Path, ptr.UploadedAt, ptr.MimeType,
		ptr.SizeBytes, ptr.DurationSeconds, ptr.IsPermanent, id)
	if err != nil {
		return fmt.Errorf("failed to set media pointer: %w", err)
	}
	return nil
}

// UpdateTranscript overwrites the transcript text on an existing row.
func (s *ArticleStore) UpdateTranscript(ctx context.Context, id int64, transcript string, durationSeconds *int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE articles SET transcript_text = $1, duration_seconds = COALESCE($2, duration_seconds),
			updated_at = now() WHERE id = $3`,
		transcript, durationSeconds, id)
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}
	return nil
}

// UpdateFrames overwrites the stored frame list on an existing row.
func (s *ArticleStore) UpdateFrames(ctx context.Context, id int64, frames []models.Frame) error {
	framesJSON, _ := json.Marshal(emptyIfNilFrames(frames))
	_, err := s.db.ExecContext(ctx,
		`UPDATE articles SET frames = $1, updated_at = now() WHERE id = $2`,
		framesJSON, id)
	if err != nil {
		return fmt.Errorf("failed to update frames: %w", err)
	}
	return nil
}

// ListItem is a compact article row for list endpoints.
type ListItem struct {
	ID              int64      `json:"id"`
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	ContentSource   string     `json:"content_source"`
	HasMedia        bool       `json:"has_media"`
	MediaUploadedAt *time.Time `json:"media_uploaded_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// List returns articles for the reprocess picker, newest first, optionally
// filtered by a full-text search over title and summary.
func (s *ArticleStore) List(ctx context.Context, search string, limit, offset int) ([]ListItem, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `SELECT id, url, title, content_source,
		media_storage_path IS NOT NULL, media_uploaded_at, created_at
		FROM articles`
	args := []any{}
	if search != "" {
		query += ` WHERE to_tsvector('english', title || ' ' || summary_text) @@ plainto_tsquery('english', $1)`
		args = append(args, search)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.ID, &it.URL, &it.Title, &it.ContentSource,
			&it.HasMedia, &it.MediaUploadedAt, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ExpiredMedia is a row whose stored media has outlived the retention window.
type ExpiredMedia struct {
	ID     int64
	Bucket string
	Path   string
}

// ListExpiredMedia returns rows in the given (expiring) bucket uploaded
// before the cutoff. Permanent media is never returned.
func (s *ArticleStore) ListExpiredMedia(ctx context.Context, bucket string, cutoff time.Time) ([]ExpiredMedia, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, media_storage_bucket, media_storage_path FROM articles
		 WHERE media_storage_bucket = $1 AND media_is_permanent = FALSE
		   AND media_uploaded_at < $2 AND media_storage_path IS NOT NULL`,
		bucket, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired media: %w", err)
	}
	defer rows.Close()

	var out []ExpiredMedia
	for rows.Next() {
		var e ExpiredMedia
		if err := rows.Scan(&e.ID, &e.Bucket, &e.Path); err != nil {
			return nil, fmt.Errorf("failed to scan expired media row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearMediaPointers nulls every media pointer column on the row.
func (s *ArticleStore) ClearMediaPointers(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE articles SET media_storage_bucket = NULL, media_storage_path = NULL,
			media_uploaded_at = NULL, media_mime_type = NULL, media_size_bytes = NULL,
			media_duration_seconds = NULL, media_is_permanent = FALSE, updated_at = now()
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to clear media pointers: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	var a models.Article
	var keyInsights, quotes, topics, frames, earnings []byte
	err := row.Scan(&a.ID, &a.URL, &a.Title, &a.ContentSource, &a.Platform,
		&a.VideoID, &a.AudioURL, &a.WordCount, &a.DurationSeconds,
		&a.SummaryText, &a.SummaryHTML, &a.TranscriptText,
		&keyInsights, &quotes, &topics, &frames, &earnings,
		&a.Media.Bucket, &a.Media.Path, &a.Media.UploadedAt, &a.Media.MimeType,
		&a.Media.SizeBytes, &a.Media.DurationSeconds, &a.Media.IsPermanent,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}
	_ = json.Unmarshal(keyInsights, &a.KeyInsights)
	_ = json.Unmarshal(quotes, &a.Quotes)
	_ = json.Unmarshal(topics, &a.Topics)
	_ = json.Unmarshal(frames, &a.Frames)
	if len(earnings) > 0 {
		_ = json.Unmarshal(earnings, &a.EarningsAnalysis)
	}
	return &a, nil
}

func emptyIfNilInsights(v []models.KeyInsight) []models.KeyInsight {
	if v == nil {
		return []models.KeyInsight{}
	}
	return v
}

func emptyIfNilQuotes(v []models.Quote) []models.Quote {
	if v == nil {
		return []models.Quote{}
	}
	return v
}

func emptyIfNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func emptyIfNilFrames(v []models.Frame) []models.Frame {
	if v == nil {
		return []models.Frame{}
	}
	return v
}
