package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mediabrief/mediabrief/pkg/models"
)

// SourceStore persists per-user content-source subscriptions.
type SourceStore struct {
	db *sql.DB
}

const sourceColumns = `id, user_id, title, url, source_type, is_active, last_checked_at, created_at`

// Create inserts a subscription for a user.
func (s *SourceStore) Create(ctx context.Context, src *models.ContentSourceRow) (*models.ContentSourceRow, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO content_sources (user_id, title, url, source_type, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+sourceColumns,
		src.UserID, src.Title, src.URL, src.SourceType, src.IsActive).Scan(
		&src.ID, &src.UserID, &src.Title, &src.URL, &src.SourceType,
		&src.IsActive, &src.LastCheckedAt, &src.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", err)
	}
	return src, nil
}

// ListByUser returns all subscriptions for a user.
func (s *SourceStore) ListByUser(ctx context.Context, userID string) ([]models.ContentSourceRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM content_sources WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

// ListActiveByType returns every active subscription of the given type,
// across all users. Discovery sweeps iterate this.
func (s *SourceStore) ListActiveByType(ctx context.Context, sourceType models.SourceType) ([]models.ContentSourceRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM content_sources
		 WHERE source_type = $1 AND is_active = TRUE ORDER BY id`,
		sourceType)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sources: %w", err)
	}
	defer rows.Close()
	return scanSources(rows)
}

// UpdateParams holds the mutable subscription fields; nil means unchanged.
type UpdateParams struct {
	Title    *string
	URL      *string
	IsActive *bool
}

// Update patches a subscription owned by the user.
func (s *SourceStore) Update(ctx context.Context, id int64, userID string, p UpdateParams) (*models.ContentSourceRow, error) {
	var src models.ContentSourceRow
	err := s.db.QueryRowContext(ctx,
		`UPDATE content_sources SET
			title = COALESCE($1, title),
			url = COALESCE($2, url),
			is_active = COALESCE($3, is_active)
		 WHERE id = $4 AND user_id = $5
		 RETURNING `+sourceColumns,
		p.Title, p.URL, p.IsActive, id, userID).Scan(
		&src.ID, &src.UserID, &src.Title, &src.URL, &src.SourceType,
		&src.IsActive, &src.LastCheckedAt, &src.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update source: %w", err)
	}
	return &src, nil
}

// Delete removes a subscription owned by the user.
func (s *SourceStore) Delete(ctx context.Context, id int64, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM content_sources WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchChecked records a completed discovery sweep of the source.
func (s *SourceStore) TouchChecked(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE content_sources SET last_checked_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to touch source: %w", err)
	}
	return nil
}

func scanSources(rows *sql.Rows) ([]models.ContentSourceRow, error) {
	var out []models.ContentSourceRow
	for rows.Next() {
		var src models.ContentSourceRow
		if err := rows.Scan(&src.ID, &src.UserID, &src.Title, &src.URL,
			&src.SourceType, &src.IsActive, &src.LastCheckedAt, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}
