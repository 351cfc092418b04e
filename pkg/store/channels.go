package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mediabrief/mediabrief/pkg/models"
)

// ChannelStore persists the shared source-URL → preferred-URL mapping.
type ChannelStore struct {
	db *sql.DB
}

// GetPreferred returns the preferred alternative content URL for a source
// URL, or ErrNotFound.
func (s *ChannelStore) GetPreferred(ctx context.Context, sourceURL string) (*models.KnownChannel, error) {
	var ch models.KnownChannel
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source_url, preferred_url, note, created_at
		 FROM known_channels WHERE source_url = $1`, sourceURL).Scan(
		&ch.ID, &ch.SourceURL, &ch.PreferredURL, &ch.Note, &ch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get known channel: %w", err)
	}
	return &ch, nil
}

// Upsert records or replaces the preferred URL for a source.
func (s *ChannelStore) Upsert(ctx context.Context, sourceURL, preferredURL string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO known_channels (source_url, preferred_url) VALUES ($1, $2)
		 ON CONFLICT (source_url) DO UPDATE SET preferred_url = EXCLUDED.preferred_url`,
		sourceURL, preferredURL)
	if err != nil {
		return fmt.Errorf("failed to upsert known channel: %w", err)
	}
	return nil
}
