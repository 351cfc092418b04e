package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mediabrief/mediabrief/pkg/models"
)

// SessionStore reads browser-session snapshots uploaded out-of-band.
type SessionStore struct {
	db *sql.DB
}

// NewestActive returns the most recently updated active snapshot for the
// platform key, skipping expired rows.
func (s *SessionStore) NewestActive(ctx context.Context, platform string) (*models.BrowserSession, error) {
	var bs models.BrowserSession
	err := s.db.QueryRowContext(ctx,
		`SELECT id, platform, storage_state, is_active, updated_at, expires_at
		 FROM browser_sessions
		 WHERE platform = $1 AND is_active = TRUE
		   AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY updated_at DESC LIMIT 1`, platform).Scan(
		&bs.ID, &bs.Platform, &bs.StorageState, &bs.IsActive, &bs.UpdatedAt, &bs.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load browser session: %w", err)
	}
	return &bs, nil
}
