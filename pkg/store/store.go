// Package store implements raw-SQL persistence over the shared Postgres pool.
package store

import (
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Stores bundles the per-table stores over one connection pool.
type Stores struct {
	Articles        *ArticleStore
	PrivateArticles *PrivateArticleStore
	Queue           *QueueStore
	Sources         *SourceStore
	Channels        *ChannelStore
	Sessions        *SessionStore
}

// New creates the store bundle.
func New(db *sql.DB) *Stores {
	return &Stores{
		Articles:        &ArticleStore{db: db},
		PrivateArticles: &PrivateArticleStore{db: db},
		Queue:           &QueueStore{db: db},
		Sources:         &SourceStore{db: db},
		Channels:        &ChannelStore{db: db},
		Sessions:        &SessionStore{db: db},
	}
}
