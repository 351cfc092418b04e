package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabrief/mediabrief/pkg/models"
)

func newMockStore(t *testing.T) (*Stores, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestArticleStore_Save_NewArticle(t *testing.T) {
	stores, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO articles").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec("INSERT INTO article_users").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE articles SET embedding").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := stores.Articles.Save(context.Background(), SaveParams{
		Article: &models.Article{
			URL:           "https://example.com/post",
			Title:         "A Post",
			ContentSource: models.ContentSourceArticle,
			Platform:      "generic",
			SummaryText:   "summary",
		},
		UserID:    "alice",
		Embedding: make([]float32, 384),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), outcome.ArticleID)
	assert.False(t, outcome.AlreadyExisted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleStore_Save_DuplicateURLAttachesOnly(t *testing.T) {
	stores, mock := newMockStore(t)

	mock.ExpectBegin()
	// ON CONFLICT DO NOTHING returns no row when the URL already exists.
	mock.ExpectQuery("INSERT INTO articles").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id FROM articles WHERE url").
		WithArgs("https://example.com/post").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO article_users").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	outcome, err := stores.Articles.Save(context.Background(), SaveParams{
		Article: &models.Article{
			URL:           "https://example.com/post",
			ContentSource: models.ContentSourceArticle,
		},
		UserID:    "bob",
		Embedding: make([]float32, 384),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), outcome.ArticleID)
	assert.True(t, outcome.AlreadyExisted)
	// No media write, no embedding overwrite on the existing row.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleStore_Save_AdministrativeSkipsAssociation(t *testing.T) {
	stores, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO articles").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectExec("UPDATE articles SET embedding").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	outcome, err := stores.Articles.Save(context.Background(), SaveParams{
		Article:   &models.Article{URL: "https://example.com/x", ContentSource: models.ContentSourceArticle},
		Embedding: make([]float32, 384),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), outcome.ArticleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleStore_Save_WritesMediaPointer(t *testing.T) {
	stores, mock := newMockStore(t)

	bucket := "article-media"
	path := "article-media/public/42/media.mp4"
	now := time.Now()
	mime := "video/mp4"
	size := int64(1024)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO articles").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec("UPDATE articles SET media_storage_bucket").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO article_users").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, err := stores.Articles.Save(context.Background(), SaveParams{
		Article: &models.Article{
			URL:           "https://example.com/video",
			ContentSource: models.ContentSourceVideo,
			Media: models.MediaPointer{
				Bucket: &bucket, Path: &path, UploadedAt: &now,
				MimeType: &mime, SizeBytes: &size,
			},
		},
		UserID: "alice",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleStore_GetByURL_NotFound(t *testing.T) {
	stores, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM articles WHERE url").
		WillReturnError(sql.ErrNoRows)

	_, err := stores.Articles.GetByURL(context.Background(), "https://nope.example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArticleStore_ListExpiredMedia(t *testing.T) {
	stores, mock := newMockStore(t)

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectQuery("SELECT id, media_storage_bucket, media_storage_path FROM articles").
		WithArgs("article-media", cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"id", "media_storage_bucket", "media_storage_path"}).
			AddRow(int64(1), "article-media", "article-media/public/1/media.mp3").
			AddRow(int64(2), "article-media", "article-media/public/2/media.mp4"))

	rows, err := stores.Articles.ListExpiredMedia(context.Background(), "article-media", cutoff)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "article-media/public/1/media.mp3", rows[0].Path)
}

func TestArticleStore_ClearMediaPointers(t *testing.T) {
	stores, mock := newMockStore(t)

	mock.ExpectExec("UPDATE articles SET media_storage_bucket = NULL").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := stores.Articles.ClearMediaPointers(context.Background(), 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
