package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabrief/mediabrief/pkg/models"
)

func TestQueueStore_Insert_New(t *testing.T) {
	stores, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO content_queue").
		WillReturnResult(sqlmock.NewResult(1, 1))

	inserted, err := stores.Queue.Insert(context.Background(), &models.QueueItem{
		URL:         "https://example.com/ep/1",
		Title:       "Episode 1",
		ContentType: models.QueueContentPodcast,
	})
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestQueueStore_Insert_DuplicateURLIsNoop(t *testing.T) {
	stores, mock := newMockStore(t)

	// ON CONFLICT DO NOTHING: zero rows affected.
	mock.ExpectExec("INSERT INTO content_queue").
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := stores.Queue.Insert(context.Background(), &models.QueueItem{
		URL:         "https://example.com/ep/1",
		ContentType: models.QueueContentPodcast,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestQueueStore_UpdateStatus_NotFound(t *testing.T) {
	stores, mock := newMockStore(t)

	mock.ExpectExec("UPDATE content_queue SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := stores.Queue.UpdateStatus(context.Background(), 99, models.QueueStatusCompleted)
	assert.ErrorIs(t, err, ErrNotFound)
}
