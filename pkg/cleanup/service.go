// Package cleanup enforces the media retention window on stored articles.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/mediabrief/mediabrief/pkg/config"
	"github.com/mediabrief/mediabrief/pkg/store"
)

// MediaRepo is the per-table surface cleanup sweeps over. Both article
// stores satisfy it.
type MediaRepo interface {
	ListExpiredMedia(ctx context.Context, bucket string, cutoff time.Time) ([]store.ExpiredMedia, error)
	ClearMediaPointers(ctx context.Context, id int64) error
}

// ObjectDeleter removes objects from the expiring bucket.
type ObjectDeleter interface {
	Delete(ctx context.Context, bucket, key string) error
	ExpiringBucket() string
}

// Service periodically deletes expired media objects and clears their
// pointer columns. Rows in the permanent bucket are never touched.
// Operations are idempotent: a storage delete failing does not block the
// database clear, and the two converge on the next run.
type Service struct {
	cfg     config.CleanupConfig
	repos   []MediaRepo
	objects ObjectDeleter

	cancel context.CancelFunc
	done   chan struct{}

	log *slog.Logger
}

// NewService creates the retention worker over the given article stores.
func NewService(cfg config.CleanupConfig, objects ObjectDeleter, repos ...MediaRepo) *Service {
	return &Service{
		cfg:     cfg,
		repos:   repos,
		objects: objects,
		log:     slog.With("component", "cleanup"),
	}
}

// Start launches the background retention loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	s.log.Info("Cleanup service started",
		"retention_days", s.cfg.RetentionDays, "interval", s.cfg.Interval)
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps every store once. Returns the number of rows cleared.
func (s *Service) RunOnce(ctx context.Context) int {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	bucket := s.objects.ExpiringBucket()

	cleared := 0
	for _, repo := range s.repos {
		cleared += s.sweep(ctx, repo, bucket, cutoff)
	}
	if cleared > 0 {
		s.log.Info("Retention: cleared expired media", "count", cleared)
	}
	return cleared
}

func (s *Service) sweep(ctx context.Context, repo MediaRepo, bucket string, cutoff time.Time) int {
	expired, err := repo.ListExpiredMedia(ctx, bucket, cutoff)
	if err != nil {
		s.log.Error("Retention: listing expired media failed", "error", err)
		return 0
	}

	cleared := 0
	for _, row := range expired {
		if ctx.Err() != nil {
			return cleared
		}

		// Missing objects are fine: a previous run may have deleted the
		// object but failed the database update.
		if err := s.objects.Delete(ctx, row.Bucket, row.Path); err != nil {
			s.log.Warn("Retention: object delete failed, clearing pointers anyway",
				"article_id", row.ID, "path", row.Path, "error", err)
		}

		if err := repo.ClearMediaPointers(ctx, row.ID); err != nil {
			s.log.Error("Retention: pointer clear failed", "article_id", row.ID, "error", err)
			continue
		}
		cleared++
	}
	return cleared
}
