package discovery

import (
	"context"
	"time"
)

// Worker runs the two sweeps on independent periodic triggers.
type Worker struct {
	svc *Service

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker creates the background discovery worker.
func NewWorker(svc *Service) *Worker {
	return &Worker{svc: svc}
}

// Start launches the sweep loops. Each runs once immediately, then on its
// configured interval.
func (w *Worker) Start(ctx context.Context) {
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{}, 2)

	go w.loop(ctx, w.svc.cfg.FeedInterval, func(ctx context.Context) {
		if _, err := w.svc.CheckFeeds(ctx); err != nil && ctx.Err() == nil {
			w.svc.log.Error("Scheduled feed sweep failed", "error", err)
		}
	})
	go w.loop(ctx, w.svc.cfg.HistoryInterval, func(ctx context.Context) {
		if _, err := w.svc.CheckHistory(ctx); err != nil && ctx.Err() == nil {
			w.svc.log.Error("Scheduled history sweep failed", "error", err)
		}
	})

	w.svc.log.Info("Discovery worker started",
		"feed_interval", w.svc.cfg.FeedInterval,
		"history_interval", w.svc.cfg.HistoryInterval)
}

// Stop signals the loops to exit and waits for both.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	<-w.done
	w.svc.log.Info("Discovery worker stopped")
}

func (w *Worker) loop(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	defer func() { w.done <- struct{}{} }()

	sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx)
		}
	}
}
