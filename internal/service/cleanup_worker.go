package service

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner is the part of LivenessService the cleanup worker drives.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupWorker expires stale liveness sessions periodically
type CleanupWorker struct {
	cleaner  Cleaner
	logger   *slog.Logger
	interval time.Duration
}

// NewCleanupWorker creates a new session cleanup worker
func NewCleanupWorker(cleaner Cleaner, logger *slog.Logger, interval time.Duration) *CleanupWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CleanupWorker{
		cleaner:  cleaner,
		logger:   logger,
		interval: interval,
	}
}

// Run starts the worker loop
func (w *CleanupWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("session cleanup worker started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session cleanup worker stopped")
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *CleanupWorker) cleanup(ctx context.Context) {
	count, err := w.cleaner.CleanupExpired(ctx)
	if err != nil {
		w.logger.Error("failed to cleanup liveness sessions", "error", err)
		return
	}

	w.logger.Debug("session cleanup completed", "expired", count)
}
