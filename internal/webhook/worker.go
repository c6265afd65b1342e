package webhook

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultQueueSize   = 256
	defaultMaxAttempts = 5
)

type sender interface {
	Send(ctx context.Context, event EventPayload) error
}

// Worker delivers queued events in the background, retrying failures with
// exponential backoff.
type Worker struct {
	service     sender
	logger      *slog.Logger
	queue       chan job
	retries     chan job
	maxAttempts int
	baseDelay   time.Duration
	stopCh      chan struct{}
}

func NewWorker(service *Service, logger *slog.Logger) *Worker {
	return newWorker(service, logger, time.Second)
}

func newWorker(service sender, logger *slog.Logger, baseDelay time.Duration) *Worker {
	return &Worker{
		service:     service,
		logger:      logger,
		queue:       make(chan job, defaultQueueSize),
		retries:     make(chan job, defaultQueueSize),
		maxAttempts: defaultMaxAttempts,
		baseDelay:   baseDelay,
		stopCh:      make(chan struct{}),
	}
}

// Enqueue schedules an event for delivery. Returns false when the queue is full.
func (w *Worker) Enqueue(event EventPayload) bool {
	select {
	case w.queue <- job{event: event}:
		return true
	default:
		w.logger.Warn("webhook queue full, dropping event", "type", event.Type)
		return false
	}
}

func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("webhook worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("webhook worker stopped")
			return
		case <-w.stopCh:
			w.logger.Info("webhook worker stopped")
			return
		case j := <-w.queue:
			w.process(ctx, j)
		case j := <-w.retries:
			w.process(ctx, j)
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) process(ctx context.Context, j job) {
	err := w.service.Send(ctx, j.event)
	if err == nil {
		w.logger.Info("webhook delivered", "type", j.event.Type, "attempts", j.attempts+1)
		return
	}

	j.attempts++
	if j.attempts >= w.maxAttempts {
		w.logger.Error("webhook failed permanently",
			"type", j.event.Type,
			"attempts", j.attempts,
			"error", err,
		)
		return
	}

	delay := time.Duration(1<<(j.attempts-1)) * w.baseDelay
	w.logger.Info("webhook scheduled for retry",
		"type", j.event.Type,
		"attempts", j.attempts,
		"delay", delay,
		"error", err,
	)

	time.AfterFunc(delay, func() {
		select {
		case w.retries <- j:
		case <-ctx.Done():
		case <-w.stopCh:
		}
	})
}
