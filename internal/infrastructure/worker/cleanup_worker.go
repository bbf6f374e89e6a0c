package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes stored archives older than a cutoff.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// CleanupWorkerConfig holds configuration for the archive cleanup worker
type CleanupWorkerConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// DefaultCleanupWorkerConfig returns default configuration
func DefaultCleanupWorkerConfig() CleanupWorkerConfig {
	return CleanupWorkerConfig{
		Interval:  10 * time.Minute,
		Retention: time.Hour,
	}
}

// ArchiveCleanupWorker periodically deletes export archives past retention.
type ArchiveCleanupWorker struct {
	config  CleanupWorkerConfig
	sweeper Sweeper
	now     func() time.Time
	logger  *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	removed   int
}

// NewArchiveCleanupWorker creates a new cleanup worker
func NewArchiveCleanupWorker(config CleanupWorkerConfig, sweeper Sweeper, logger *zap.Logger) *ArchiveCleanupWorker {
	defaults := DefaultCleanupWorkerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	return &ArchiveCleanupWorker{
		config:  config,
		sweeper: sweeper,
		now:     time.Now,
		logger:  logger,
	}
}

// Start runs one sweep immediately, then one per interval.
func (w *ArchiveCleanupWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("cleanup worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("ArchiveCleanupWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("retention", w.config.Retention))

	go w.loop(ctx)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (w *ArchiveCleanupWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("ArchiveCleanupWorker stopped", zap.Int("removed_total", w.Removed()))
	return nil
}

// Name returns the worker name for identification
func (w *ArchiveCleanupWorker) Name() string {
	return "ArchiveCleanupWorker"
}

// Removed returns how many archives the worker has deleted so far.
func (w *ArchiveCleanupWorker) Removed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removed
}

func (w *ArchiveCleanupWorker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ArchiveCleanupWorker) sweep(ctx context.Context) {
	cutoff := w.now().Add(-w.config.Retention)
	n, err := w.sweeper.Sweep(ctx, cutoff)

	w.mu.Lock()
	w.removed += n
	w.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		w.logger.Error("Archive sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("Expired archives removed",
			zap.Int("count", n),
			zap.Time("cutoff", cutoff))
	}
}
