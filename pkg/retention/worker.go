// Package retention trims the audit journal on a fixed interval.
package retention

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/itops-collator/pkg/logging"
	"github.com/rmax-ai/itops-collator/pkg/telemetry"
)

// Pruner deletes journal entries ingested before cutoff.
type Pruner interface {
	PruneEvents(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config controls how long audit events are kept.
type Config struct {
	Retention time.Duration
	Interval  time.Duration
}

// Enabled reports whether pruning should run at all.
func (c Config) Enabled() bool {
	return c.Retention > 0
}

type Worker struct {
	pruner   Pruner
	archiver *Archiver
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	config Config
}

func NewWorker(p Pruner, cfg Config, logger *zap.Logger) *Worker {
	return &Worker{
		pruner: p,
		config: cfg,
		logger: logging.OrNop(logger).Named("retention"),
		now:    time.Now,
	}
}

// SetArchiver makes every prune archive the expiring events first.
func (w *Worker) SetArchiver(a *Archiver) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.archiver = a
}

func (w *Worker) UpdateConfig(cfg Config) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = cfg
}

// Run prunes once immediately and then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	w.mu.RLock()
	cfg := w.config
	w.mu.RUnlock()

	if !cfg.Enabled() {
		w.logger.Info("audit pruning disabled")
		return
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	w.logger.Info("starting prune worker", zap.Duration("interval", interval), zap.Duration("retention", cfg.Retention))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("prune worker stopping")
			return
		case <-ticker.C:
			w.Prune(ctx)
		}
	}
}

// Prune deletes everything older than the retention window and returns the
// number of events removed.
func (w *Worker) Prune(ctx context.Context) int64 {
	w.mu.RLock()
	cfg := w.config
	archiver := w.archiver
	w.mu.RUnlock()

	if !cfg.Enabled() {
		return 0
	}

	cutoff := w.now().Add(-cfg.Retention)
	var archived int64
	if archiver != nil {
		n, err := archiver.ArchiveBefore(ctx, cutoff)
		archived = n
		if err != nil {
			// Keep the rest in the journal until the archive accepts it.
			w.logger.Error("archive failed, skipping prune", zap.Int64("archived", n), zap.Error(err))
			return archived
		}
		if n > 0 {
			w.logger.Info("archived audit events", zap.Int64("archived", n), zap.Time("cutoff", cutoff))
		}
	}

	deleted, err := w.pruner.PruneEvents(ctx, cutoff)
	if err != nil {
		w.logger.Error("prune failed", zap.Error(err))
		return archived
	}
	if deleted > 0 {
		telemetry.AuditEventsPruned.Add(float64(deleted))
		w.logger.Info("pruned audit events", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return archived + deleted
}
