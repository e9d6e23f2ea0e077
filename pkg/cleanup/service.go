// Package cleanup enforces the soft-delete retention window of spec.md
// §6 (SOFT_DELETE_RETENTION_DAYS): a supervised background loop that
// periodically hard-deletes documents whose soft-delete grace period has
// elapsed.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/nnmtech/verisynthos/pkg/config"
	"github.com/nnmtech/verisynthos/pkg/store"
)

// DefaultInterval is how often the sweep runs between ticks. The
// retention window itself (how old a soft-deleted document must be) is
// config.Config.SoftDeleteRetentionDays, not this interval.
const DefaultInterval = 1 * time.Hour

// Service periodically hard-deletes documents past their retention
// window. Idempotent and safe to run from multiple processes: a document
// already hard-deleted by another instance is simply absent from the
// next sweep.
type Service struct {
	documents store.DocumentStore
	retention time.Duration
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService returns a Service sweeping documents according to cfg's
// retention window, on DefaultInterval.
func NewService(cfg *config.Config, documents store.DocumentStore) *Service {
	return &Service{
		documents: documents,
		retention: time.Duration(cfg.SoftDeleteRetentionDays) * 24 * time.Hour,
		interval:  DefaultInterval,
	}
}

// Start launches the background sweep loop. Calling Start twice on an
// already-running Service is a no-op.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started", "retention", s.retention, "interval", s.interval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	count, err := s.documents.HardDeleteExpired(ctx, cutoff)
	if err != nil {
		slog.Error("retention sweep failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention sweep hard-deleted expired documents", "count", count)
	}
}
