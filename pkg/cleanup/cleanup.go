// Package cleanup enforces the retention policies named in §6's
// environment toggles: TTL expiry for processed_events, execution_logs,
// event_audit, and resolved DLQ entries.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventgateway/gateway/pkg/config"
	"github.com/eventgateway/gateway/pkg/store"
)

// Service periodically deletes rows past their retention window.
type Service struct {
	store *store.Store
	cfg   *config.RetentionConfig
	log   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a cleanup Service.
func New(s *store.Store, cfg *config.RetentionConfig) *Service {
	return &Service{store: s, cfg: cfg, log: slog.With("component", "cleanup")}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	s.log.Info("cleanup service started", "interval", s.cfg.CleanupInterval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.log.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.RunAll(ctx)

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunAll(ctx)
		}
	}
}

// RunAll runs every retention sweep once.
func (s *Service) RunAll(ctx context.Context) {
	s.sweep(ctx, "processed_events", func() (int, error) {
		return s.store.DeleteExpiredProcessedEvents(ctx)
	})
	s.sweep(ctx, "execution_logs", func() (int, error) {
		cutoff := time.Now().AddDate(0, 0, -s.cfg.ExecutionLogRetentionDays)
		return s.store.DeleteOldExecutionLogs(ctx, cutoff)
	})
	s.sweep(ctx, "event_audit", func() (int, error) {
		cutoff := time.Now().AddDate(0, 0, -s.cfg.AuditRetentionDays)
		return s.store.DeleteOldAuditRecords(ctx, cutoff)
	})
	s.sweep(ctx, "dlq_entries", func() (int, error) {
		cutoff := time.Now().AddDate(0, 0, -s.cfg.ErrorLogRetentionDays)
		return s.store.DeleteResolvedDLQEntries(ctx, cutoff)
	})
}

func (s *Service) sweep(_ context.Context, collection string, fn func() (int, error)) {
	n, err := fn()
	if err != nil {
		s.log.Error("retention sweep failed", "collection", collection, "error", err)
		return
	}
	if n > 0 {
		s.log.Info("retention sweep removed rows", "collection", collection, "count", n)
	}
}
