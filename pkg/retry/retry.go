// Package retry implements the retry engine (C8): a timer-driven cycle
// that reattempts RETRYING execution logs with exponential backoff, and a
// sweeper that abandons logs past the retry window (§4.8).
package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/eventgateway/gateway/pkg/config"
	"github.com/eventgateway/gateway/pkg/deliver"
	"github.com/eventgateway/gateway/pkg/store"
)

// Engine runs the retry cycle and sweeper on independent timers.
type Engine struct {
	store     *store.Store
	deliverer *deliver.Deliverer
	cfg       *config.RetryConfig
	log       *slog.Logger

	stopCh chan struct{}
	done   chan struct{}
}

// New creates a retry Engine.
func New(s *store.Store, d *deliver.Deliverer, cfg *config.RetryConfig) *Engine {
	return &Engine{
		store:     s,
		deliverer: d,
		cfg:       cfg,
		log:       slog.With("component", "retry"),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the retry cycle and sweeper loops until ctx is cancelled or
// Stop is called.
func (e *Engine) Start(ctx context.Context) {
	go e.runCycleLoop(ctx)
	go e.runSweepLoop(ctx)
}

// Stop signals both loops to exit and blocks until they have.
func (e *Engine) Stop() {
	close(e.stopCh)
	<-e.done
	<-e.done
}

func (e *Engine) runCycleLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	defer func() { e.done <- struct{}{} }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			if err := e.RunCycle(ctx); err != nil {
				e.log.Error("retry cycle failed", "error", err)
			}
		}
	}
}

func (e *Engine) runSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()
	defer func() { e.done <- struct{}{} }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			windowStart := time.Now().Add(-e.cfg.Window)
			if _, err := e.store.SweepExpiredRetrying(ctx, windowStart); err != nil {
				e.log.Error("retry sweep failed", "error", err)
			}
		}
	}
}

// RunCycle loads up to the configured batch size of RETRYING logs due for
// another attempt and redelivers them (§4.8 steps 1-4).
func (e *Engine) RunCycle(ctx context.Context) error {
	windowStart := time.Now().Add(-e.cfg.Window)
	logs, err := e.store.ListRetryingLogs(ctx, windowStart, e.cfg.BatchSize)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, log := range logs {
		integ, err := e.store.GetIntegration(ctx, log.OrgID, log.IntegrationID)
		if err != nil {
			e.log.Warn("retry: integration lookup failed, skipping", "trace_id", log.ID, "error", err)
			continue
		}

		// Logs past the retry ceiling are left RETRYING; the sweeper
		// abandons them once their last attempt falls outside the window.
		if log.AttemptCount > integ.RetryCount {
			continue
		}

		delay := backoff(e.cfg.BaseDelay, e.cfg.MaxDelay, log.AttemptCount)
		nextDue := log.LastAttemptAt.Add(delay)
		if now.Before(nextDue) {
			continue
		}

		nextAttempt := log.AttemptCount + 1
		_, err = e.deliverer.Attempt(ctx, integ, log.ID, log.EventID, log.RequestSnapshot, log.TriggerType, nextAttempt)
		if err != nil {
			e.log.Error("retry attempt failed", "trace_id", log.ID, "error", err)
		}
	}
	return nil
}

// backoff computes min(base · 2^(attempt-1), max) (§4.8 step 3).
func backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	scaled := float64(base) * math.Pow(2, float64(attempt-1))
	if scaled > float64(max) {
		return max
	}
	return time.Duration(scaled)
}
