// Package scheduler implements the persistent timer queue (C9): atomic
// claim of due ScheduledIntegration entries, recurrence expansion,
// cancellation-by-match, and a sweeper that recovers stuck claims (§4.9).
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/eventgateway/gateway/ent"
	"github.com/eventgateway/gateway/ent/executionlog"
	"github.com/eventgateway/gateway/ent/scheduledintegration"
	"github.com/eventgateway/gateway/pkg/config"
	"github.com/eventgateway/gateway/pkg/deliver"
	"github.com/eventgateway/gateway/pkg/store"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the claim tick and sweeper on independent timers.
type Scheduler struct {
	store     *store.Store
	deliverer *deliver.Deliverer
	cfg       *config.SchedulerConfig
	log       *slog.Logger

	stopCh chan struct{}
	done   chan struct{}
}

// New creates a Scheduler.
func New(s *store.Store, d *deliver.Deliverer, cfg *config.SchedulerConfig) *Scheduler {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	return &Scheduler{
		store:     s,
		deliverer: d,
		cfg:       cfg,
		log:       slog.With("component", "scheduler"),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the claim and sweep loops until ctx is cancelled or Stop is
// called.
func (sch *Scheduler) Start(ctx context.Context) {
	go sch.runTickLoop(ctx)
	go sch.runSweepLoop(ctx)
}

// Stop signals both loops to exit and blocks until they have.
func (sch *Scheduler) Stop() {
	close(sch.stopCh)
	<-sch.done
	<-sch.done
}

func (sch *Scheduler) runTickLoop(ctx context.Context) {
	ticker := time.NewTicker(sch.cfg.TickInterval)
	defer ticker.Stop()
	defer func() { sch.done <- struct{}{} }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sch.stopCh:
			return
		case <-ticker.C:
			if err := sch.Tick(ctx); err != nil {
				sch.log.Error("scheduler tick failed", "error", err)
			}
		}
	}
}

func (sch *Scheduler) runSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sch.cfg.SweepInterval)
	defer ticker.Stop()
	defer func() { sch.done <- struct{}{} }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sch.stopCh:
			return
		case <-ticker.C:
			if _, err := sch.store.SweepStuckProcessing(ctx, sch.cfg.ProcessingIdleTimeout); err != nil {
				sch.log.Error("scheduler sweep failed", "error", err)
			}
		}
	}
}

// recurringDescriptor is the shape of ScheduledIntegration.recurring_descriptor.
type recurringDescriptor struct {
	Schedule             string `json:"schedule"`
	RemainingOccurrences int    `json:"remainingOccurrences"`
}

// Tick claims up to BatchSize due entries and processes each (§4.9 steps
// 1-2).
func (sch *Scheduler) Tick(ctx context.Context) error {
	claimed, err := sch.store.ClaimScheduled(ctx, time.Now(), sch.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("claim scheduled entries: %w", err)
	}

	for _, entry := range claimed {
		if err := sch.process(ctx, entry); err != nil {
			sch.log.Error("process scheduled entry failed", "id", entry.ID, "error", err)
		}
	}
	return nil
}

func (sch *Scheduler) process(ctx context.Context, entry *ent.ScheduledIntegration) error {
	integ, err := sch.store.GetIntegration(ctx, entry.OrgID, entry.IntegrationID)
	if err != nil {
		return fmt.Errorf("load integration %s: %w", entry.IntegrationID, err)
	}

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	go sch.heartbeat(heartbeatCtx, entry.ID)

	traceID := uuid.NewString()
	nextAttempt := entry.AttemptCount + 1
	outcome, err := sch.deliverer.Attempt(ctx, integ, traceID, entry.ID, entry.Payload, executionlog.TriggerTypeSCHEDULE, nextAttempt)
	stopHeartbeat()
	if err != nil {
		return fmt.Errorf("delivery attempt: %w", err)
	}

	now := time.Now()

	switch outcome {
	case deliver.OutcomeSuccess:
		if err := sch.store.UpsertScheduledStatus(ctx, entry.ID, func(u *ent.ScheduledIntegrationUpdateOne) *ent.ScheduledIntegrationUpdateOne {
			return u.
				SetStatus(scheduledintegration.StatusSENT).
				SetDeliveredAt(now).
				SetDeliveryLogID(traceID).
				SetAttemptCount(nextAttempt)
		}); err != nil {
			return err
		}
		return sch.maybeEmitNextOccurrence(ctx, entry)

	case deliver.OutcomeSkipped:
		// Circuit open: treat like a transient failure, reschedule.
		return sch.rescheduleOrFail(ctx, entry, integ, nextAttempt, now)

	case deliver.OutcomeRetry:
		return sch.rescheduleOrFail(ctx, entry, integ, nextAttempt, now)

	default: // OutcomeFailed (terminal client failure or abandonment)
		return sch.store.UpsertScheduledStatus(ctx, entry.ID, func(u *ent.ScheduledIntegrationUpdateOne) *ent.ScheduledIntegrationUpdateOne {
			return u.SetStatus(scheduledintegration.StatusFAILED).SetAttemptCount(nextAttempt)
		})
	}
}

func (sch *Scheduler) rescheduleOrFail(ctx context.Context, entry *ent.ScheduledIntegration, integ *ent.Integration, attemptCount int, now time.Time) error {
	if attemptCount > integ.RetryCount {
		return sch.store.UpsertScheduledStatus(ctx, entry.ID, func(u *ent.ScheduledIntegrationUpdateOne) *ent.ScheduledIntegrationUpdateOne {
			return u.SetStatus(scheduledintegration.StatusFAILED).SetAttemptCount(attemptCount)
		})
	}

	delay := backoff(sch.cfg.BaseDelay, sch.cfg.MaxDelay, attemptCount)
	return sch.store.UpsertScheduledStatus(ctx, entry.ID, func(u *ent.ScheduledIntegrationUpdateOne) *ent.ScheduledIntegrationUpdateOne {
		return u.
			SetStatus(scheduledintegration.StatusPENDING).
			SetScheduledFor(now.Add(delay)).
			SetAttemptCount(attemptCount).
			ClearProcessingStartedAt().
			ClearLastHeartbeatAt()
	})
}

// heartbeat refreshes entry's last_heartbeat_at on every tick until ctx is
// cancelled (by process() returning), proving to the sweeper that the
// claim is still alive even if the delivery itself — e.g. a many-action
// ACTION_LIST fan-out — takes longer than a single tick.
func (sch *Scheduler) heartbeat(ctx context.Context, entryID string) {
	ticker := time.NewTicker(sch.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sch.store.TouchHeartbeat(context.Background(), entryID); err != nil {
				sch.log.Warn("heartbeat touch failed", "id", entryID, "error", err)
			}
		}
	}
}

// maybeEmitNextOccurrence inserts the next PENDING entry for a recurring
// integration with occurrences remaining (§4.9 step 2 "On success").
func (sch *Scheduler) maybeEmitNextOccurrence(ctx context.Context, entry *ent.ScheduledIntegration) error {
	if entry.RecurringDescriptor == nil {
		return nil
	}

	encoded, err := json.Marshal(entry.RecurringDescriptor)
	if err != nil {
		return fmt.Errorf("encode recurring descriptor: %w", err)
	}
	var desc recurringDescriptor
	if err := json.Unmarshal(encoded, &desc); err != nil {
		return fmt.Errorf("decode recurring descriptor: %w", err)
	}
	if desc.RemainingOccurrences <= 0 {
		return nil
	}

	schedule, err := cron.ParseStandard(desc.Schedule)
	if err != nil {
		return fmt.Errorf("parse recurrence schedule %q: %w", desc.Schedule, err)
	}
	next := schedule.Next(entry.ScheduledFor)

	desc.RemainingOccurrences--
	nextDescriptor := map[string]interface{}{
		"schedule":             desc.Schedule,
		"remainingOccurrences": desc.RemainingOccurrences,
	}

	create := sch.store.Client().ScheduledIntegration.Create().
		SetID(uuid.NewString()).
		SetIntegrationID(entry.IntegrationID).
		SetOrgID(entry.OrgID).
		SetScheduledFor(next).
		SetStatus(scheduledintegration.StatusPENDING).
		SetPayload(entry.Payload).
		SetRecurringDescriptor(nextDescriptor)
	if entry.OriginalPayload != nil {
		create = create.SetOriginalPayload(entry.OriginalPayload)
	}
	if entry.CancellationInfo != nil {
		create = create.SetCancellationInfo(entry.CancellationInfo)
	}

	_, err = sch.store.InsertScheduled(ctx, create)
	return err
}

// CancelByMatch cancels PENDING entries whose cancellation_info matches
// (patientRid, scheduledDateTime within the configured window) (§4.9
// "Cancellation-by-match").
func (sch *Scheduler) CancelByMatch(ctx context.Context, orgID, patientRid string, scheduledDateTime time.Time) (int, error) {
	return sch.store.CancelByMatch(ctx, orgID, patientRid, scheduledDateTime, sch.cfg.CancellationMatchWindow)
}

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
