// Package engine wires the ingest pipeline's data flow: C2 (source
// adapters) → C3 (idempotency) → C10 (audit, receive) → C4 (matcher) →
// [C5 transform → C6 breaker check → C7 deliverer] → C10 (audit, finalize)
// (§2 "Data flow").
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/eventgateway/gateway/ent/eventaudit"
	"github.com/eventgateway/gateway/ent/executionlog"
	"github.com/eventgateway/gateway/pkg/audit"
	"github.com/eventgateway/gateway/pkg/config"
	"github.com/eventgateway/gateway/pkg/deliver"
	"github.com/eventgateway/gateway/pkg/idempotency"
	"github.com/eventgateway/gateway/pkg/live"
	"github.com/eventgateway/gateway/pkg/matcher"
	"github.com/eventgateway/gateway/pkg/source"
	"github.com/google/uuid"
)

// Ingest drains one or more source adapters on independent timers, running
// every event through the idempotency filter, matcher and delivery
// pipeline, and recording one audit entry per event.
type Ingest struct {
	idempotency *idempotency.Filter
	matcher     *matcher.Matcher
	deliverer   *deliver.Deliverer
	auditor     *audit.Auditor
	cfg         *config.IngestConfig
	log         *slog.Logger
	live        *live.Manager

	adapters []source.Adapter
	push     []*source.PushAdapter

	stopCh chan struct{}
	done   chan struct{}
}

// New creates an Ingest engine. adapters are the poll/commit sources
// (relational, broker); push are the claim/finish sources fed by the HTTP
// push endpoint. liveMgr may be nil, in which case per-event fan-out to the
// admin dashboard is skipped.
func New(idem *idempotency.Filter, m *matcher.Matcher, d *deliver.Deliverer, a *audit.Auditor, cfg *config.IngestConfig, adapters []source.Adapter, push []*source.PushAdapter, liveMgr *live.Manager) *Ingest {
	return &Ingest{
		idempotency: idem,
		matcher:     m,
		deliverer:   d,
		auditor:     a,
		cfg:         cfg,
		log:         slog.With("component", "engine"),
		live:        liveMgr,
		adapters:    adapters,
		push:        push,
		stopCh:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start runs one poll loop per poll/commit adapter and one claim loop per
// push adapter, each on its own timer, until ctx is cancelled or Stop is
// called.
func (e *Ingest) Start(ctx context.Context) {
	for _, a := range e.adapters {
		go e.runPollLoop(ctx, a)
	}
	for _, p := range e.push {
		go e.runClaimLoop(ctx, p)
	}
}

// Stop signals every loop to exit and blocks until all have.
func (e *Ingest) Stop() {
	close(e.stopCh)
	for range e.adapters {
		<-e.done
	}
	for range e.push {
		<-e.done
	}
}

func (e *Ingest) jitteredInterval() time.Duration {
	if e.cfg.PollIntervalJitter <= 0 {
		return e.cfg.PollInterval
	}
	return e.cfg.PollInterval + time.Duration(rand.Int63n(int64(e.cfg.PollIntervalJitter)))
}

func (e *Ingest) runPollLoop(ctx context.Context, a source.Adapter) {
	defer func() { e.done <- struct{}{} }()
	log := e.log.With("adapter", a.ID())

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-time.After(e.jitteredInterval()):
		}

		events, cursor, err := a.Poll(ctx, e.cfg.BatchSize)
		if err != nil {
			log.Error("poll failed", "error", err)
			continue
		}
		for _, ev := range events {
			e.process(ctx, ev)
		}
		if cursor != "" {
			if err := a.Commit(ctx, cursor); err != nil {
				log.Error("commit failed", "cursor", cursor, "error", err)
			}
		}
	}
}

// pushClaimIdleTimeout is how long a push-queue entry may sit in
// PROCESSING before a sweeper considers its claim abandoned and resets it
// to PENDING (§4.2 "Push adapter").
const pushClaimIdleTimeout = 5 * time.Minute

func (e *Ingest) runClaimLoop(ctx context.Context, p *source.PushAdapter) {
	defer func() { e.done <- struct{}{} }()
	log := e.log.With("adapter", p.ID())

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-time.After(e.jitteredInterval()):
		}

		if n, err := p.ResetStale(ctx, pushClaimIdleTimeout); err != nil {
			log.Error("reset stale claims failed", "error", err)
		} else if n > 0 {
			log.Info("reset stale push claims", "count", n)
		}

		claimed, err := p.Claim(ctx, "", e.cfg.BatchSize)
		if err != nil {
			log.Error("claim failed", "error", err)
			continue
		}
		for _, c := range claimed {
			ok := e.process(ctx, c.Event)
			if err := p.Finish(ctx, c.ID, ok); err != nil {
				log.Error("finish failed", "id", c.ID, "error", err)
			}
		}
	}
}

// process runs one event through the full pipeline and reports whether it
// completed. It returns false only when a store-level error in the
// idempotency insert or the matcher lookup stops processing, which the push
// adapter records as `failed`; stale events, duplicates, and events whose
// deliveries fail or retry all return true.
func (e *Ingest) process(ctx context.Context, ev source.Event) bool {
	start := time.Now()
	stableID := fmt.Sprintf("%s-%s-%s", ev.OrgID, ev.EventType, ev.SourceID)
	eventID := uuid.NewString()

	if e.cfg.MaxEventAgeDays > 0 && time.Since(ev.ReceivedAt) > time.Duration(e.cfg.MaxEventAgeDays)*24*time.Hour {
		e.auditor.Append(ctx, audit.Record{
			OrgID: ev.OrgID, EventID: eventID, EventType: ev.EventType,
			Source: ev.Source, SourceID: ev.SourceID,
			Status: eventaudit.StatusSKIPPED, SkipCategory: "STALE",
			ProcessingTime: time.Since(start), Payload: ev.Payload,
		})
		return true
	}

	if err := e.idempotency.Accept(ctx, stableID, ev.SourceID, ev.OrgID); err != nil {
		if !errors.Is(err, idempotency.ErrDuplicate) {
			e.log.Error("idempotency check failed", "org_id", ev.OrgID, "stable_id", stableID, "error", err)
			return false
		}
		e.auditor.Append(ctx, audit.Record{
			OrgID: ev.OrgID, EventID: eventID, EventType: ev.EventType,
			Source: ev.Source, SourceID: ev.SourceID,
			Status: eventaudit.StatusSKIPPED, SkipCategory: "DUPLICATE",
			ProcessingTime: time.Since(start), Payload: ev.Payload,
		})
		return true
	}

	integrations, err := e.matcher.Resolve(ctx, ev.OrgID, ev.EventType)
	if err != nil {
		e.log.Error("matcher resolve failed", "org_id", ev.OrgID, "event_type", ev.EventType, "error", err)
		return false
	}

	delivered, failed := 0, 0
	for _, integ := range integrations {
		traceID := uuid.NewString()
		outcome, err := e.deliverer.Attempt(ctx, integ, traceID, eventID, ev.Payload, executionlog.TriggerTypeEVENT, 1)
		if err != nil {
			e.log.Error("delivery attempt failed", "integration_id", integ.ID, "trace_id", traceID, "error", err)
			failed++
			continue
		}
		if outcome == deliver.OutcomeSuccess {
			delivered++
		} else if outcome == deliver.OutcomeFailed || outcome == deliver.OutcomeRetry {
			failed++
		}
	}

	status := eventaudit.StatusDELIVERED
	if len(integrations) == 0 {
		status = eventaudit.StatusSKIPPED
	} else if delivered == 0 {
		status = eventaudit.StatusFAILED
	}

	e.auditor.Append(ctx, audit.Record{
		OrgID: ev.OrgID, EventID: eventID, EventType: ev.EventType,
		Source: ev.Source, SourceID: ev.SourceID,
		Status: status,
		Delivery: audit.DeliveryStatus{
			IntegrationsMatched: len(integrations),
			DeliveredCount:      delivered,
			FailedCount:         failed,
		},
		ProcessingTime: time.Since(start),
		Payload:        ev.Payload,
	})

	if e.live != nil {
		channel := live.OrgChannel(ev.OrgID)
		e.live.Publish(channel, live.Event{
			Type:    "event.processed",
			Channel: channel,
			Payload: map[string]interface{}{
				"eventId":             eventID,
				"eventType":           ev.EventType,
				"status":              string(status),
				"integrationsMatched": len(integrations),
				"deliveredCount":      delivered,
				"failedCount":         failed,
			},
		})
	}
	return true
}
