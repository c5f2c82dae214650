package source

import (
	"context"
	"fmt"
	"time"

	"github.com/eventgateway/gateway/pkg/store"
	"github.com/google/uuid"
)

// ClaimedPushEvent pairs a pending-event's store id (needed for Finish)
// with the normalized Event handed to the ingest pipeline.
type ClaimedPushEvent struct {
	ID    string
	Event Event
}

// PushAdapter is the HTTP-push source variant's bounded work queue (§4.2
// "Push adapter"): a claimable pending|processing|done|failed queue fed by
// an HTTP handler, distinct from the poll/commit Adapter contract because
// it has no single monotonic cursor.
type PushAdapter struct {
	id    string
	store *store.Store
}

// NewPushAdapter creates a PushAdapter backed by the gateway's own store.
func NewPushAdapter(id string, s *store.Store) *PushAdapter {
	return &PushAdapter{id: id, store: s}
}

// ID identifies this adapter instance.
func (a *PushAdapter) ID() string { return a.id }

// Enqueue records a new pending entry. Called by the POST /events handler
// (§6 "HTTP push").
func (a *PushAdapter) Enqueue(ctx context.Context, orgID, eventType, source string, payload map[string]interface{}) (string, error) {
	id := uuid.NewString()
	_, err := a.store.EnqueuePendingEvent(ctx, a.store.Client().PendingEvent.Create().
		SetID(id).
		SetOrgID(orgID).
		SetEventType(eventType).
		SetSource(source).
		SetPayload(payload))
	if err != nil {
		return "", fmt.Errorf("enqueue push event: %w", err)
	}
	return id, nil
}

// Claim atomically transitions up to batch oldest `pending` entries for
// orgID to `processing`. An empty orgID claims across every tenant.
func (a *PushAdapter) Claim(ctx context.Context, orgID string, batch int) ([]ClaimedPushEvent, error) {
	rows, err := a.store.ClaimPendingEvents(ctx, orgID, batch)
	if err != nil {
		return nil, fmt.Errorf("claim push events: %w", err)
	}

	claimed := make([]ClaimedPushEvent, 0, len(rows))
	for _, row := range rows {
		claimed = append(claimed, ClaimedPushEvent{
			ID: row.ID,
			Event: Event{
				OrgID:     row.OrgID,
				EventType: row.EventType,
				Source:    row.Source,
				// The push body (§6) carries no caller-supplied source id;
				// the queue row's own id stands in for it, so the stable
				// dedup id is per accepted call rather than per upstream
				// event.
				SourceID:   row.ID,
				Payload:    row.Payload,
				ReceivedAt: row.ReceivedAt,
			},
		})
	}
	return claimed, nil
}

// Finish marks a claimed entry `done` or `failed` once the ingest pipeline
// has processed it.
func (a *PushAdapter) Finish(ctx context.Context, id string, ok bool) error {
	return a.store.FinishPendingEvent(ctx, id, ok)
}

// ResetStale restores any entry `processing` longer than idleTimeout back
// to `pending` (§4.2 "reset-stale", default 5 min).
func (a *PushAdapter) ResetStale(ctx context.Context, idleTimeout time.Duration) (int, error) {
	return a.store.ResetStalePendingEvents(ctx, idleTimeout)
}
