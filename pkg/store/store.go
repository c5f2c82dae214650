package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/eventgateway/gateway/ent"
	"github.com/eventgateway/gateway/ent/dlqentry"
	"github.com/eventgateway/gateway/ent/eventaudit"
	"github.com/eventgateway/gateway/ent/executionlog"
	"github.com/eventgateway/gateway/ent/integration"
	"github.com/eventgateway/gateway/ent/pendingevent"
	"github.com/eventgateway/gateway/ent/processedevent"
	"github.com/eventgateway/gateway/ent/scheduledintegration"
	"github.com/eventgateway/gateway/ent/sourcecheckpoint"
)

// Store wraps the generated ent client with the typed operations named in
// the data model: getIntegration, listIntegrations, upsertLog,
// claimScheduled, upsertScheduledStatus, putProcessedEvent,
// getCheckpoint/setCheckpoint, appendDLQ.
type Store struct {
	client *ent.Client
}

// New wraps an ent client as a Store.
func New(client *ent.Client) *Store {
	return &Store{client: client}
}

// Client exposes the underlying ent client for packages that need direct
// generated-query access (the cleanup sweeper, admin read endpoints).
func (s *Store) Client() *ent.Client {
	return s.client
}

// GetIntegration loads a single integration, scoped to orgId.
func (s *Store) GetIntegration(ctx context.Context, orgId, id string) (*ent.Integration, error) {
	row, err := s.client.Integration.Query().
		Where(integration.IDEQ(id), integration.OrgIDEQ(orgId)).
		Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get integration: %v", ErrStoreUnavailable, err)
	}
	return row, nil
}

// ListIntegrations returns every integration for orgId, active or not,
// optionally narrowed to a single event type selector. Results include
// wildcard ("*") selectors; the matcher decides whether they apply and
// filters on is_active and direction.
func (s *Store) ListIntegrations(ctx context.Context, orgId string, eventType string) ([]*ent.Integration, error) {
	q := s.client.Integration.Query().Where(integration.OrgIDEQ(orgId))
	if eventType != "" {
		q = q.Where(integration.Or(
			integration.EventTypeEQ(eventType),
			integration.EventTypeEQ("*"),
		))
	}

	rows, err := q.Order(ent.Desc(integration.FieldUpdatedAt), ent.Asc(integration.FieldID)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list integrations: %v", ErrStoreUnavailable, err)
	}
	return rows, nil
}

// ListActiveIntegrationOrgIDs returns the distinct set of org ids with at
// least one active integration, used by the relational source adapter's
// tenant allowlist (§4.2, §6 allowed_parents_from_integrations).
func (s *Store) ListActiveIntegrationOrgIDs(ctx context.Context) ([]string, error) {
	rows, err := s.client.Integration.Query().
		Where(integration.IsActiveEQ(true)).
		Select(integration.FieldOrgID).
		Strings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list active integration org ids: %v", ErrStoreUnavailable, err)
	}
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, id := range rows {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// UpdateCircuitState performs the narrow single-document find-and-update
// the breaker needs (§5): it never touches any other integration field.
func (s *Store) UpdateCircuitState(ctx context.Context, id string, apply func(*ent.IntegrationUpdateOne) *ent.IntegrationUpdateOne) error {
	upd := apply(s.client.Integration.UpdateOneID(id))
	if err := upd.Exec(ctx); err != nil {
		return fmt.Errorf("%w: update circuit state: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// LogUpsert carries the fields written on each delivery attempt.
type LogUpsert struct {
	TraceID         string
	OrgID           string
	IntegrationID   string
	EventID         string
	Direction       executionlog.Direction
	TriggerType     executionlog.TriggerType
	Status          executionlog.Status
	AttemptCount    int
	LastAttemptAt   time.Time
	ResponseStatus  *int
	ResponseBody    *string
	ErrorMessage    *string
	ErrorCategory   *executionlog.ErrorCategory
	SkipCategory    *string
	RequestSnapshot map[string]interface{}
	FinishedAt      *time.Time
	DurationMs      *int64
	SearchableText  string
}

// UpsertLog updates the execution log in place if traceId already exists,
// otherwise inserts. Retries never create a new log (§4.1).
func (s *Store) UpsertLog(ctx context.Context, in LogUpsert) (*ent.ExecutionLog, error) {
	existing, err := s.client.ExecutionLog.Query().
		Where(executionlog.IDEQ(in.TraceID), executionlog.OrgIDEQ(in.OrgID)).
		Only(ctx)
	switch {
	case err == nil:
		upd := existing.Update().
			SetStatus(in.Status).
			SetAttemptCount(in.AttemptCount).
			SetLastAttemptAt(in.LastAttemptAt)
		upd = applyLogOptionals(upd, in)
		row, err := upd.Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: update execution log: %v", ErrStoreUnavailable, err)
		}
		return row, nil

	case ent.IsNotFound(err):
		create := s.client.ExecutionLog.Create().
			SetID(in.TraceID).
			SetOrgID(in.OrgID).
			SetIntegrationID(in.IntegrationID).
			SetEventID(in.EventID).
			SetDirection(in.Direction).
			SetTriggerType(in.TriggerType).
			SetStatus(in.Status).
			SetAttemptCount(in.AttemptCount).
			SetLastAttemptAt(in.LastAttemptAt)
		create = applyLogCreateOptionals(create, in)
		row, err := create.Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create execution log: %v", ErrStoreUnavailable, err)
		}
		return row, nil

	default:
		return nil, fmt.Errorf("%w: query execution log: %v", ErrStoreUnavailable, err)
	}
}

func applyLogOptionals(upd *ent.ExecutionLogUpdateOne, in LogUpsert) *ent.ExecutionLogUpdateOne {
	if in.ResponseStatus != nil {
		upd = upd.SetResponseStatus(*in.ResponseStatus)
	}
	if in.ResponseBody != nil {
		upd = upd.SetResponseBody(*in.ResponseBody)
	}
	if in.ErrorMessage != nil {
		upd = upd.SetErrorMessage(*in.ErrorMessage)
	}
	if in.ErrorCategory != nil {
		upd = upd.SetErrorCategory(*in.ErrorCategory)
	}
	if in.SkipCategory != nil {
		upd = upd.SetSkipCategory(*in.SkipCategory)
	}
	if in.RequestSnapshot != nil {
		upd = upd.SetRequestSnapshot(in.RequestSnapshot)
	}
	if in.FinishedAt != nil {
		upd = upd.SetFinishedAt(*in.FinishedAt)
	}
	if in.DurationMs != nil {
		upd = upd.SetDurationMs(*in.DurationMs)
	}
	if in.SearchableText != "" {
		upd = upd.SetSearchableTextExtract(in.SearchableText)
	}
	return upd
}

func applyLogCreateOptionals(create *ent.ExecutionLogCreate, in LogUpsert) *ent.ExecutionLogCreate {
	if in.ResponseStatus != nil {
		create = create.SetResponseStatus(*in.ResponseStatus)
	}
	if in.ResponseBody != nil {
		create = create.SetResponseBody(*in.ResponseBody)
	}
	if in.ErrorMessage != nil {
		create = create.SetErrorMessage(*in.ErrorMessage)
	}
	if in.ErrorCategory != nil {
		create = create.SetErrorCategory(*in.ErrorCategory)
	}
	if in.SkipCategory != nil {
		create = create.SetSkipCategory(*in.SkipCategory)
	}
	if in.RequestSnapshot != nil {
		create = create.SetRequestSnapshot(in.RequestSnapshot)
	}
	if in.FinishedAt != nil {
		create = create.SetFinishedAt(*in.FinishedAt)
	}
	if in.DurationMs != nil {
		create = create.SetDurationMs(*in.DurationMs)
	}
	if in.SearchableText != "" {
		create = create.SetSearchableTextExtract(in.SearchableText)
	}
	return create
}

// AttemptInput describes one per-attempt detail row appended alongside an
// UpsertLog call (§4.7 step 6).
type AttemptInput struct {
	ID             string
	AttemptNumber  int
	ResponseStatus *int
	Outcome        string
	ErrorMessage   *string
	DurationMs     *int64
}

// AppendDeliveryAttempt records one outbound HTTP attempt.
func (s *Store) AppendDeliveryAttempt(ctx context.Context, executionLogID string, in AttemptInput) error {
	create := s.client.DeliveryAttempt.Create().
		SetID(in.ID).
		SetExecutionLogID(executionLogID).
		SetAttemptNumber(in.AttemptNumber).
		SetOutcome(in.Outcome)
	if in.ResponseStatus != nil {
		create = create.SetResponseStatus(*in.ResponseStatus)
	}
	if in.ErrorMessage != nil {
		create = create.SetErrorMessage(*in.ErrorMessage)
	}
	if in.DurationMs != nil {
		create = create.SetDurationMs(*in.DurationMs)
	}
	if _, err := create.Save(ctx); err != nil {
		return fmt.Errorf("%w: append delivery attempt: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ClaimScheduled atomically transitions up to limit entries with
// status ∈ {PENDING, OVERDUE} and scheduledFor ≤ now to PROCESSING, and
// returns them. Concurrent callers never receive overlapping entries
// (§4.1, §4.9, §8 "scheduler exclusivity").
func (s *Store) ClaimScheduled(ctx context.Context, now time.Time, limit int) ([]*ent.ScheduledIntegration, error) {
	tx, err := s.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin claim tx: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	candidates, err := tx.ScheduledIntegration.Query().
		Where(
			scheduledintegration.StatusIn(scheduledintegration.StatusPENDING, scheduledintegration.StatusOVERDUE),
			scheduledintegration.ScheduledForLTE(now),
		).
		Order(ent.Asc(scheduledintegration.FieldScheduledFor)).
		Limit(limit).
		ForUpdate(sql.WithLockAction(sql.SkipLocked)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query claimable entries: %v", ErrStoreUnavailable, err)
	}

	claimed := make([]*ent.ScheduledIntegration, 0, len(candidates))
	for _, c := range candidates {
		row, err := c.Update().
			SetStatus(scheduledintegration.StatusPROCESSING).
			SetProcessingStartedAt(now).
			SetLastHeartbeatAt(now).
			Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: claim entry %s: %v", ErrStoreUnavailable, c.ID, err)
		}
		claimed = append(claimed, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit claim: %v", ErrStoreUnavailable, err)
	}
	return claimed, nil
}

// UpsertScheduledStatus applies a narrow update to one scheduled entry
// (SENT/FAILED/CANCELLED transitions, or PENDING retry rescheduling).
func (s *Store) UpsertScheduledStatus(ctx context.Context, id string, apply func(*ent.ScheduledIntegrationUpdateOne) *ent.ScheduledIntegrationUpdateOne) error {
	upd := apply(s.client.ScheduledIntegration.UpdateOneID(id))
	if err := upd.Exec(ctx); err != nil {
		return fmt.Errorf("%w: update scheduled entry: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// InsertScheduled inserts a new scheduled entry (the scheduler calls it to
// materialize the next occurrence of a recurring entry).
func (s *Store) InsertScheduled(ctx context.Context, row *ent.ScheduledIntegrationCreate) (*ent.ScheduledIntegration, error) {
	created, err := row.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: insert scheduled entry: %v", ErrStoreUnavailable, err)
	}
	return created, nil
}

// TouchHeartbeat refreshes last_heartbeat_at for a claimed entry that is
// still being actively worked, so the stuck-PROCESSING sweeper doesn't
// mistake a long-running delivery (e.g. a many-action ACTION_LIST fan-out)
// for an orphaned claim (§4.9 recovery).
func (s *Store) TouchHeartbeat(ctx context.Context, id string) error {
	err := s.client.ScheduledIntegration.UpdateOneID(id).
		SetLastHeartbeatAt(time.Now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: touch heartbeat %s: %v", ErrStoreUnavailable, id, err)
	}
	return nil
}

// SweepStuckProcessing restores any PROCESSING entry whose heartbeat has
// gone stale for longer than idleTimeout back to PENDING (§4.9 recovery).
// It keys off last_heartbeat_at rather than processing_started_at so a
// claim that is still alive and heartbeating — just slow, e.g. a
// many-action ACTION_LIST delivery — is never recovered out from under an
// owner that's still making progress; only a claim whose owner crashed or
// stalled (no heartbeat at all, or none recently) counts as orphaned. An
// entry claimed before TouchHeartbeat support existed and never heartbeat
// is swept by falling back to processing_started_at.
func (s *Store) SweepStuckProcessing(ctx context.Context, idleTimeout time.Duration) (int, error) {
	cutoff := time.Now().Add(-idleTimeout)
	n, err := s.client.ScheduledIntegration.Update().
		Where(
			scheduledintegration.StatusEQ(scheduledintegration.StatusPROCESSING),
			scheduledintegration.Or(
				scheduledintegration.And(
					scheduledintegration.LastHeartbeatAtNotNil(),
					scheduledintegration.LastHeartbeatAtLT(cutoff),
				),
				scheduledintegration.And(
					scheduledintegration.LastHeartbeatAtIsNil(),
					scheduledintegration.ProcessingStartedAtLT(cutoff),
				),
			),
		).
		SetStatus(scheduledintegration.StatusPENDING).
		ClearProcessingStartedAt().
		ClearLastHeartbeatAt().
		Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep stuck processing: %v", ErrStoreUnavailable, err)
	}
	if n > 0 {
		slog.Warn("restored stuck scheduled entries to pending", "count", n)
	}
	return n, nil
}

// CancelByMatch atomically transitions every PENDING entry whose
// cancellation_info matches patientRid within ±window of scheduledDateTime
// to CANCELLED, and returns the count affected (§4.9, §8 scenario 5).
//
// cancellation_info is stored as opaque JSON; the match is evaluated in the
// application layer after a narrower SQL prefilter on org and status, since
// JSON predicate matching varies across ent's SQL dialect support.
func (s *Store) CancelByMatch(ctx context.Context, orgId, patientRid string, scheduledDateTime time.Time, window time.Duration) (int, error) {
	candidates, err := s.client.ScheduledIntegration.Query().
		Where(
			scheduledintegration.OrgIDEQ(orgId),
			scheduledintegration.StatusEQ(scheduledintegration.StatusPENDING),
		).
		All(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: query cancellation candidates: %v", ErrStoreUnavailable, err)
	}

	cancelled := 0
	for _, c := range candidates {
		info := c.CancellationInfo
		if info == nil {
			continue
		}
		rid, _ := info["patientRid"].(string)
		if rid != patientRid {
			continue
		}
		scheduledAt, ok := info["scheduledDateTime"].(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, scheduledAt)
		if err != nil {
			continue
		}
		delta := t.Sub(scheduledDateTime)
		if delta < -window || delta > window {
			continue
		}

		// Guard the update with the same PENDING check the read used: a
		// concurrent ClaimScheduled may have moved this row to PROCESSING
		// (or beyond) between the query above and here. n == 0 means that
		// race happened — the row is no longer ours to cancel, so skip it
		// rather than stomping its new status.
		n, err := s.client.ScheduledIntegration.Update().
			Where(
				scheduledintegration.IDEQ(c.ID),
				scheduledintegration.StatusEQ(scheduledintegration.StatusPENDING),
			).
			SetStatus(scheduledintegration.StatusCANCELLED).
			Save(ctx)
		if err != nil {
			return cancelled, fmt.Errorf("%w: cancel entry %s: %v", ErrStoreUnavailable, c.ID, err)
		}
		cancelled += n
	}

	return cancelled, nil
}

// PutProcessedEvent inserts the deduplication marker. Returns
// ErrAlreadyProcessed on a unique-constraint violation on stableID.
func (s *Store) PutProcessedEvent(ctx context.Context, stableID, sourceID, orgId string, ttl time.Duration) error {
	now := time.Now()
	_, err := s.client.ProcessedEvent.Create().
		SetID(stableID).
		SetSourceID(sourceID).
		SetOrgID(orgId).
		SetProcessedAt(now).
		SetExpiresAt(now.Add(ttl)).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("%w: put processed event: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// GetCheckpoint loads the high-water mark for a (sourceKind, identifier,
// orgId) tuple. A missing checkpoint returns ErrNotFound; callers treat
// that as "start from zero" or apply bootstrap_checkpoint.
func (s *Store) GetCheckpoint(ctx context.Context, sourceKind, identifier, orgId string) (*ent.SourceCheckpoint, error) {
	row, err := s.client.SourceCheckpoint.Query().
		Where(
			sourcecheckpoint.SourceKindEQ(sourceKind),
			sourcecheckpoint.SourceIdentifierEQ(identifier),
			sourcecheckpoint.OrgIDEQ(orgId),
		).Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get checkpoint: %v", ErrStoreUnavailable, err)
	}
	return row, nil
}

// SetCheckpoint advances the checkpoint to lastProcessedID, appending a gap
// record when the jump from the prior value exceeds one (§4.10).
func (s *Store) SetCheckpoint(ctx context.Context, sourceKind, identifier, orgId string, lastProcessedID int64, now time.Time) error {
	existing, err := s.GetCheckpoint(ctx, sourceKind, identifier, orgId)
	if err != nil && err != ErrNotFound {
		return err
	}

	id := fmt.Sprintf("%s:%s:%s", sourceKind, identifier, orgId)

	if existing == nil {
		_, err := s.client.SourceCheckpoint.Create().
			SetID(id).
			SetSourceKind(sourceKind).
			SetSourceIdentifier(identifier).
			SetOrgID(orgId).
			SetLastProcessedID(lastProcessedID).
			SetLastProcessedAt(now).
			Save(ctx)
		if err != nil {
			return fmt.Errorf("%w: create checkpoint: %v", ErrStoreUnavailable, err)
		}
		return nil
	}

	gaps := existing.Gaps
	if lastProcessedID-existing.LastProcessedID > 1 {
		gaps = append(gaps, map[string]interface{}{
			"start":      existing.LastProcessedID + 1,
			"end":        lastProcessedID - 1,
			"detectedAt": now.Format(time.RFC3339),
		})
		slog.Warn("checkpoint gap detected",
			"source_kind", sourceKind, "identifier", identifier, "org_id", orgId,
			"start", existing.LastProcessedID+1, "end", lastProcessedID-1)
	}

	if err := existing.Update().
		SetLastProcessedID(lastProcessedID).
		SetLastProcessedAt(now).
		SetGaps(gaps).
		Exec(ctx); err != nil {
		return fmt.Errorf("%w: advance checkpoint: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// InsertAudit records one audit entry for a received event (§4.10).
func (s *Store) InsertAudit(ctx context.Context, row *ent.EventAuditCreate) (*ent.EventAudit, error) {
	created, err := row.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: insert audit record: %v", ErrStoreUnavailable, err)
	}
	return created, nil
}

// AppendDLQ records a terminal-failed delivery (§4.7 step 7).
func (s *Store) AppendDLQ(ctx context.Context, row *ent.DLQEntryCreate) (*ent.DLQEntry, error) {
	created, err := row.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: append DLQ entry: %v", ErrStoreUnavailable, err)
	}
	return created, nil
}

// ListRetryingLogs loads up to limit execution logs with status=RETRYING,
// triggerType ≠ SCHEDULE, and lastAttemptAt inside the retry window,
// ordered oldest-first (§4.8 step 1).
func (s *Store) ListRetryingLogs(ctx context.Context, windowStart time.Time, limit int) ([]*ent.ExecutionLog, error) {
	rows, err := s.client.ExecutionLog.Query().
		Where(
			executionlog.StatusEQ(executionlog.StatusRETRYING),
			executionlog.TriggerTypeNEQ(executionlog.TriggerTypeSCHEDULE),
			executionlog.LastAttemptAtGTE(windowStart),
		).
		Order(ent.Asc(executionlog.FieldLastAttemptAt)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list retrying logs: %v", ErrStoreUnavailable, err)
	}
	return rows, nil
}

// SweepExpiredRetrying promotes any RETRYING log whose lastAttemptAt fell
// outside windowStart to ABANDONED (§4.8 sweeper).
func (s *Store) SweepExpiredRetrying(ctx context.Context, windowStart time.Time) (int, error) {
	now := time.Now()
	msg := "Exceeded retry window"
	n, err := s.client.ExecutionLog.Update().
		Where(
			executionlog.StatusEQ(executionlog.StatusRETRYING),
			executionlog.TriggerTypeNEQ(executionlog.TriggerTypeSCHEDULE),
			executionlog.LastAttemptAtLT(windowStart),
		).
		SetStatus(executionlog.StatusABANDONED).
		SetErrorMessage(msg).
		SetFinishedAt(now).
		Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep expired retrying: %v", ErrStoreUnavailable, err)
	}
	if n > 0 {
		slog.Warn("abandoned logs past retry window", "count", n)
	}
	return n, nil
}

// IntegrationHasOpenEntries reports whether an integration currently has
// any non-terminal (PENDING or RETRYING) execution log.
func (s *Store) IntegrationHasOpenEntries(ctx context.Context, integrationID string) (bool, error) {
	count, err := s.client.ExecutionLog.Query().
		Where(
			executionlog.IntegrationIDEQ(integrationID),
			executionlog.StatusIn(executionlog.StatusPENDING, executionlog.StatusRETRYING),
		).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: check open entries: %v", ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

// EnqueuePendingEvent inserts a new pending entry in the HTTP-push source
// adapter's work queue (§4.2 "Push adapter").
func (s *Store) EnqueuePendingEvent(ctx context.Context, row *ent.PendingEventCreate) (*ent.PendingEvent, error) {
	created, err := row.Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: enqueue pending event: %v", ErrStoreUnavailable, err)
	}
	return created, nil
}

// ClaimPendingEvents atomically transitions up to limit oldest `pending`
// entries for orgId to `processing` (§4.2 "claim(orgId, batch)").
func (s *Store) ClaimPendingEvents(ctx context.Context, orgId string, limit int) ([]*ent.PendingEvent, error) {
	tx, err := s.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin claim tx: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	q := tx.PendingEvent.Query().
		Where(pendingevent.StatusEQ(pendingevent.StatusPending))
	if orgId != "" {
		q = q.Where(pendingevent.OrgIDEQ(orgId))
	}
	candidates, err := q.
		Order(ent.Asc(pendingevent.FieldReceivedAt)).
		Limit(limit).
		ForUpdate(sql.WithLockAction(sql.SkipLocked)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: query claimable pending events: %v", ErrStoreUnavailable, err)
	}

	now := time.Now()
	claimed := make([]*ent.PendingEvent, 0, len(candidates))
	for _, c := range candidates {
		row, err := c.Update().
			SetStatus(pendingevent.StatusProcessing).
			SetClaimedAt(now).
			Save(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: claim pending event %s: %v", ErrStoreUnavailable, c.ID, err)
		}
		claimed = append(claimed, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit claim: %v", ErrStoreUnavailable, err)
	}
	return claimed, nil
}

// FinishPendingEvent marks a claimed pending event as done or failed.
func (s *Store) FinishPendingEvent(ctx context.Context, id string, ok bool) error {
	status := pendingevent.StatusDone
	if !ok {
		status = pendingevent.StatusFailed
	}
	if err := s.client.PendingEvent.UpdateOneID(id).SetStatus(status).Exec(ctx); err != nil {
		return fmt.Errorf("%w: finish pending event %s: %v", ErrStoreUnavailable, id, err)
	}
	return nil
}

// ResetStalePendingEvents restores any `processing` entry claimed longer
// than idleTimeout ago back to `pending` (§4.2 "reset-stale").
func (s *Store) ResetStalePendingEvents(ctx context.Context, idleTimeout time.Duration) (int, error) {
	cutoff := time.Now().Add(-idleTimeout)
	n, err := s.client.PendingEvent.Update().
		Where(
			pendingevent.StatusEQ(pendingevent.StatusProcessing),
			pendingevent.ClaimedAtLT(cutoff),
		).
		SetStatus(pendingevent.StatusPending).
		ClearClaimedAt().
		Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: reset stale pending events: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// DeleteExpiredProcessedEvents removes dedup markers past their TTL,
// bounding the processed_events table and freeing stable ids for the
// idempotency window to actually roll forward (§3 ProcessedEvent, 6h TTL).
func (s *Store) DeleteExpiredProcessedEvents(ctx context.Context) (int, error) {
	n, err := s.client.ProcessedEvent.Delete().
		Where(processedevent.ExpiresAtLT(time.Now())).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: delete expired processed events: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// DeleteOldExecutionLogs removes terminal execution logs last attempted
// before cutoff, cascading to their delivery_attempts and dlq_entry rows
// (§3 ExecutionLog retention).
func (s *Store) DeleteOldExecutionLogs(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.client.ExecutionLog.Delete().
		Where(
			executionlog.LastAttemptAtLT(cutoff),
			executionlog.StatusIn(
				executionlog.StatusSUCCESS,
				executionlog.StatusFAILED,
				executionlog.StatusABANDONED,
				executionlog.StatusSKIPPED,
			),
		).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: delete old execution logs: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// DeleteOldAuditRecords removes event_audit rows older than cutoff (§6 env
// toggle retention_days).
func (s *Store) DeleteOldAuditRecords(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.client.EventAudit.Delete().
		Where(eventaudit.CreatedAtLT(cutoff)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: delete old audit records: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// DeleteResolvedDLQEntries removes DLQ entries in resolved or abandoned
// status that were created before cutoff. There is no dedicated error_logs
// collection in this store; this is the closest analog, so
// RetentionConfig.ErrorLogRetentionDays governs it instead.
func (s *Store) DeleteResolvedDLQEntries(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.client.DLQEntry.Delete().
		Where(
			dlqentry.CreatedAtLT(cutoff),
			dlqentry.StatusIn(dlqentry.StatusResolved, dlqentry.StatusAbandoned),
		).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: delete resolved dlq entries: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// ListExecutionLogs returns up to limit execution logs for orgId (all orgs
// if empty), optionally narrowed to status, newest first. Backs the
// admin-facing read surface (§6).
func (s *Store) ListExecutionLogs(ctx context.Context, orgId string, status *executionlog.Status, limit, offset int) ([]*ent.ExecutionLog, error) {
	q := s.client.ExecutionLog.Query()
	if orgId != "" {
		q = q.Where(executionlog.OrgIDEQ(orgId))
	}
	if status != nil {
		q = q.Where(executionlog.StatusEQ(*status))
	}
	rows, err := q.Order(ent.Desc(executionlog.FieldStartedAt)).Limit(limit).Offset(offset).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list execution logs: %v", ErrStoreUnavailable, err)
	}
	return rows, nil
}

// CountExecutionLogsByStatus returns the number of execution logs in each
// terminal/in-flight status, for the admin stats surface (§6).
func (s *Store) CountExecutionLogsByStatus(ctx context.Context) (map[executionlog.Status]int, error) {
	statuses := []executionlog.Status{
		executionlog.StatusPENDING, executionlog.StatusRETRYING, executionlog.StatusSUCCESS,
		executionlog.StatusFAILED, executionlog.StatusABANDONED, executionlog.StatusSKIPPED,
	}
	counts := make(map[executionlog.Status]int, len(statuses))
	for _, st := range statuses {
		n, err := s.client.ExecutionLog.Query().Where(executionlog.StatusEQ(st)).Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: count execution logs by status: %v", ErrStoreUnavailable, err)
		}
		counts[st] = n
	}
	return counts, nil
}

// RecentDurations returns up to limit finished execution logs' duration_ms,
// newest first, used to compute processing-time percentiles (§6 stats).
func (s *Store) RecentDurations(ctx context.Context, limit int) ([]int64, error) {
	rows, err := s.client.ExecutionLog.Query().
		Where(executionlog.DurationMsNotNil()).
		Order(ent.Desc(executionlog.FieldStartedAt)).
		Limit(limit).
		Select(executionlog.FieldDurationMs).
		Ints(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load recent durations: %v", ErrStoreUnavailable, err)
	}
	out := make([]int64, len(rows))
	for i, v := range rows {
		out[i] = int64(v)
	}
	return out, nil
}

// RetryExecutionLogs bulk-transitions the named execution logs back to
// RETRYING and stamps last_attempt_at with now (§6 admin bulk-retry
// contract). The retry engine redelivers such a log once its backoff has
// elapsed, provided its attempt count is still within the integration's
// retry_count and its trigger type is not SCHEDULE; any other log stays
// RETRYING until the sweeper abandons it.
func (s *Store) RetryExecutionLogs(ctx context.Context, ids []string) (int, error) {
	n, err := s.client.ExecutionLog.Update().
		Where(executionlog.IDIn(ids...)).
		SetStatus(executionlog.StatusRETRYING).
		SetLastAttemptAt(time.Now()).
		Save(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: retry execution logs: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// DeleteExecutionLogs bulk-deletes the named execution logs (§6 admin
// bulk-delete contract), cascading to their delivery_attempts/dlq_entry.
func (s *Store) DeleteExecutionLogs(ctx context.Context, ids []string) (int, error) {
	n, err := s.client.ExecutionLog.Delete().Where(executionlog.IDIn(ids...)).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: delete execution logs: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// ListDLQEntries returns up to limit DLQ entries for orgId (all orgs if
// empty), newest first.
func (s *Store) ListDLQEntries(ctx context.Context, orgId string, limit, offset int) ([]*ent.DLQEntry, error) {
	q := s.client.DLQEntry.Query()
	if orgId != "" {
		q = q.Where(dlqentry.OrgIDEQ(orgId))
	}
	rows, err := q.Order(ent.Desc(dlqentry.FieldCreatedAt)).Limit(limit).Offset(offset).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list dlq entries: %v", ErrStoreUnavailable, err)
	}
	return rows, nil
}

// ListScheduledIntegrations returns up to limit scheduled entries for orgId
// (all orgs if empty), soonest-due first.
func (s *Store) ListScheduledIntegrations(ctx context.Context, orgId string, limit, offset int) ([]*ent.ScheduledIntegration, error) {
	q := s.client.ScheduledIntegration.Query()
	if orgId != "" {
		q = q.Where(scheduledintegration.OrgIDEQ(orgId))
	}
	rows, err := q.Order(ent.Asc(scheduledintegration.FieldScheduledFor)).Limit(limit).Offset(offset).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list scheduled integrations: %v", ErrStoreUnavailable, err)
	}
	return rows, nil
}

// ListCheckpoints returns every source checkpoint, for the admin stats
// surface's lag/gap reporting (§6).
func (s *Store) ListCheckpoints(ctx context.Context) ([]*ent.SourceCheckpoint, error) {
	rows, err := s.client.SourceCheckpoint.Query().All(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list checkpoints: %v", ErrStoreUnavailable, err)
	}
	return rows, nil
}
