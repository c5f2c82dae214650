// Package audit implements the audit and checkpoint component (C10): one
// audit record per received event, a compliance-safe payload summary built
// from an external allowlist, and checkpoint advancement with gap
// detection (§4.10).
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventgateway/gateway/ent"
	"github.com/eventgateway/gateway/ent/eventaudit"
	"github.com/eventgateway/gateway/pkg/external"
	"github.com/eventgateway/gateway/pkg/store"
	"github.com/google/uuid"
)

// DeliveryStatus summarizes how many integrations matched and how many
// deliveries succeeded or failed for one event (§4.10 deliveryStatus).
type DeliveryStatus struct {
	IntegrationsMatched int
	DeliveredCount      int
	FailedCount         int
}

// Record is the input to Append: everything known about one received event
// by the time its audit trail is written.
type Record struct {
	OrgID          string
	EventID        string
	EventType      string
	Source         string
	SourceID       string
	Status         eventaudit.Status
	SkipCategory   string
	Delivery       DeliveryStatus
	ProcessingTime time.Duration
	Payload        map[string]interface{}
	Timeline       []TimelineStep
}

// TimelineStep is one ordered step in an audit record's timeline, from
// ingest through terminal outcome.
type TimelineStep struct {
	At   time.Time
	Note string
}

// Auditor appends audit records and advances source checkpoints.
type Auditor struct {
	store     *store.Store
	allowlist external.PayloadSummaryAllowlist
	log       *slog.Logger
}

// New creates an Auditor. allowlist may be nil, in which case payload
// summaries are always empty (fail-closed on the compliance allowlist).
func New(s *store.Store, allowlist external.PayloadSummaryAllowlist) *Auditor {
	return &Auditor{store: s, allowlist: allowlist, log: slog.With("component", "audit")}
}

// Append writes one audit record for a received event (§4.10). Store
// unavailability degrades to best-effort stderr logging rather than
// failing the delivery path (§7 "store-unavailable during logging").
func (a *Auditor) Append(ctx context.Context, rec Record) {
	summary, err := a.buildSummary(ctx, rec)
	if err != nil {
		a.log.Warn("payload summary allowlist lookup failed, recording empty summary",
			"org_id", rec.OrgID, "event_id", rec.EventID, "error", err)
	}

	hash := payloadHash(rec.Payload)
	timeline := make([]map[string]interface{}, 0, len(rec.Timeline))
	for _, step := range rec.Timeline {
		timeline = append(timeline, map[string]interface{}{
			"at":   step.At.Format(time.RFC3339Nano),
			"note": step.Note,
		})
	}

	create := a.store.Client().EventAudit.Create().
		SetID(uuid.NewString()).
		SetOrgID(rec.OrgID).
		SetEventID(rec.EventID).
		SetEventType(rec.EventType).
		SetSource(rec.Source).
		SetSourceID(rec.SourceID).
		SetStatus(rec.Status).
		SetIntegrationsMatched(rec.Delivery.IntegrationsMatched).
		SetDeliveredCount(rec.Delivery.DeliveredCount).
		SetFailedCount(rec.Delivery.FailedCount).
		SetPayloadSummary(summary).
		SetPayloadHash(hash).
		SetTimeline(timeline)
	if rec.SkipCategory != "" {
		create = create.SetSkipCategory(rec.SkipCategory)
	}
	if rec.ProcessingTime > 0 {
		create = create.SetProcessingTimeMs(rec.ProcessingTime.Milliseconds())
	}

	if _, err := a.store.InsertAudit(ctx, create); err != nil {
		a.log.Error("audit append failed, degrading to stderr",
			"org_id", rec.OrgID, "event_id", rec.EventID, "status", rec.Status, "error", err)
	}
}

func (a *Auditor) buildSummary(ctx context.Context, rec Record) (map[string]interface{}, error) {
	if a.allowlist == nil || rec.Payload == nil {
		return map[string]interface{}{}, nil
	}
	fields, err := a.allowlist.AllowedFields(ctx, rec.OrgID, rec.EventType)
	if err != nil {
		return map[string]interface{}{}, err
	}
	summary := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if v, ok := rec.Payload[f]; ok {
			summary[f] = v
		}
	}
	return summary, nil
}

// payloadHash returns the hex-encoded SHA-256 of payload's canonical JSON
// encoding, used for tamper/replay detection on the stored audit record.
func payloadHash(payload map[string]interface{}) string {
	encoded, err := json.Marshal(payload)
	if err != nil {
		encoded = []byte(fmt.Sprintf("%v", payload))
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// Checkpointer advances and reads per-source checkpoints.
type Checkpointer struct {
	store *store.Store
}

// NewCheckpointer creates a Checkpointer.
func NewCheckpointer(s *store.Store) *Checkpointer {
	return &Checkpointer{store: s}
}

// Advance moves a source's checkpoint forward to lastProcessedID, recording
// a gap if the jump skipped ids (§4.10 "Checkpointing").
func (c *Checkpointer) Advance(ctx context.Context, sourceKind, identifier, orgID string, lastProcessedID int64) error {
	return c.store.SetCheckpoint(ctx, sourceKind, identifier, orgID, lastProcessedID, time.Now())
}

// Get returns the current checkpoint, or nil if the source has never
// advanced one.
func (c *Checkpointer) Get(ctx context.Context, sourceKind, identifier, orgID string) (*ent.SourceCheckpoint, error) {
	row, err := c.store.GetCheckpoint(ctx, sourceKind, identifier, orgID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return row, nil
}
