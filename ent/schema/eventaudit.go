package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EventAudit holds the schema definition for the one-record-per-received-event
// audit trail (§4.10). Unlike ExecutionLog, an audit record is written even
// when no integration matched or the event was rejected as a duplicate.
type EventAudit struct {
	ent.Schema
}

// Fields of the EventAudit.
func (EventAudit) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("org_id").
			Immutable(),
		field.String("event_id").
			Immutable().
			Comment("Stable event id (orgId-eventType-sourceId)"),
		field.String("event_type").
			Immutable(),
		field.String("source").
			Immutable().
			Comment("Source adapter id this event was read from"),
		field.String("source_id").
			Immutable(),
		field.Enum("status").
			Values("DELIVERED", "SKIPPED", "FAILED", "STUCK").
			Immutable(),
		field.String("skip_category").
			Optional().
			Nillable().
			Comment("Set when status=SKIPPED: DUPLICATE or CIRCUIT_OPEN"),
		field.Int("integrations_matched").
			Default(0),
		field.Int("delivered_count").
			Default(0),
		field.Int("failed_count").
			Default(0),
		field.Int64("processing_time_ms").
			Optional().
			Nillable(),
		field.JSON("payload_summary", map[string]interface{}{}).
			Optional().
			Comment("Allowlisted payload fields only, never the raw payload"),
		field.String("payload_hash").
			Immutable().
			Comment("SHA-256 of the raw payload, for tamper/replay detection"),
		field.JSON("timeline", []map[string]interface{}{}).
			Optional().
			Comment("Ordered {at, note} steps from ingest through terminal outcome"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Indexes of the EventAudit.
func (EventAudit) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("org_id", "created_at"),
		index.Fields("event_id"),
		index.Fields("status"),
	}
}
