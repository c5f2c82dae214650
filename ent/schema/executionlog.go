package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ExecutionLog holds the schema definition for the lifecycle record
// spanning every attempt of one delivery (§3 ExecutionLog). Retries update
// this row in place; the trace id is the upsert key.
type ExecutionLog struct {
	ent.Schema
}

// Fields of the ExecutionLog.
func (ExecutionLog) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("trace_id").
			Unique().
			Immutable(),
		field.String("org_id").
			Immutable(),
		field.String("integration_id").
			Immutable(),
		field.String("event_id").
			Immutable().
			Comment("Stable event id this log was triggered by"),
		field.Enum("direction").
			Values("OUTBOUND", "INBOUND").
			Default("OUTBOUND"),
		field.Enum("trigger_type").
			Values("EVENT", "SCHEDULE", "MANUAL", "REPLAY").
			Default("EVENT"),
		field.Enum("status").
			Values("PENDING", "RETRYING", "SUCCESS", "FAILED", "ABANDONED", "SKIPPED").
			Default("PENDING"),
		field.Int("attempt_count").
			Default(1).
			Min(1),
		field.Time("last_attempt_at").
			Optional().
			Nillable(),
		field.Int("response_status").
			Optional().
			Nillable(),
		field.Text("response_body").
			Optional().
			Nillable().
			Comment("Truncated response body"),
		field.String("error_message").
			Optional().
			Nillable(),
		field.Enum("error_category").
			Values("INFRASTRUCTURE", "CLIENT", "TRANSFORMATION", "DUPLICATE", "CIRCUIT_OPEN", "CANCELLED", "EXHAUSTED").
			Optional().
			Nillable(),
		field.String("skip_category").
			Optional().
			Nillable().
			Comment("Set when status=SKIPPED: DUPLICATE or CIRCUIT_OPEN"),
		field.JSON("request_snapshot", map[string]interface{}{}).
			Optional().
			Comment("Method/URL/headers/body sent on the most recent attempt"),
		field.Time("started_at").
			Default(time.Now).
			Immutable(),
		field.Time("finished_at").
			Optional().
			Nillable(),
		field.Int64("duration_ms").
			Optional().
			Nillable(),
		field.Text("searchable_text_extract").
			Optional().
			Comment("Full-text indexed summary for admin search"),
	}
}

// Edges of the ExecutionLog.
func (ExecutionLog) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("integration", Integration.Type).
			Ref("execution_logs").
			Field("integration_id").
			Unique().
			Required().
			Immutable(),
		edge.To("delivery_attempts", DeliveryAttempt.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("dlq_entry", DLQEntry.Type).
			Unique().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the ExecutionLog.
func (ExecutionLog) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("org_id", "status"),
		index.Fields("integration_id", "status"),
		index.Fields("status", "last_attempt_at"),
		index.Fields("event_id"),
	}
}
