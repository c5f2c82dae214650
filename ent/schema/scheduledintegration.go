package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ScheduledIntegration holds the schema definition for a future-dated
// delivery entry, possibly recurring (§3 ScheduledIntegration).
type ScheduledIntegration struct {
	ent.Schema
}

// Fields of the ScheduledIntegration.
func (ScheduledIntegration) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("integration_id").
			Immutable(),
		field.String("org_id").
			Immutable(),
		field.Time("scheduled_for"),
		field.Enum("status").
			Values("PENDING", "OVERDUE", "PROCESSING", "SENT", "FAILED", "CANCELLED").
			Default("PENDING"),
		field.Int("attempt_count").
			Default(0).
			NonNegative(),
		field.JSON("payload", map[string]interface{}{}).
			Comment("Pre-transformed payload to deliver"),
		field.JSON("original_payload", map[string]interface{}{}).
			Optional(),
		field.JSON("recurring_descriptor", map[string]interface{}{}).
			Optional().
			Comment("interval, remaining occurrence count, occurrence index"),
		field.JSON("cancellation_info", map[string]interface{}{}).
			Optional().
			Comment("Match descriptor consulted by cancelByMatch"),
		field.Time("processing_started_at").
			Optional().
			Nillable().
			Comment("Set when claimed; used by the stuck-PROCESSING sweeper"),
		field.Time("last_heartbeat_at").
			Optional().
			Nillable().
			Comment("Touched while a claimed entry is actively being worked; the stuck-PROCESSING sweeper compares this, not processing_started_at, so a long but live ACTION_LIST delivery is never mistaken for an orphan"),
		field.Time("delivered_at").
			Optional().
			Nillable(),
		field.String("delivery_log_id").
			Optional().
			Nillable().
			Comment("ExecutionLog id produced on successful delivery"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the ScheduledIntegration.
func (ScheduledIntegration) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("integration", Integration.Type).
			Ref("scheduled_integrations").
			Field("integration_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the ScheduledIntegration.
//
// The (status, scheduled_for) composite backs claimScheduled's windowed
// SELECT ... FOR UPDATE SKIP LOCKED scan.
func (ScheduledIntegration) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "scheduled_for"),
		index.Fields("org_id", "status"),
		index.Fields("processing_started_at"),
		index.Fields("last_heartbeat_at"),
	}
}
