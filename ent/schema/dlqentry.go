package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// DLQEntry holds the schema definition for a terminal-failed delivery
// retained for operator inspection and manual resolution (§3 DLQEntry).
type DLQEntry struct {
	ent.Schema
}

// Fields of the DLQEntry.
func (DLQEntry) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("execution_log_id").
			Immutable(),
		field.String("integration_id").
			Immutable(),
		field.String("org_id").
			Immutable(),
		field.JSON("payload", map[string]interface{}{}),
		field.String("error_message"),
		field.String("error_code").
			Optional().
			Nillable(),
		field.String("error_category").
			Optional().
			Nillable(),
		field.Int("status_code").
			Optional().
			Nillable(),
		field.Enum("status").
			Values("pending", "retrying", "resolved", "abandoned").
			Default("pending"),
		field.Int("retry_count").
			Default(0).
			NonNegative(),
		field.Int("max_retries").
			Default(0),
		field.Time("next_retry_at").
			Optional().
			Nillable(),
		field.String("retry_strategy").
			Optional().
			Nillable(),
		field.JSON("resolution_metadata", map[string]interface{}{}).
			Optional(),
		field.Time("resolved_at").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the DLQEntry.
func (DLQEntry) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("execution_log", ExecutionLog.Type).
			Ref("dlq_entry").
			Field("execution_log_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the DLQEntry.
func (DLQEntry) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("org_id", "status"),
		index.Fields("integration_id"),
	}
}
