package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// DeliveryAttempt holds the schema definition for a single outbound HTTP
// request and its recorded outcome (§3 Execution pipeline step 6: "per-attempt
// detail row appended to delivery_attempts").
type DeliveryAttempt struct {
	ent.Schema
}

// Fields of the DeliveryAttempt.
func (DeliveryAttempt) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("execution_log_id").
			Immutable(),
		field.Int("attempt_number").
			Immutable().
			Min(1),
		field.Time("attempted_at").
			Default(time.Now).
			Immutable(),
		field.Int("response_status").
			Optional().
			Nillable(),
		field.String("outcome").
			Immutable().
			Comment("success | retryable_failure | terminal_failure | skipped"),
		field.String("error_message").
			Optional().
			Nillable(),
		field.Int64("duration_ms").
			Optional().
			Nillable(),
	}
}

// Edges of the DeliveryAttempt.
func (DeliveryAttempt) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("execution_log", ExecutionLog.Type).
			Ref("delivery_attempts").
			Field("execution_log_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the DeliveryAttempt.
func (DeliveryAttempt) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("execution_log_id", "attempt_number"),
	}
}
