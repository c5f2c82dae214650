package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// PendingEvent holds the schema definition for the HTTP-push source
// adapter's bounded work queue (§4.2 "Push adapter").
type PendingEvent struct {
	ent.Schema
}

// Fields of the PendingEvent.
func (PendingEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("org_id").
			Immutable(),
		field.String("event_type").
			Immutable(),
		field.JSON("payload", map[string]interface{}{}).
			Immutable(),
		field.String("source").
			Immutable().
			Comment("Caller-supplied source label"),
		field.Enum("status").
			Values("pending", "processing", "done", "failed").
			Default("pending"),
		field.Time("received_at").
			Default(time.Now).
			Immutable(),
		field.Time("claimed_at").
			Optional().
			Nillable().
			Comment("Set when claimed; used by reset-stale"),
	}
}

// Indexes of the PendingEvent.
func (PendingEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("status", "received_at"),
		index.Fields("org_id"),
	}
}
