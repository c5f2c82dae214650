package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ProcessedEvent holds the schema definition for the deduplication marker
// consulted by the idempotency filter (§3 ProcessedEvent, §4.3).
type ProcessedEvent struct {
	ent.Schema
}

// Fields of the ProcessedEvent.
func (ProcessedEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("stable_event_id").
			Unique().
			Immutable().
			Comment("{orgId}-{eventType}-{sourceId}"),
		field.String("source_id").
			Immutable(),
		field.String("org_id").
			Immutable(),
		field.Time("processed_at").
			Default(time.Now).
			Immutable(),
		field.Time("expires_at").
			Immutable().
			Comment("processed_at + TTL (default 6h)"),
	}
}

// Indexes of the ProcessedEvent.
func (ProcessedEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("expires_at"),
		index.Fields("org_id"),
	}
}
