package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SourceCheckpoint holds the schema definition for the per-source
// high-water mark used to resume ingestion after restart and to detect
// gaps in monotonic source ids (§3 SourceCheckpoint, §4.10).
type SourceCheckpoint struct {
	ent.Schema
}

// Fields of the SourceCheckpoint.
func (SourceCheckpoint) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable().
			Comment("{sourceKind}:{sourceIdentifier}:{orgId}"),
		field.String("source_kind").
			Immutable(),
		field.String("source_identifier").
			Immutable().
			Comment("Table name, topic name, or push-queue name"),
		field.String("org_id").
			Immutable(),
		field.Int64("last_processed_id").
			Default(0),
		field.Time("last_processed_at").
			Optional().
			Nillable(),
		field.JSON("gaps", []map[string]interface{}{}).
			Optional().
			Comment("[{start, end, detectedAt}], append-only, never auto-healed"),
	}
}

// Indexes of the SourceCheckpoint.
func (SourceCheckpoint) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("source_kind", "source_identifier", "org_id").
			Unique(),
	}
}
