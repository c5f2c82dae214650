package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Integration holds the schema definition for one configured outbound
// endpoint bound to a tenant and an event-type selector (§3 Integration).
type Integration struct {
	ent.Schema
}

// Fields of the Integration.
func (Integration) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("org_id").
			Immutable().
			Comment("Tenant id; immutable post-create"),
		field.String("org_unit_id").
			Optional().
			Nillable().
			Comment("Sub-entity owning this integration, if scoped below the tenant"),
		field.String("event_type").
			Comment("Event-type selector; '*' matches any event type"),
		field.Enum("direction").
			Values("OUTBOUND", "INBOUND").
			Default("OUTBOUND"),
		field.Bool("is_active").
			Default(true),
		field.String("target_url"),
		field.String("http_method").
			Default("POST"),
		field.JSON("auth_descriptor", map[string]interface{}{}).
			Optional().
			Comment("Outbound auth headers/config, opaque to the core"),
		field.Int("timeout_ms").
			Default(30000),
		field.Int("retry_count").
			Default(3).
			Comment("Maximum retry attempts after the first"),
		field.Enum("transform_mode").
			Values("SIMPLE", "TEMPLATE", "ACTION_LIST").
			Default("SIMPLE"),
		field.JSON("transform_descriptor", map[string]interface{}{}).
			Optional().
			Comment("Template mapping or action list, shape depends on transform_mode"),
		field.String("signing_secret").
			Optional().
			Nillable().
			Sensitive(),
		field.Bool("signing_enabled").
			Default(false),
		field.Enum("delivery_mode").
			Values("IMMEDIATE", "DELAYED", "RECURRING").
			Default("IMMEDIATE"),
		field.JSON("schedule_descriptor", map[string]interface{}{}).
			Optional().
			Comment("Opaque scheduling metadata consulted only by the transformer"),
		field.Enum("scope").
			Values("ENTITY_ONLY", "INCLUDE_CHILDREN").
			Default("ENTITY_ONLY"),
		field.Strings("excluded_entity_ids").
			Optional().
			Comment("Org-unit ids excluded from an INCLUDE_CHILDREN integration"),

		// Circuit breaker state, mutated only via narrow find-and-update (§5).
		field.Enum("circuit_state").
			Values("CLOSED", "OPEN", "HALF_OPEN").
			Default("CLOSED"),
		field.Int("consecutive_failures").
			Default(0).
			NonNegative(),
		field.Time("circuit_opened_at").
			Optional().
			Nillable(),
		field.Time("last_failure_at").
			Optional().
			Nillable(),
		field.Time("last_success_at").
			Optional().
			Nillable(),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Edges of the Integration.
func (Integration) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("execution_logs", ExecutionLog.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("scheduled_integrations", ScheduledIntegration.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Integration.
func (Integration) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("org_id", "event_type"),
		index.Fields("org_id", "is_active"),
		index.Fields("circuit_state"),
	}
}
