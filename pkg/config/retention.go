package config

import "time"

// RetentionConfig controls TTL/retention behavior for the collections listed
// in spec.md §4.1 and §6.
type RetentionConfig struct {
	// ExecutionLogRetentionDays is how many days execution_logs are kept
	// before expiring (default 90, §3 ExecutionLog).
	ExecutionLogRetentionDays int `yaml:"execution_log_retention_days"`

	// ProcessedEventTTL is how long processed_events markers survive
	// (default 6h, §3 ProcessedEvent).
	ProcessedEventTTL time.Duration `yaml:"processed_event_ttl"`

	// ErrorLogRetentionDays is how many days resolved DLQ entries are kept
	// before the cleanup sweep deletes them (§4.1 error_logs).
	ErrorLogRetentionDays int `yaml:"error_log_retention_days"`

	// AuditRetentionDays is how many days event_audit records are kept
	// (§6 env toggle retention_days, default 90).
	AuditRetentionDays int `yaml:"audit_retention_days"`

	// CleanupInterval is how often the retention sweep runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// AllowedSummaryFields is the allowlist of payload fields that may
	// appear in an audit record's payloadSummary (§6 env toggle
	// allowed_summary_fields, compliance-safe payloads).
	AllowedSummaryFields []string `yaml:"allowed_summary_fields"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		ExecutionLogRetentionDays: 90,
		ProcessedEventTTL:         6 * time.Hour,
		ErrorLogRetentionDays:     30,
		AuditRetentionDays:        90,
		CleanupInterval:           1 * time.Hour,
		AllowedSummaryFields:      []string{"orgId", "eventType", "sourceId"},
	}
}
