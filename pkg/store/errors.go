// Package store provides the durable collections for the delivery gateway:
// integrations, execution logs, scheduled integrations, the processed-event
// dedup set, source checkpoints, and the dead-letter queue. Per-tenant
// lookups take an orgId and include it in the predicate; worker-facing
// claims, sweeps and breaker updates operate across all tenants.
package store

import "errors"

var (
	// ErrStoreUnavailable wraps transient store errors (connection loss,
	// deadline exceeded). Callers may retry idempotent operations.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAlreadyProcessed is returned by PutProcessedEvent on a duplicate
	// stable event id.
	ErrAlreadyProcessed = errors.New("event already processed")

	// ErrNoEntryClaimed reports that no scheduled entry was due. ClaimScheduled
	// does not return it; it returns an empty slice instead.
	ErrNoEntryClaimed = errors.New("no scheduled entry available to claim")

	// ErrNotFound is returned when a single-entity lookup finds nothing.
	ErrNotFound = errors.New("not found")
)
