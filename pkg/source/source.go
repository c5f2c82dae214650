// Package source implements the source adapter variants (C2): a
// sequential-relational poller, a streaming-broker consumer, and an
// HTTP-push queue. All three feed the same ingest pipeline (§4.2).
package source

import (
	"context"
	"time"
)

// Event is one normalized business occurrence handed off to the ingest
// pipeline, regardless of which adapter produced it.
type Event struct {
	OrgID      string
	EventType  string
	Source     string
	SourceID   string
	Payload    map[string]interface{}
	ReceivedAt time.Time
}

// Adapter is the uniform poll/commit capability shared by the
// sequential-relational and streaming-broker variants (§4.2): poll a
// bounded batch, then commit the high-water mark reached once the batch
// has been handed off successfully. The HTTP-push variant uses a
// different, queue-shaped contract (see PushAdapter) because it has no
// single monotonic cursor to advance.
type Adapter interface {
	// ID identifies this adapter instance, used as the checkpoint's
	// source_identifier.
	ID() string

	// Poll returns up to limit new events and the cursor reached by the
	// last one, encoded as an opaque string (a decimal id for the
	// relational variant, comma-separated "partition:offset" pairs for the
	// broker variant). On an empty batch the relational variant returns its
	// current checkpoint and the broker variant returns an empty string.
	Poll(ctx context.Context, limit int) ([]Event, string, error)

	// Commit advances this adapter's checkpoint to upTo.
	Commit(ctx context.Context, upTo string) error
}
