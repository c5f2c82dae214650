// Package idempotency implements the insert-and-detect duplicate filter
// consulted immediately after an event is received (§4.3).
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventgateway/gateway/pkg/store"
)

const defaultTTL = 6 * time.Hour

// Filter rejects events whose stable id has already been accepted within
// the TTL window.
type Filter struct {
	store *store.Store
	ttl   time.Duration
	log   *slog.Logger
}

// New creates a Filter backed by s, using the default 6h TTL.
func New(s *store.Store) *Filter {
	return &Filter{
		store: s,
		ttl:   defaultTTL,
		log:   slog.With("component", "idempotency"),
	}
}

// WithTTL overrides the dedup TTL.
func (f *Filter) WithTTL(ttl time.Duration) *Filter {
	f.ttl = ttl
	return f
}

// Accept inserts the dedup marker for stableID in a single step, relying on
// the unique constraint to detect a repeat. It returns nil if this is
// the first time stableID has been seen, or ErrDuplicate if it was already
// accepted within the TTL window.
func (f *Filter) Accept(ctx context.Context, stableID, sourceID, orgID string) error {
	err := f.store.PutProcessedEvent(ctx, stableID, sourceID, orgID, f.ttl)
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrAlreadyProcessed) {
		f.log.Info("duplicate event rejected", "stable_id", stableID, "org_id", orgID)
		return ErrDuplicate
	}
	return fmt.Errorf("idempotency check failed: %w", err)
}

// ErrDuplicate is returned by Accept when stableID was already processed.
var ErrDuplicate = errors.New("duplicate event")
