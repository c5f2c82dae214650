// Package matcher resolves the set of active outbound integrations that
// fire for a given (orgId, eventType), applying two-level hierarchy
// inheritance and per-integration exclusions (§4.4).
package matcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/eventgateway/gateway/ent"
	"github.com/eventgateway/gateway/ent/integration"
	"github.com/eventgateway/gateway/pkg/external"
	"github.com/eventgateway/gateway/pkg/store"
)

// Matcher resolves integration fan-out for incoming events.
type Matcher struct {
	store     *store.Store
	hierarchy external.HierarchyResolver
}

// New creates a Matcher.
func New(s *store.Store, hierarchy external.HierarchyResolver) *Matcher {
	return &Matcher{store: s, hierarchy: hierarchy}
}

// Resolve implements the 5-step matching algorithm: load own + parent
// integrations, exclude parent integrations scoped away from orgID, keep
// active outbound integrations whose selector matches eventType, and
// return them in a stable order (last-updated desc, ties by id).
func (m *Matcher) Resolve(ctx context.Context, orgID, eventType string) ([]*ent.Integration, error) {
	parentID, err := m.hierarchy.Parent(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("resolve parent org: %w", err)
	}

	own, err := m.store.ListIntegrations(ctx, orgID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list own integrations: %w", err)
	}

	candidates := own
	if parentID != orgID {
		parentRows, err := m.store.ListIntegrations(ctx, parentID, eventType)
		if err != nil {
			return nil, fmt.Errorf("list parent integrations: %w", err)
		}
		for _, p := range parentRows {
			if includesChild(p, orgID) {
				candidates = append(candidates, p)
			}
		}
	}

	filtered := make([]*ent.Integration, 0, len(candidates))
	for _, row := range candidates {
		if !row.IsActive {
			continue
		}
		if row.Direction != integration.DirectionOUTBOUND {
			continue
		}
		filtered = append(filtered, row)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].UpdatedAt.Equal(filtered[j].UpdatedAt) {
			return filtered[i].ID < filtered[j].ID
		}
		return filtered[i].UpdatedAt.After(filtered[j].UpdatedAt)
	})

	return filtered, nil
}

// includesChild reports whether a parent-level integration applies to
// childOrgID: it must have scope=INCLUDE_CHILDREN and childOrgID must not
// be in its exclusion set.
func includesChild(parentIntegration *ent.Integration, childOrgID string) bool {
	if parentIntegration.Scope != integration.ScopeINCLUDE_CHILDREN {
		return false
	}
	for _, excluded := range parentIntegration.ExcludedEntityIds {
		if excluded == childOrgID {
			return false
		}
	}
	return true
}
