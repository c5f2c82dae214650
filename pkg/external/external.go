// Package external models the collaborators spec.md names as out of scope:
// the admin/UI HTTP API, authentication, organization CRUD, lookup tables,
// AI-assistant configuration, and alert-email rendering. Only their
// read/write contracts are represented here, as interfaces the core
// components depend on — never their implementations.
package external

import "context"

// HierarchyResolver supplies the two-level organizational hierarchy that
// the Matcher's inheritance resolution depends on (§4.4). It is owned by
// the out-of-scope organization-CRUD collaborator.
type HierarchyResolver interface {
	// Parent returns the parent org id for orgID, or orgID itself when
	// orgID has no parent (top-level entity).
	Parent(ctx context.Context, orgID string) (string, error)
}

// StaticHierarchy is a HierarchyResolver backed by an in-memory map, used
// where the organization-CRUD collaborator has not been wired (tests, or a
// deployment that runs the gateway standalone against a flat tenant set).
type StaticHierarchy struct {
	parents map[string]string
}

// NewStaticHierarchy builds a StaticHierarchy from an explicit child→parent
// map. Entries absent from the map resolve to themselves.
func NewStaticHierarchy(parents map[string]string) *StaticHierarchy {
	return &StaticHierarchy{parents: parents}
}

// Parent implements HierarchyResolver.
func (h *StaticHierarchy) Parent(_ context.Context, orgID string) (string, error) {
	if parent, ok := h.parents[orgID]; ok {
		return parent, nil
	}
	return orgID, nil
}

// PayloadSummaryAllowlist supplies the compliance-safe field allowlist used
// when building audit payload summaries (§6 `allowed_summary_fields`). It is
// owned by the out-of-scope lookup-tables collaborator.
type PayloadSummaryAllowlist interface {
	AllowedFields(ctx context.Context, orgID, eventType string) ([]string, error)
}
