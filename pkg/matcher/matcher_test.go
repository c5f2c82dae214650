package matcher_test

import (
	"context"
	"testing"

	"github.com/eventgateway/gateway/ent/integration"
	"github.com/eventgateway/gateway/pkg/external"
	"github.com/eventgateway/gateway/pkg/matcher"
	"github.com/eventgateway/gateway/pkg/store"
	testdb "github.com/eventgateway/gateway/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAppliesHierarchyInheritanceAndExclusion(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	// Parent org 84 has a wildcard include-children integration excluding
	// child 435 (mirrors §8 scenario 6).
	_, err := client.Client.Integration.Create().
		SetID("parent-integration").
		SetOrgID("84").
		SetEventType("*").
		SetScope(integration.ScopeINCLUDE_CHILDREN).
		SetExcludedEntityIds([]string{"435"}).
		SetTargetURL("https://example.com/hook").
		Save(ctx)
	require.NoError(t, err)

	hierarchy := external.NewStaticHierarchy(map[string]string{
		"435":  "84",
		"3264": "84",
	})
	m := matcher.New(s, hierarchy)

	excludedResult, err := m.Resolve(ctx, "435", "order.created")
	require.NoError(t, err)
	assert.Empty(t, excludedResult)

	includedResult, err := m.Resolve(ctx, "3264", "order.created")
	require.NoError(t, err)
	require.Len(t, includedResult, 1)
	assert.Equal(t, "parent-integration", includedResult[0].ID)
}

func TestResolveIgnoresInactiveAndInboundIntegrations(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	_, err := client.Client.Integration.Create().
		SetID("inactive").
		SetOrgID("org-a").
		SetEventType("order.created").
		SetIsActive(false).
		SetTargetURL("https://example.com/hook").
		Save(ctx)
	require.NoError(t, err)

	_, err = client.Client.Integration.Create().
		SetID("inbound").
		SetOrgID("org-a").
		SetEventType("order.created").
		SetDirection(integration.DirectionINBOUND).
		SetTargetURL("https://example.com/hook").
		Save(ctx)
	require.NoError(t, err)

	hierarchy := external.NewStaticHierarchy(nil)
	m := matcher.New(s, hierarchy)

	result, err := m.Resolve(ctx, "org-a", "order.created")
	require.NoError(t, err)
	assert.Empty(t, result)
}
