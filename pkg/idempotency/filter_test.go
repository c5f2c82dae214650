package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/eventgateway/gateway/pkg/idempotency"
	"github.com/eventgateway/gateway/pkg/store"
	testdb "github.com/eventgateway/gateway/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptRejectsSecondInsert(t *testing.T) {
	client := testdb.NewTestClient(t)
	f := idempotency.New(store.New(client.Client)).WithTTL(time.Hour)
	ctx := context.Background()

	require.NoError(t, f.Accept(ctx, "org-a-order.created-src-1", "src-1", "org-a"))

	err := f.Accept(ctx, "org-a-order.created-src-1", "src-1", "org-a")
	assert.ErrorIs(t, err, idempotency.ErrDuplicate)
}

func TestAcceptAllowsDistinctStableIDs(t *testing.T) {
	client := testdb.NewTestClient(t)
	f := idempotency.New(store.New(client.Client)).WithTTL(time.Hour)
	ctx := context.Background()

	require.NoError(t, f.Accept(ctx, "org-a-order.created-src-1", "src-1", "org-a"))
	require.NoError(t, f.Accept(ctx, "org-a-order.created-src-2", "src-2", "org-a"))
}
