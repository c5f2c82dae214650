package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/eventgateway/gateway/ent/eventaudit"
	"github.com/eventgateway/gateway/pkg/audit"
	"github.com/eventgateway/gateway/pkg/external"
	"github.com/eventgateway/gateway/pkg/store"
	testdb "github.com/eventgateway/gateway/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAllowlist struct {
	fields []string
}

func (a staticAllowlist) AllowedFields(_ context.Context, _, _ string) ([]string, error) {
	return a.fields, nil
}

func TestAppendRecordsAllowlistedSummaryAndHash(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	a := audit.New(s, staticAllowlist{fields: []string{"orgId", "sourceId"}})
	a.Append(ctx, audit.Record{
		OrgID:     "org-a",
		EventID:   "org-a-order.created-1001",
		EventType: "order.created",
		Source:    "orders-db",
		SourceID:  "1001",
		Status:    eventaudit.StatusDELIVERED,
		Delivery:  audit.DeliveryStatus{IntegrationsMatched: 1, DeliveredCount: 1},
		Payload:   map[string]interface{}{"orgId": "org-a", "sourceId": "1001", "ssn": "secret"},
		Timeline: []audit.TimelineStep{
			{At: time.Now(), Note: "received"},
			{At: time.Now(), Note: "delivered"},
		},
	})

	rows, err := s.Client().EventAudit.Query().All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, eventaudit.StatusDELIVERED, row.Status)
	assert.Equal(t, 1, row.IntegrationsMatched)
	assert.NotEmpty(t, row.PayloadHash)
	assert.Contains(t, row.PayloadSummary, "orgId")
	assert.NotContains(t, row.PayloadSummary, "ssn")
	assert.Len(t, row.Timeline, 2)
}

func TestAppendDoesNotFailWhenAllowlistIsNil(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	a := audit.New(s, nil)
	a.Append(ctx, audit.Record{
		OrgID:        "org-a",
		EventID:      "org-a-order.created-1002",
		EventType:    "order.created",
		Source:       "orders-db",
		SourceID:     "1002",
		Status:       eventaudit.StatusSKIPPED,
		SkipCategory: "DUPLICATE",
		Payload:      map[string]interface{}{"orgId": "org-a"},
	})

	rows, err := s.Client().EventAudit.Query().All(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, eventaudit.StatusSKIPPED, rows[0].Status)
	assert.Empty(t, rows[0].PayloadSummary)
}

func TestCheckpointerAdvanceRecordsGap(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	cp := audit.NewCheckpointer(s)
	require.NoError(t, cp.Advance(ctx, "relational", "orders-db", "org-a", 10))
	require.NoError(t, cp.Advance(ctx, "relational", "orders-db", "org-a", 15))

	row, err := cp.Get(ctx, "relational", "orders-db", "org-a")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.EqualValues(t, 15, row.LastProcessedID)
	require.Len(t, row.Gaps, 1)
	assert.EqualValues(t, 11, row.Gaps[0]["start"])
	assert.EqualValues(t, 14, row.Gaps[0]["end"])
}
