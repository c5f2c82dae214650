package cleanup_test

import (
	"context"
	"testing"
	"time"

	"github.com/eventgateway/gateway/ent/executionlog"
	"github.com/eventgateway/gateway/pkg/cleanup"
	"github.com/eventgateway/gateway/pkg/config"
	"github.com/eventgateway/gateway/pkg/store"
	testdb "github.com/eventgateway/gateway/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllRemovesExpiredProcessedEventsAndOldExecutionLogs(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	require.NoError(t, s.PutProcessedEvent(ctx, "org-a-order.created-1", "1", "org-a", -time.Hour))

	_, err := s.Client().Integration.Create().
		SetID("int-1").
		SetOrgID("org-a").
		SetEventType("order.created").
		SetTargetURL("https://example.com/hook").
		Save(ctx)
	require.NoError(t, err)

	old := time.Now().AddDate(0, 0, -200)
	_, err = s.Client().ExecutionLog.Create().
		SetID("log-1").
		SetOrgID("org-a").
		SetIntegrationID("int-1").
		SetEventID("evt-1").
		SetDirection(executionlog.DirectionOUTBOUND).
		SetTriggerType(executionlog.TriggerTypeEVENT).
		SetStatus(executionlog.StatusSUCCESS).
		SetAttemptCount(1).
		SetLastAttemptAt(old).
		SetStartedAt(old).
		Save(ctx)
	require.NoError(t, err)

	cfg := &config.RetentionConfig{
		ExecutionLogRetentionDays: 90,
		ErrorLogRetentionDays:     90,
		AuditRetentionDays:        90,
		CleanupInterval:           time.Hour,
	}
	cleanup.New(s, cfg).RunAll(ctx)

	_, err = s.Client().ExecutionLog.Get(ctx, "log-1")
	assert.True(t, err != nil, "expected execution log to be deleted")

	count, err := s.Client().ProcessedEvent.Query().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
