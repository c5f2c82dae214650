package retry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eventgateway/gateway/ent/executionlog"
	"github.com/eventgateway/gateway/pkg/breaker"
	"github.com/eventgateway/gateway/pkg/config"
	"github.com/eventgateway/gateway/pkg/deliver"
	"github.com/eventgateway/gateway/pkg/retry"
	"github.com/eventgateway/gateway/pkg/store"
	testdb "github.com/eventgateway/gateway/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCycleRedeliversDueLogsAndSucceeds(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	_, err := s.Client().Integration.Create().
		SetID("int-1").
		SetOrgID("org-a").
		SetEventType("order.created").
		SetTargetURL(server.URL).
		SetRetryCount(3).
		SetTimeoutMs(2000).
		Save(ctx)
	require.NoError(t, err)

	pastAttempt := time.Now().Add(-time.Hour)
	_, err = s.UpsertLog(ctx, store.LogUpsert{
		TraceID: "trace-1", OrgID: "org-a", IntegrationID: "int-1", EventID: "evt-1",
		Direction: executionlog.DirectionOUTBOUND, TriggerType: executionlog.TriggerTypeEVENT,
		Status: executionlog.StatusRETRYING, AttemptCount: 1, LastAttemptAt: pastAttempt,
	})
	require.NoError(t, err)
	require.NoError(t, s.Client().ExecutionLog.UpdateOneID("trace-1").
		SetRequestSnapshot(map[string]interface{}{"k": "v"}).Exec(ctx))

	b := breaker.New(s, &config.CircuitBreakerConfig{Threshold: 10, RecoveryTime: 5 * time.Minute})
	d := deliver.New(s, b, 1000, 1000)
	engine := retry.New(s, d, &config.RetryConfig{
		BatchSize: 10, Window: 4 * time.Hour, BaseDelay: time.Second, MaxDelay: time.Minute,
	})

	require.NoError(t, engine.RunCycle(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	log, err := s.Client().ExecutionLog.Get(ctx, "trace-1")
	require.NoError(t, err)
	assert.Equal(t, executionlog.StatusSUCCESS, log.Status)
	assert.Equal(t, 2, log.AttemptCount)
}

func TestRunCycleSkipsLogsNotYetDueForBackoff(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	_, err := s.Client().Integration.Create().
		SetID("int-1").
		SetOrgID("org-a").
		SetEventType("order.created").
		SetTargetURL(server.URL).
		SetRetryCount(3).
		Save(ctx)
	require.NoError(t, err)

	_, err = s.UpsertLog(ctx, store.LogUpsert{
		TraceID: "trace-1", OrgID: "org-a", IntegrationID: "int-1", EventID: "evt-1",
		Direction: executionlog.DirectionOUTBOUND, TriggerType: executionlog.TriggerTypeEVENT,
		Status: executionlog.StatusRETRYING, AttemptCount: 1, LastAttemptAt: time.Now(),
	})
	require.NoError(t, err)

	b := breaker.New(s, &config.CircuitBreakerConfig{Threshold: 10, RecoveryTime: 5 * time.Minute})
	d := deliver.New(s, b, 1000, 1000)
	engine := retry.New(s, d, &config.RetryConfig{
		BatchSize: 10, Window: 4 * time.Hour, BaseDelay: time.Hour, MaxDelay: 2 * time.Hour,
	})

	require.NoError(t, engine.RunCycle(ctx))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}
