package scheduler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventgateway/gateway/ent"
	"github.com/eventgateway/gateway/ent/scheduledintegration"
	"github.com/eventgateway/gateway/pkg/breaker"
	"github.com/eventgateway/gateway/pkg/config"
	"github.com/eventgateway/gateway/pkg/deliver"
	"github.com/eventgateway/gateway/pkg/scheduler"
	"github.com/eventgateway/gateway/pkg/store"
	testdb "github.com/eventgateway/gateway/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduler(s *store.Store) *scheduler.Scheduler {
	b := breaker.New(s, &config.CircuitBreakerConfig{Threshold: 10, RecoveryTime: 5 * time.Minute})
	d := deliver.New(s, b, 1000, 1000)
	return scheduler.New(s, d, &config.SchedulerConfig{
		BatchSize: 10, TickInterval: time.Second, ProcessingIdleTimeout: 10 * time.Minute,
		SweepInterval: time.Minute, CancellationMatchWindow: time.Hour,
		BaseDelay: time.Second, MaxDelay: time.Minute,
	})
}

func TestTickDeliversDueEntryAndMarksSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	_, err := s.Client().Integration.Create().
		SetID("int-1").
		SetOrgID("org-a").
		SetEventType("appointment.reminder").
		SetTargetURL(server.URL).
		SetRetryCount(3).
		Save(ctx)
	require.NoError(t, err)

	_, err = s.Client().ScheduledIntegration.Create().
		SetID("sched-1").
		SetIntegrationID("int-1").
		SetOrgID("org-a").
		SetScheduledFor(time.Now().Add(-time.Minute)).
		SetPayload(map[string]interface{}{"k": "v"}).
		Save(ctx)
	require.NoError(t, err)

	sch := newScheduler(s)
	require.NoError(t, sch.Tick(ctx))

	row, err := s.Client().ScheduledIntegration.Get(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, scheduledintegration.StatusSENT, row.Status)
	require.NotNil(t, row.DeliveredAt)
	require.NotNil(t, row.DeliveryLogID)
}

func TestTickReschedulesOnTransientFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	_, err := s.Client().Integration.Create().
		SetID("int-1").
		SetOrgID("org-a").
		SetEventType("appointment.reminder").
		SetTargetURL(server.URL).
		SetRetryCount(3).
		Save(ctx)
	require.NoError(t, err)

	_, err = s.Client().ScheduledIntegration.Create().
		SetID("sched-1").
		SetIntegrationID("int-1").
		SetOrgID("org-a").
		SetScheduledFor(time.Now().Add(-time.Minute)).
		SetPayload(map[string]interface{}{"k": "v"}).
		Save(ctx)
	require.NoError(t, err)

	sch := newScheduler(s)
	require.NoError(t, sch.Tick(ctx))

	row, err := s.Client().ScheduledIntegration.Get(ctx, "sched-1")
	require.NoError(t, err)
	assert.Equal(t, scheduledintegration.StatusPENDING, row.Status)
	assert.Equal(t, 1, row.AttemptCount)
	assert.True(t, row.ScheduledFor.After(time.Now()))
}

func TestCancelByMatchCancelsPendingEntry(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	_, err := s.Client().Integration.Create().
		SetID("int-1").
		SetOrgID("org-a").
		SetEventType("appointment.reminder").
		SetTargetURL("https://example.com/hook").
		Save(ctx)
	require.NoError(t, err)

	scheduledAt := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	_, err = s.Client().ScheduledIntegration.Create().
		SetID("sched-cancel").
		SetIntegrationID("int-1").
		SetOrgID("org-a").
		SetScheduledFor(scheduledAt.Add(-24 * time.Hour)).
		SetPayload(map[string]interface{}{}).
		SetCancellationInfo(map[string]interface{}{
			"patientRid":        "patient-1",
			"scheduledDateTime": scheduledAt.Format(time.RFC3339),
		}).
		Save(ctx)
	require.NoError(t, err)

	sch := newScheduler(s)
	n, err := sch.CancelByMatch(ctx, "org-a", "patient-1", scheduledAt)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestTickHeartbeatsClaimedEntryWhileProcessing is the regression test for
// the stuck-PROCESSING sweep now keying off last_heartbeat_at: a claimed
// entry's heartbeat must advance past its claim time while process() is
// still running.
func TestTickHeartbeatsClaimedEntryWhileProcessing(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	_, err := s.Client().Integration.Create().
		SetID("int-1").
		SetOrgID("org-a").
		SetEventType("appointment.reminder").
		SetTargetURL(server.URL).
		SetRetryCount(3).
		Save(ctx)
	require.NoError(t, err)

	_, err = s.Client().ScheduledIntegration.Create().
		SetID("sched-slow").
		SetIntegrationID("int-1").
		SetOrgID("org-a").
		SetScheduledFor(time.Now().Add(-time.Minute)).
		SetPayload(map[string]interface{}{"k": "v"}).
		Save(ctx)
	require.NoError(t, err)

	b := breaker.New(s, &config.CircuitBreakerConfig{Threshold: 10, RecoveryTime: 5 * time.Minute})
	d := deliver.New(s, b, 1000, 1000)
	sch := scheduler.New(s, d, &config.SchedulerConfig{
		BatchSize: 10, TickInterval: time.Second, ProcessingIdleTimeout: 10 * time.Minute,
		SweepInterval: time.Minute, CancellationMatchWindow: time.Hour,
		BaseDelay: time.Second, MaxDelay: time.Minute, HeartbeatInterval: 10 * time.Millisecond,
	})

	done := make(chan struct{})
	go func() {
		_ = sch.Tick(ctx)
		close(done)
	}()

	claimed, err := waitForStatus(t, s, ctx, "sched-slow", scheduledintegration.StatusPROCESSING)
	require.NoError(t, err)
	require.NotNil(t, claimed.LastHeartbeatAt)
	firstHeartbeat := *claimed.LastHeartbeatAt

	time.Sleep(50 * time.Millisecond)
	row, err := s.Client().ScheduledIntegration.Get(ctx, "sched-slow")
	require.NoError(t, err)
	require.NotNil(t, row.LastHeartbeatAt)
	assert.True(t, row.LastHeartbeatAt.After(firstHeartbeat), "heartbeat should have advanced while still PROCESSING")

	close(release)
	<-done
}

func waitForStatus(t *testing.T, s *store.Store, ctx context.Context, id string, status scheduledintegration.Status) (*ent.ScheduledIntegration, error) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		row, err := s.Client().ScheduledIntegration.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if row.Status == status {
			return row, nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil, fmt.Errorf("timed out waiting for %s to reach status %s", id, status)
}
