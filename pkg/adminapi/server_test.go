package adminapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventgateway/gateway/ent/executionlog"
	"github.com/eventgateway/gateway/pkg/adminapi"
	"github.com/eventgateway/gateway/pkg/store"
	testdb "github.com/eventgateway/gateway/test/database"
)

func TestCreateAndListIntegrations(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	srv := adminapi.NewServer(s, nil)

	body := `{"id":"int-1","orgId":"org-a","eventType":"order.created","targetUrl":"https://example.com/hook"}`
	req := httptest.NewRequest(http.MethodPost, "/integrations", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/integrations?orgId=org-a", nil)
	listRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &rows))
	assert.Len(t, rows, 1)
	assert.Equal(t, "int-1", rows[0]["id"])
}

func TestBulkRetryAndDeleteExecutionLogs(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	srv := adminapi.NewServer(s, nil)
	ctx := context.Background()

	_, err := s.Client().Integration.Create().
		SetID("int-2").
		SetOrgID("org-a").
		SetEventType("order.created").
		SetTargetURL("https://example.com/hook").
		Save(ctx)
	require.NoError(t, err)

	_, err = s.Client().ExecutionLog.Create().
		SetID("log-2").
		SetOrgID("org-a").
		SetIntegrationID("int-2").
		SetEventID("evt-2").
		SetDirection(executionlog.DirectionOUTBOUND).
		SetTriggerType(executionlog.TriggerTypeEVENT).
		SetStatus(executionlog.StatusFAILED).
		SetAttemptCount(3).
		SetLastAttemptAt(time.Now()).
		SetStartedAt(time.Now()).
		Save(ctx)
	require.NoError(t, err)

	retryBody := `{"ids":["log-2"]}`
	retryReq := httptest.NewRequest(http.MethodPost, "/execution-logs/retry", bytes.NewReader([]byte(retryBody)))
	retryReq.Header.Set("Content-Type", "application/json")
	retryRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(retryRec, retryReq)
	require.Equal(t, http.StatusOK, retryRec.Code)

	var retryResp adminapi.BulkResultResponse
	require.NoError(t, json.Unmarshal(retryRec.Body.Bytes(), &retryResp))
	assert.Equal(t, 1, retryResp.Affected)

	row, err := s.Client().ExecutionLog.Get(ctx, "log-2")
	require.NoError(t, err)
	assert.Equal(t, executionlog.StatusRETRYING, row.Status)

	deleteBody := `{"ids":["log-2"]}`
	deleteReq := httptest.NewRequest(http.MethodDelete, "/execution-logs", bytes.NewReader([]byte(deleteBody)))
	deleteReq.Header.Set("Content-Type", "application/json")
	deleteRec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(deleteRec, deleteReq)
	require.Equal(t, http.StatusOK, deleteRec.Code)

	_, err = s.Client().ExecutionLog.Get(ctx, "log-2")
	assert.Error(t, err)
}

func TestStatsReportsCountsAndPercentiles(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	srv := adminapi.NewServer(s, nil)
	ctx := context.Background()

	_, err := s.Client().Integration.Create().
		SetID("int-3").
		SetOrgID("org-a").
		SetEventType("order.created").
		SetTargetURL("https://example.com/hook").
		Save(ctx)
	require.NoError(t, err)

	for i, ms := range []int64{100, 200, 300} {
		_, err := s.Client().ExecutionLog.Create().
			SetID(stringID(i)).
			SetOrgID("org-a").
			SetIntegrationID("int-3").
			SetEventID(stringID(i)).
			SetDirection(executionlog.DirectionOUTBOUND).
			SetTriggerType(executionlog.TriggerTypeEVENT).
			SetStatus(executionlog.StatusSUCCESS).
			SetAttemptCount(1).
			SetDurationMs(ms).
			SetStartedAt(time.Now()).
			SetFinishedAt(time.Now()).
			Save(ctx)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp adminapi.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.CountsByStatus[executionlog.StatusSUCCESS])
	assert.NotZero(t, resp.DurationP50Ms)
}

func stringID(i int) string {
	ids := []string{"log-a", "log-b", "log-c"}
	return ids[i]
}
