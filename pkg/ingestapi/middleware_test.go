package ingestapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eventgateway/gateway/pkg/source"
	"github.com/eventgateway/gateway/pkg/store"
	testdb "github.com/eventgateway/gateway/test/database"
)

func TestBearerAuthRejectsMissingOrWrongToken(t *testing.T) {
	client := testdb.NewTestClient(t)
	adapter := source.NewPushAdapter("push", store.New(client.Client))
	srv := NewServer(adapter, "secret-token")

	body := `{"orgId":"org-a","eventType":"order.created","source":"web","payload":{}}`
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req2 := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req2.Header.Set("Content-Type", "application/json")
	req2.Header.Set("Authorization", "Bearer wrong")
	rec2 := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
}

func TestBearerAuthAcceptsCorrectToken(t *testing.T) {
	client := testdb.NewTestClient(t)
	adapter := source.NewPushAdapter("push", store.New(client.Client))
	srv := NewServer(adapter, "secret-token")

	body := `{"orgId":"org-a","eventType":"order.created","source":"web","payload":{}}`
	req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestBearerAuthDisabledWhenTokenEmpty(t *testing.T) {
	client := testdb.NewTestClient(t)
	adapter := source.NewPushAdapter("push", store.New(client.Client))
	srv := NewServer(adapter, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
