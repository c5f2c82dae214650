package engine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventgateway/gateway/pkg/audit"
	"github.com/eventgateway/gateway/pkg/breaker"
	"github.com/eventgateway/gateway/pkg/config"
	"github.com/eventgateway/gateway/pkg/deliver"
	"github.com/eventgateway/gateway/pkg/engine"
	"github.com/eventgateway/gateway/pkg/external"
	"github.com/eventgateway/gateway/pkg/idempotency"
	"github.com/eventgateway/gateway/pkg/matcher"
	"github.com/eventgateway/gateway/pkg/source"
	"github.com/eventgateway/gateway/pkg/store"
	testdb "github.com/eventgateway/gateway/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIngest(t *testing.T, s *store.Store, push []*source.PushAdapter) *engine.Ingest {
	t.Helper()
	b := breaker.New(s, &config.CircuitBreakerConfig{Threshold: 10, RecoveryTime: 5 * time.Minute})
	d := deliver.New(s, b, 1000, 1000)
	m := matcher.New(s, external.NewStaticHierarchy(nil))
	idem := idempotency.New(s).WithTTL(time.Hour)
	a := audit.New(s, nil)
	cfg := &config.IngestConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10}
	return engine.New(idem, m, d, a, cfg, nil, push, nil)
}

func TestIngestClaimLoopDeliversAndMarksDone(t *testing.T) {
	var hits int
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	_, err := s.Client().Integration.Create().
		SetID("int-1").
		SetOrgID("org-a").
		SetEventType("order.created").
		SetTargetURL(target.URL).
		SetRetryCount(3).
		SetTimeoutMs(2000).
		Save(ctx)
	require.NoError(t, err)

	push := source.NewPushAdapter("web", s)
	id, err := push.Enqueue(ctx, "org-a", "order.created", "web", map[string]interface{}{"orderId": "1"})
	require.NoError(t, err)

	ing := newIngest(t, s, []*source.PushAdapter{push})
	ing.Start(ctx)
	defer ing.Stop()

	require.Eventually(t, func() bool { return hits == 1 }, 2*time.Second, 10*time.Millisecond)

	claimed, err := push.Claim(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, claimed, "event %s should have been claimed and finished already", id)
}
