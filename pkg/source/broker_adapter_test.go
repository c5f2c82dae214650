package source_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/eventgateway/gateway/pkg/audit"
	"github.com/eventgateway/gateway/pkg/broker"
	"github.com/eventgateway/gateway/pkg/source"
	"github.com/eventgateway/gateway/pkg/store"
	testdb "github.com/eventgateway/gateway/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	streams map[int32]chan *broker.Message
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{streams: make(map[int32]chan *broker.Message)}
}

func (f *fakeSubscriber) Subscribe(_ context.Context, partition int32, _ int64) (<-chan *broker.Message, error) {
	ch := make(chan *broker.Message, 16)
	f.streams[partition] = ch
	return ch, nil
}

func (f *fakeSubscriber) push(partition int32, offset int64, payload map[string]interface{}) {
	encoded, _ := json.Marshal(payload)
	f.streams[partition] <- &broker.Message{Partition: partition, Offset: offset, Value: encoded, ProducedAt: time.Now()}
}

func TestBrokerAdapterPollDrainsBufferedMessagesAndCommitAdvancesCheckpoint(t *testing.T) {
	client := testdb.NewTestClient(t)
	s := store.New(client.Client)
	ctx := context.Background()

	sub := newFakeSubscriber()
	adapter := source.NewBrokerAdapter("orders-topic", "orders", 2, sub, s)

	// Prime both partitions' streams by polling once (creates the channels).
	_, _, err := adapter.Poll(ctx, 10)
	require.NoError(t, err)

	sub.push(0, 5, map[string]interface{}{"orgId": "org-a", "eventType": "order.created"})
	sub.push(1, 9, map[string]interface{}{"orgId": "org-b", "eventType": "order.created"})

	events, cursor, err := adapter.Poll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.NotEmpty(t, cursor)

	require.NoError(t, adapter.Commit(ctx, cursor))

	cp := audit.NewCheckpointer(s)
	row0, err := cp.Get(ctx, "broker", "orders-topic:0", "_global")
	require.NoError(t, err)
	require.NotNil(t, row0)
	assert.EqualValues(t, 5, row0.LastProcessedID)

	row1, err := cp.Get(ctx, "broker", "orders-topic:1", "_global")
	require.NoError(t, err)
	require.NotNil(t, row1)
	assert.EqualValues(t, 9, row1.LastProcessedID)
}
