package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/eventgateway/gateway/pkg/audit"
	"github.com/eventgateway/gateway/pkg/broker"
	"github.com/eventgateway/gateway/pkg/store"
)

// subscriber is the slice of broker.Consumer that BrokerAdapter depends on,
// narrowed so it can be faked in tests without a live gRPC server.
type subscriber interface {
	Subscribe(ctx context.Context, partition int32, offset int64) (<-chan *broker.Message, error)
}

// BrokerAdapter implements Adapter over a streaming broker's per-partition
// gRPC subscription, with a cursor of the form "partition:offset" (§4.2
// "Streaming Broker").
type BrokerAdapter struct {
	id             string
	topic          string
	partitionCount int32
	sub            subscriber
	cp             *audit.Checkpointer

	streams map[int32]<-chan *broker.Message
}

// NewBrokerAdapter creates a BrokerAdapter consuming partitionCount
// partitions of topic via sub.
func NewBrokerAdapter(id, topic string, partitionCount int32, sub subscriber, s *store.Store) *BrokerAdapter {
	return &BrokerAdapter{
		id:             id,
		topic:          topic,
		partitionCount: partitionCount,
		sub:            sub,
		cp:             audit.NewCheckpointer(s),
		streams:        make(map[int32]<-chan *broker.Message),
	}
}

// ID implements Adapter.
func (a *BrokerAdapter) ID() string { return a.id }

func (a *BrokerAdapter) streamFor(ctx context.Context, partition int32) (<-chan *broker.Message, error) {
	if ch, ok := a.streams[partition]; ok {
		return ch, nil
	}

	row, err := a.cp.Get(ctx, "broker", a.partitionIdentifier(partition), checkpointOrgID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for partition %d: %w", partition, err)
	}
	var offset int64
	if row != nil {
		offset = row.LastProcessedID
	}

	ch, err := a.sub.Subscribe(ctx, partition, offset)
	if err != nil {
		return nil, fmt.Errorf("subscribe to partition %d: %w", partition, err)
	}
	a.streams[partition] = ch
	return ch, nil
}

func (a *BrokerAdapter) partitionIdentifier(partition int32) string {
	return fmt.Sprintf("%s:%d", a.id, partition)
}

// Poll drains up to limit buffered messages, visiting partitions in order
// and draining each one's buffered messages before moving to the next. It
// never blocks: a partition with nothing currently available is skipped
// rather than awaited.
func (a *BrokerAdapter) Poll(ctx context.Context, limit int) ([]Event, string, error) {
	events := make([]Event, 0, limit)
	lastCursor := make(map[int32]int64)

	for p := int32(0); p < a.partitionCount && len(events) < limit; p++ {
		ch, err := a.streamFor(ctx, p)
		if err != nil {
			return events, encodeCursor(lastCursor), err
		}

	drain:
		for len(events) < limit {
			select {
			case msg, ok := <-ch:
				if !ok {
					break drain
				}
				var payload map[string]interface{}
				if err := json.Unmarshal(msg.Value, &payload); err != nil {
					return events, encodeCursor(lastCursor), fmt.Errorf("decode message partition=%d offset=%d: %w", msg.Partition, msg.Offset, err)
				}
				orgID, _ := payload["orgId"].(string)
				eventType, _ := payload["eventType"].(string)
				if eventType == "" {
					eventType = msg.Key
				}
				events = append(events, Event{
					OrgID:      orgID,
					EventType:  eventType,
					Source:     a.id,
					SourceID:   strconv.FormatInt(msg.Offset, 10),
					Payload:    payload,
					ReceivedAt: msg.ProducedAt,
				})
				lastCursor[p] = msg.Offset
			default:
				break drain
			}
		}
	}

	return events, encodeCursor(lastCursor), nil
}

// Commit advances the checkpoint of every partition named in upTo, encoded
// as "partition:offset,partition:offset,...".
func (a *BrokerAdapter) Commit(ctx context.Context, upTo string) error {
	if upTo == "" {
		return nil
	}
	for _, part := range strings.Split(upTo, ",") {
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			return fmt.Errorf("malformed cursor segment %q", part)
		}
		partition, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return fmt.Errorf("parse partition in %q: %w", part, err)
		}
		offset, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return fmt.Errorf("parse offset in %q: %w", part, err)
		}
		if err := a.cp.Advance(ctx, "broker", a.partitionIdentifier(int32(partition)), checkpointOrgID, offset); err != nil {
			return fmt.Errorf("advance partition %d checkpoint: %w", partition, err)
		}
	}
	return nil
}

func encodeCursor(perPartition map[int32]int64) string {
	if len(perPartition) == 0 {
		return ""
	}
	parts := make([]string, 0, len(perPartition))
	for p, offset := range perPartition {
		parts = append(parts, fmt.Sprintf("%d:%d", p, offset))
	}
	return strings.Join(parts, ",")
}
