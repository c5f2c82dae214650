package broker

import "time"

// SubscribeRequest opens a per-partition stream starting just after offset
// (§4.2 "Streaming Broker").
type SubscribeRequest struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
}

// Message is one broker record delivered over the Subscribe stream.
type Message struct {
	Partition  int32     `json:"partition"`
	Offset     int64     `json:"offset"`
	Key        string    `json:"key"`
	Value      []byte    `json:"value"`
	ProducedAt time.Time `json:"producedAt"`
}
