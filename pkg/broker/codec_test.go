package broker_test

import (
	"testing"

	"github.com/eventgateway/gateway/pkg/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestJSONCodecIsRegisteredUnderSubtypeName(t *testing.T) {
	codec := encoding.GetCodec("json")
	require.NotNil(t, codec)
	assert.Equal(t, "json", codec.Name())

	encoded, err := codec.Marshal(&broker.Message{Partition: 1, Offset: 42, Key: "k"})
	require.NoError(t, err)

	var decoded broker.Message
	require.NoError(t, codec.Unmarshal(encoded, &decoded))
	assert.EqualValues(t, 1, decoded.Partition)
	assert.EqualValues(t, 42, decoded.Offset)
	assert.Equal(t, "k", decoded.Key)
}
