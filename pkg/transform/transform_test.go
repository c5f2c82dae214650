package transform_test

import (
	"encoding/json"
	"testing"

	"github.com/eventgateway/gateway/ent"
	"github.com/eventgateway/gateway/ent/integration"
	"github.com/eventgateway/gateway/pkg/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySimplePassesPayloadThrough(t *testing.T) {
	integ := &ent.Integration{
		HTTPMethod: "POST",
		TargetURL:  "https://example.com/hook",
		AuthDescriptor: map[string]interface{}{
			"headers": map[string]interface{}{"X-Api-Key": "secret"},
		},
		TransformMode: integration.TransformModeSIMPLE,
	}

	reqs, err := transform.Apply(integ, map[string]interface{}{"order_id": "o-1"})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "secret", reqs[0].Headers["X-Api-Key"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, "o-1", body["order_id"])
}

func TestApplyTemplateMapsFields(t *testing.T) {
	integ := &ent.Integration{
		HTTPMethod:    "POST",
		TargetURL:     "https://example.com/hook",
		TransformMode: integration.TransformModeTEMPLATE,
		TransformDescriptor: map[string]interface{}{
			"mappings": []interface{}{
				map[string]interface{}{"from": "order.id", "to": "orderId"},
			},
		},
	}

	reqs, err := transform.Apply(integ, map[string]interface{}{
		"order": map[string]interface{}{"id": "o-1"},
	})
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, "o-1", body["orderId"])
}

func TestApplyActionListProducesIndependentRequests(t *testing.T) {
	integ := &ent.Integration{
		HTTPMethod:    "POST",
		TransformMode: integration.TransformModeACTION_LIST,
		TransformDescriptor: map[string]interface{}{
			"actions": []interface{}{
				map[string]interface{}{"url": "https://a.example.com", "method": "POST", "mode": "simple"},
				map[string]interface{}{"url": "https://b.example.com", "method": "PUT", "mode": "simple"},
			},
		},
	}

	reqs, err := transform.Apply(integ, map[string]interface{}{"k": "v"})
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "https://a.example.com", reqs[0].URL)
	assert.Equal(t, "PUT", reqs[1].Method)
}

func TestApplyTemplateRequiresMappings(t *testing.T) {
	integ := &ent.Integration{TransformMode: integration.TransformModeTEMPLATE, TransformDescriptor: map[string]interface{}{}}

	_, err := transform.Apply(integ, map[string]interface{}{})
	assert.Error(t, err)
}
