// Package transform maps an event payload into one or more outbound HTTP
// request shapes according to an integration's configured mode: SIMPLE
// (passthrough), TEMPLATE (declarative field mapping), or ACTION_LIST
// (ordered independent deliveries) (§4.5).
package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eventgateway/gateway/ent"
	"github.com/eventgateway/gateway/ent/integration"
)

// Request is one outbound delivery request produced by a transform.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Error wraps a transformation failure. Per §4.5/§7 these are business-logic
// failures: terminal, not retried, and never counted toward the breaker.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "transform: " + e.Reason }

// Apply transforms payload according to integ's transform_mode, returning
// one Request for SIMPLE/TEMPLATE and one Request per action for
// ACTION_LIST (§4.5: "each action produces one ExecutionLog").
func Apply(integ *ent.Integration, payload map[string]interface{}) ([]Request, error) {
	switch integ.TransformMode {
	case integration.TransformModeSIMPLE:
		req, err := simple(integ, payload)
		if err != nil {
			return nil, err
		}
		return []Request{req}, nil

	case integration.TransformModeTEMPLATE:
		req, err := templated(integ, payload)
		if err != nil {
			return nil, err
		}
		return []Request{req}, nil

	case integration.TransformModeACTION_LIST:
		return actionList(integ, payload)

	default:
		return nil, &Error{Reason: fmt.Sprintf("unknown transform mode %q", integ.TransformMode)}
	}
}

func simple(integ *ent.Integration, payload map[string]interface{}) (Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, &Error{Reason: "marshal payload: " + err.Error()}
	}
	return Request{
		Method:  integ.HTTPMethod,
		URL:     integ.TargetURL,
		Headers: authHeaders(integ.AuthDescriptor),
		Body:    body,
	}, nil
}

// mapping describes one source-path → target-path copy for TEMPLATE mode.
type mapping struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func templated(integ *ent.Integration, payload map[string]interface{}) (Request, error) {
	mappings, err := parseMappings(integ.TransformDescriptor)
	if err != nil {
		return Request{}, err
	}

	out := map[string]interface{}{}
	for _, m := range mappings {
		val, ok := getPath(payload, m.From)
		if !ok {
			continue
		}
		setPath(out, m.To, val)
	}

	body, err := json.Marshal(out)
	if err != nil {
		return Request{}, &Error{Reason: "marshal templated body: " + err.Error()}
	}
	return Request{
		Method:  integ.HTTPMethod,
		URL:     integ.TargetURL,
		Headers: authHeaders(integ.AuthDescriptor),
		Body:    body,
	}, nil
}

func parseMappings(descriptor map[string]interface{}) ([]mapping, error) {
	raw, ok := descriptor["mappings"]
	if !ok {
		return nil, &Error{Reason: "template mode requires transform_descriptor.mappings"}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, &Error{Reason: "encode mappings: " + err.Error()}
	}
	var mappings []mapping
	if err := json.Unmarshal(encoded, &mappings); err != nil {
		return nil, &Error{Reason: "decode mappings: " + err.Error()}
	}
	return mappings, nil
}

// action describes one independent delivery within an ACTION_LIST.
type action struct {
	URL     string                 `json:"url"`
	Method  string                 `json:"method"`
	Mode    string                 `json:"mode"`
	Mapping map[string]interface{} `json:"transform"`
}

func actionList(integ *ent.Integration, payload map[string]interface{}) ([]Request, error) {
	raw, ok := integ.TransformDescriptor["actions"]
	if !ok {
		return nil, &Error{Reason: "action_list mode requires transform_descriptor.actions"}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, &Error{Reason: "encode actions: " + err.Error()}
	}
	var actions []action
	if err := json.Unmarshal(encoded, &actions); err != nil {
		return nil, &Error{Reason: "decode actions: " + err.Error()}
	}
	if len(actions) == 0 {
		return nil, &Error{Reason: "action_list mode requires at least one action"}
	}

	headers := authHeaders(integ.AuthDescriptor)
	requests := make([]Request, 0, len(actions))
	for i, a := range actions {
		body := payload
		if a.Mode == "template" {
			mappings, err := parseMappings(a.Mapping)
			if err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			transformed := map[string]interface{}{}
			for _, m := range mappings {
				if val, ok := getPath(payload, m.From); ok {
					setPath(transformed, m.To, val)
				}
			}
			body = transformed
		}
		encodedBody, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Reason: fmt.Sprintf("action %d: marshal body: %v", i, err)}
		}
		method := a.Method
		if method == "" {
			method = integ.HTTPMethod
		}
		requests = append(requests, Request{
			Method:  method,
			URL:     a.URL,
			Headers: headers,
			Body:    encodedBody,
		})
	}
	return requests, nil
}

func authHeaders(descriptor map[string]interface{}) map[string]string {
	headers := map[string]string{}
	raw, ok := descriptor["headers"]
	if !ok {
		return headers
	}
	asMap, ok := raw.(map[string]interface{})
	if !ok {
		return headers
	}
	for k, v := range asMap {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	return headers
}

// getPath reads a dot-separated path ("a.b.c") out of a nested map.
func getPath(m map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = m
	for _, p := range parts {
		asMap, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = asMap[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes value at a dot-separated path, creating intermediate maps
// as needed.
func setPath(m map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	cur := m
	for i, p := range parts {
		if i == len(parts)-1 {
			cur[p] = value
			return
		}
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[p] = next
		}
		cur = next
	}
}
