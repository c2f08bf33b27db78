package models

import (
	"bytes"
	"encoding/json"
)

// ChatRequest is the typed view of the payload a caller asks to forward.
// The proxy forwards the caller's original bytes, so fields missing here
// still reach the upstream API.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
}

// ChatMessage represents a message in the chat
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AuthContext carries the verified identity of the caller.
type AuthContext struct {
	UID string
}

// Invocation is one call delivered to the proxy handler.
type Invocation struct {
	// Payload holds the raw JSON of the "payload" field; nil when the caller omitted it.
	Payload   json.RawMessage
	Auth      *AuthContext
	RequestID string
}

// CallableRequest is the body a caller posts to the function endpoint.
type CallableRequest struct {
	Data *InvocationData `json:"data"`
}

// InvocationData is the caller-supplied part of an invocation.
type InvocationData struct {
	Payload json.RawMessage `json:"payload"`
}

// HasMessages reports whether payload is a JSON object whose "messages"
// member is present and truthy. Element shape is not inspected.
func HasMessages(payload json.RawMessage) bool {
	if isFalsy(payload) {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return false
	}
	messages, ok := fields["messages"]
	return ok && !isFalsy(messages)
}

// isFalsy matches the JSON values a loosely typed caller treats as "not set".
// Empty arrays and objects are set.
func isFalsy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return true
	}
	switch string(v) {
	case "null", "false", `""`:
		return true
	}
	var n float64
	if v[0] == '-' || (v[0] >= '0' && v[0] <= '9') {
		if err := json.Unmarshal(v, &n); err == nil && n == 0 {
			return true
		}
	}
	return false
}
