package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasMessages(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
		want    bool
	}{
		{name: "Valid request", payload: `{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`, want: true},
		{name: "Empty messages array is present", payload: `{"messages":[]}`, want: true},
		{name: "Malformed elements are not inspected", payload: `{"messages":[{"foo":1},"bar"]}`, want: true},
		{name: "Messages as object", payload: `{"messages":{"role":"user"}}`, want: true},
		{name: "Absent payload", payload: ``, want: false},
		{name: "Null payload", payload: `null`, want: false},
		{name: "Payload is a string", payload: `"hello"`, want: false},
		{name: "Payload is an array", payload: `[{"messages":[]}]`, want: false},
		{name: "Missing messages", payload: `{"model":"gpt-4o"}`, want: false},
		{name: "Null messages", payload: `{"messages":null}`, want: false},
		{name: "False messages", payload: `{"messages":false}`, want: false},
		{name: "Empty string messages", payload: `{"messages":""}`, want: false},
		{name: "Zero messages", payload: `{"messages":0}`, want: false},
		{name: "Non-zero number messages", payload: `{"messages":3}`, want: true},
		{name: "Invalid JSON", payload: `{"messages":`, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var raw json.RawMessage
			if tc.payload != "" {
				raw = json.RawMessage(tc.payload)
			}
			assert.Equal(t, tc.want, HasMessages(raw))
		})
	}
}

func TestCallableRequestKeepsRawPayload(t *testing.T) {
	body := `{"data":{"payload":{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"user":"abc","n":2}}}`

	var req CallableRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	require.NotNil(t, req.Data)
	assert.JSONEq(t,
		`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}],"user":"abc","n":2}`,
		string(req.Data.Payload))

	var view ChatRequest
	require.NoError(t, json.Unmarshal(req.Data.Payload, &view))
	assert.Equal(t, "gpt-4o", view.Model)
	assert.Equal(t, []ChatMessage{{Role: "user", Content: "hi"}}, view.Messages)
	assert.Nil(t, view.MaxTokens)
	assert.Nil(t, view.Temperature)
}

func TestCallableRequestWithoutData(t *testing.T) {
	var req CallableRequest
	require.NoError(t, json.Unmarshal([]byte(`{}`), &req))
	assert.Nil(t, req.Data)

	require.NoError(t, json.Unmarshal([]byte(`{"data":{}}`), &req))
	require.NotNil(t, req.Data)
	assert.Nil(t, req.Data.Payload)
}
