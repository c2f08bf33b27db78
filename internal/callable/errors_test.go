package callable

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, NewError(InvalidArgument, "x").HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, NewError(Unauthenticated, "x").HTTPStatus())
	assert.Equal(t, http.StatusTooManyRequests, NewError(ResourceExhausted, "x").HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, NewError(Internal, "x").HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, NewError(Kind("UNKNOWN"), "x").HTTPStatus())
}

func TestNormalize(t *testing.T) {
	t.Run("NilStaysNil", func(t *testing.T) {
		assert.Nil(t, Normalize(nil))
	})

	t.Run("ClassifiedPassesThrough", func(t *testing.T) {
		orig := NewError(InvalidArgument, MsgMissingPayload)
		assert.Same(t, orig, Normalize(orig))
	})

	t.Run("WrappedClassifiedIsUnwrapped", func(t *testing.T) {
		orig := NewError(Internal, "invalid api key")
		got := Normalize(fmt.Errorf("upstream: %w", orig))
		assert.Same(t, orig, got)
	})

	t.Run("UnclassifiedBecomesGenericInternal", func(t *testing.T) {
		got := Normalize(fmt.Errorf("dial tcp 10.0.0.1:443: connection refused"))
		assert.Equal(t, Internal, got.Kind)
		assert.Equal(t, MsgProcessingFailed, got.Message)
	})
}

func TestEnvelope(t *testing.T) {
	data, err := json.Marshal(NewError(InvalidArgument, MsgMissingPayload).Envelope())
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"error":{"status":"INVALID_ARGUMENT","message":"Missing required payload with messages."}}`,
		string(data))

	data, err = json.Marshal(ResultEnvelope{Result: json.RawMessage(`{"id":"x"}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":{"id":"x"}}`, string(data))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "INTERNAL: OpenAI API request failed", NewError(Internal, MsgUpstreamFailed).Error())
}
