package callable

import "encoding/json"

// ResultEnvelope wraps a successful result on the wire.
type ResultEnvelope struct {
	Result json.RawMessage `json:"result"`
}

// ErrorEnvelope wraps a failed invocation on the wire.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the error object sent to callers.
type ErrorBody struct {
	Status  Kind   `json:"status"`
	Message string `json:"message"`
}

// Envelope returns the wire form of e.
func (e *Error) Envelope() ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorBody{Status: e.Kind, Message: e.Message}}
}
