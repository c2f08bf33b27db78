package callable

import (
	"errors"
	"net/http"
)

// Kind classifies an error surfaced to the caller.
type Kind string

const (
	InvalidArgument   Kind = "INVALID_ARGUMENT"
	Unauthenticated   Kind = "UNAUTHENTICATED"
	ResourceExhausted Kind = "RESOURCE_EXHAUSTED"
	Internal          Kind = "INTERNAL"
)

// Messages returned to callers.
const (
	MsgMissingPayload   = "Missing required payload with messages."
	MsgUpstreamFailed   = "OpenAI API request failed"
	MsgProcessingFailed = "Failed to process request"
	MsgInvalidToken     = "Invalid caller token."
	MsgTooManyRequests  = "Too many concurrent requests."
)

// Error is an error already normalized for the caller. Its Message is safe
// to return verbatim.
type Error struct {
	Kind    Kind
	Message string
}

// NewError creates a classified error.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// HTTPStatus maps the kind to the status code written on the wire.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case InvalidArgument:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case ResourceExhausted:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AsError returns the classified error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Normalize returns err unchanged when it is already classified and an
// Internal error with the generic message otherwise.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if ce, ok := AsError(err); ok {
		return ce
	}
	return NewError(Internal, MsgProcessingFailed)
}
