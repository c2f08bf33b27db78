package clients

import (
	"context"
	"encoding/json"
	"time"
)

// ChatClient defines the interface for the upstream chat-completion API
type ChatClient interface {
	// ChatCompletion posts body unchanged, authenticated with apiKey.
	ChatCompletion(ctx context.Context, apiKey string, body json.RawMessage) (*Response, error)
}

// ChatClientConfig contains configuration for the upstream client
type ChatClientConfig struct {
	Endpoint string
	// Timeout of 0 means no client-side deadline beyond the request context.
	Timeout time.Duration
}

// Response is the raw upstream reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the upstream answered with a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
