package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sleepstars/chatproxy/internal/clients"
)

// ChatCall records one call made to MockChatClient.
type ChatCall struct {
	APIKey string
	Body   json.RawMessage
}

// MockChatClient implements clients.ChatClient for testing
type MockChatClient struct {
	ChatCompletionFunc func(ctx context.Context, apiKey string, body json.RawMessage) (*clients.Response, error)

	mu    sync.Mutex
	calls []ChatCall
}

func (m *MockChatClient) ChatCompletion(ctx context.Context, apiKey string, body json.RawMessage) (*clients.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ChatCall{APIKey: apiKey, Body: body})
	m.mu.Unlock()

	if m.ChatCompletionFunc != nil {
		return m.ChatCompletionFunc(ctx, apiKey, body)
	}
	return &clients.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
}

// Calls returns a copy of the recorded calls.
func (m *MockChatClient) Calls() []ChatCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatCall(nil), m.calls...)
}

// MockSecretProvider implements secrets.Provider for testing
type MockSecretProvider struct {
	SecretFunc func(ctx context.Context) (string, error)
}

func (m *MockSecretProvider) Secret(ctx context.Context) (string, error) {
	if m.SecretFunc != nil {
		return m.SecretFunc(ctx)
	}
	return "sk-mock", nil
}

// MockVerifier implements identity.Verifier for testing
type MockVerifier struct {
	VerifyFunc func(ctx context.Context, token string) (string, error)
}

func (m *MockVerifier) Verify(ctx context.Context, token string) (string, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, token)
	}
	return token, nil
}
