package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sleepstars/chatproxy/internal/callable"
	"github.com/sleepstars/chatproxy/internal/clients"
	"github.com/sleepstars/chatproxy/internal/config"
	"github.com/sleepstars/chatproxy/internal/identity"
	"github.com/sleepstars/chatproxy/internal/logger"
	"github.com/sleepstars/chatproxy/internal/metrics"
	"github.com/sleepstars/chatproxy/internal/mockupstream"
	"github.com/sleepstars/chatproxy/internal/proxy"
	"github.com/sleepstars/chatproxy/internal/secrets"
	"github.com/sleepstars/chatproxy/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secretEnv = "CHATPROXY_INTEGRATION_KEY"
	apiKey    = "sk-integration-7f3a"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitLogger(logger.ERROR, "integration_test")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stack struct {
	proxyURL string
	upstream *mockupstream.Server
	logs     *syncBuffer
}

func startStack(t *testing.T) *stack {
	t.Helper()
	t.Setenv(secretEnv, apiKey)

	upstream := mockupstream.New(apiKey)
	upstreamSrv := httptest.NewServer(upstream.Router())
	t.Cleanup(upstreamSrv.Close)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`server:
  max_instances: 4
upstream:
  url: %q
secret:
  name: %s
auth:
  tokens:
    - token: "tok-u1"
      uid: "u1"
log:
  level: debug
`, upstreamSrv.URL+"/v1/chat/completions", secretEnv)), 0644))

	cfg, err := config.LoadConfig(cfgPath)
	require.NoError(t, err)

	logs := &syncBuffer{}
	m := metrics.New(cfg.Metrics.Namespace)
	handler := proxy.NewHandler(
		clients.NewOpenAIClient(clients.ChatClientConfig{Endpoint: cfg.Upstream.URL, Timeout: cfg.Upstream.Timeout}),
		secrets.NewEnvProvider(cfg.Secret.Name, cfg.Secret.EnvFile),
		m,
	)
	handler.Logger = logger.New(logs, logger.DEBUG, "proxy")

	proxySrv := httptest.NewServer(server.New(cfg.Server, handler, identity.NewTokenVerifier(cfg.Auth.Tokens), m).Handler())
	t.Cleanup(proxySrv.Close)

	return &stack{proxyURL: proxySrv.URL + cfg.Server.FunctionPath, upstream: upstream, logs: logs}
}

func (s *stack) call(t *testing.T, token string, payload interface{}) (int, []byte) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{"data": map[string]interface{}{"payload": payload}})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, s.proxyURL, strings.NewReader(string(body)))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func chatPayload(model string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: "ping"}},
		MaxTokens:   16,
		Temperature: 0.2,
	}
}

func TestProxyIntegration_Success(t *testing.T) {
	s := startStack(t)

	status, body := s.call(t, "tok-u1", chatPayload("gpt-4o-mini"))
	require.Equal(t, http.StatusOK, status, string(body))

	var env struct {
		Result openai.ChatCompletionResponse `json:"result"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	require.Len(t, env.Result.Choices, 1)
	assert.Equal(t, "echo: ping", env.Result.Choices[0].Message.Content)
	assert.Equal(t, int64(1), s.upstream.Calls())

	assert.Contains(t, s.logs.String(), "Chat proxy request from: u1")
	assert.NotContains(t, s.logs.String(), apiKey)
	assert.NotContains(t, string(body), apiKey)
}

func TestProxyIntegration_GuestAndRepeatedCalls(t *testing.T) {
	s := startStack(t)

	for i := 0; i < 2; i++ {
		status, _ := s.call(t, "", chatPayload("gpt-4o-mini"))
		assert.Equal(t, http.StatusOK, status)
	}

	assert.Equal(t, int64(2), s.upstream.Calls(), "identical payloads are forwarded every time")
	assert.Equal(t, 2, strings.Count(s.logs.String(), "Chat proxy request from: guest"))
}

func TestProxyIntegration_Errors(t *testing.T) {
	tests := []struct {
		name          string
		payload       interface{}
		status        int
		want          callable.ErrorBody
		upstreamCalls int64
	}{
		{
			name:    "missing messages",
			payload: map[string]interface{}{"model": "gpt-4o-mini"},
			status:  http.StatusBadRequest,
			want:    callable.ErrorBody{Status: callable.InvalidArgument, Message: "Missing required payload with messages."},
		},
		{
			name:          "upstream error message",
			payload:       chatPayload(mockupstream.ModelRateLimited),
			status:        http.StatusInternalServerError,
			want:          callable.ErrorBody{Status: callable.Internal, Message: "Rate limit reached for requests"},
			upstreamCalls: 1,
		},
		{
			name:          "upstream body not JSON",
			payload:       chatPayload(mockupstream.ModelBadGateway),
			status:        http.StatusInternalServerError,
			want:          callable.ErrorBody{Status: callable.Internal, Message: "Failed to process request"},
			upstreamCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startStack(t)

			status, body := s.call(t, "", tt.payload)

			assert.Equal(t, tt.status, status)
			var env callable.ErrorEnvelope
			require.NoError(t, json.Unmarshal(body, &env), string(body))
			assert.Equal(t, tt.want, env.Error)
			assert.Equal(t, tt.upstreamCalls, s.upstream.Calls())
			assert.NotContains(t, string(body), apiKey)
		})
	}
}

func TestProxyIntegration_RotatedCredential(t *testing.T) {
	s := startStack(t)
	t.Setenv(secretEnv, "sk-rotated-away")

	status, body := s.call(t, "", chatPayload("gpt-4o-mini"))

	assert.Equal(t, http.StatusInternalServerError, status)
	var env callable.ErrorEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.Equal(t, "Incorrect API key provided.", env.Error.Message)
	assert.NotContains(t, s.logs.String(), "sk-rotated-away")
}
