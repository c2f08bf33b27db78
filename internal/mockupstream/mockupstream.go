// Package mockupstream is a local stand-in for the OpenAI chat-completions
// API, used for development and integration tests.
package mockupstream

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sleepstars/chatproxy/internal/identity"
)

// Models with special behaviour.
const (
	ModelServerError = "mock-server-error"
	ModelBadGateway  = "mock-bad-gateway"
	ModelRateLimited = "mock-rate-limited"
)

// Server answers chat-completion requests authenticated with APIKey.
type Server struct {
	APIKey string
	calls  atomic.Int64
}

// New creates a mock upstream accepting apiKey.
func New(apiKey string) *Server {
	return &Server{APIKey: apiKey}
}

// Calls reports how many chat-completion requests were received.
func (s *Server) Calls() int64 {
	return s.calls.Load()
}

// Router returns the gin engine serving /v1/chat/completions.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/v1/chat/completions", s.chatCompletions)
	return r
}

func apiError(c *gin.Context, status int, errType, message string) {
	c.JSON(status, openai.ErrorResponse{Error: &openai.APIError{
		Type:    errType,
		Message: message,
	}})
}

func (s *Server) chatCompletions(c *gin.Context) {
	s.calls.Add(1)

	token, ok := identity.BearerToken(c.GetHeader("Authorization"))
	if !ok || token != s.APIKey {
		apiError(c, http.StatusUnauthorized, "invalid_request_error", "Incorrect API key provided.")
		return
	}

	var req openai.ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, "invalid_request_error", "We could not parse the JSON body of your request.")
		return
	}

	switch req.Model {
	case "":
		apiError(c, http.StatusBadRequest, "invalid_request_error", "you must provide a model parameter")
		return
	case ModelServerError:
		apiError(c, http.StatusInternalServerError, "server_error", "The server had an error while processing your request.")
		return
	case ModelBadGateway:
		c.Data(http.StatusBadGateway, "text/html", []byte("<html><body>502 Bad Gateway</body></html>"))
		return
	case ModelRateLimited:
		apiError(c, http.StatusTooManyRequests, "requests", "Rate limit reached for requests")
		return
	}
	if len(req.Messages) == 0 {
		apiError(c, http.StatusBadRequest, "invalid_request_error", "[] is too short - 'messages'")
		return
	}

	last := req.Messages[len(req.Messages)-1]
	content := fmt.Sprintf("echo: %s", last.Content)
	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(strings.Fields(m.Content))
	}
	completionTokens := len(strings.Fields(content))

	c.JSON(http.StatusOK, openai.ChatCompletionResponse{
		ID:      fmt.Sprintf("chatcmpl-mock-%d", s.calls.Load()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []openai.ChatCompletionChoice{
			{
				Index: 0,
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: content,
				},
				FinishReason: openai.FinishReasonStop,
			},
		},
		Usage: openai.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	})
}
