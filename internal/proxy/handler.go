package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sleepstars/chatproxy/internal/callable"
	"github.com/sleepstars/chatproxy/internal/clients"
	"github.com/sleepstars/chatproxy/internal/identity"
	"github.com/sleepstars/chatproxy/internal/logger"
	"github.com/sleepstars/chatproxy/internal/metrics"
	"github.com/sleepstars/chatproxy/internal/models"
	"github.com/sleepstars/chatproxy/internal/secrets"
)

const redacted = "[REDACTED]"

var errInvalidUpstreamJSON = errors.New("upstream returned invalid JSON")

// Handler forwards one chat-completion invocation to the upstream API.
// It keeps no state between invocations and is safe for concurrent use.
type Handler struct {
	Client  clients.ChatClient
	Secrets secrets.Provider
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// NewHandler creates a proxy handler
func NewHandler(client clients.ChatClient, provider secrets.Provider, m *metrics.Metrics) *Handler {
	return &Handler{
		Client:  client,
		Secrets: provider,
		Metrics: m,
		Logger:  logger.GetLogger().WithComponent("proxy"),
	}
}

// Handle validates the invocation, forwards its payload and returns the
// upstream body unchanged. Every returned error is a *callable.Error.
func (h *Handler) Handle(ctx context.Context, inv *models.Invocation) (json.RawMessage, error) {
	if inv == nil || !models.HasMessages(inv.Payload) {
		h.Metrics.RecordInvocation(string(callable.InvalidArgument))
		return nil, callable.NewError(callable.InvalidArgument, callable.MsgMissingPayload)
	}

	log := h.Logger
	if inv.RequestID != "" {
		log = log.WithField("request_id", inv.RequestID)
	}
	log.Info("Chat proxy request from: %s", identity.CallerID(inv.Auth))

	// The typed view is for logging only; payloads it cannot describe are still forwarded.
	var view models.ChatRequest
	if json.Unmarshal(inv.Payload, &view) == nil {
		log.Debug("Forwarding model=%q messages=%d", view.Model, len(view.Messages))
	}

	result, err := h.forward(ctx, log, inv.Payload)
	if err != nil {
		log.WithError(err).Error("Chat proxy error")
		ce := callable.Normalize(err)
		h.Metrics.RecordInvocation(string(ce.Kind))
		return nil, ce
	}

	h.Metrics.RecordInvocation("ok")
	return result, nil
}

func (h *Handler) forward(ctx context.Context, log *logger.Logger, payload json.RawMessage) (json.RawMessage, error) {
	apiKey, err := h.Secrets.Secret(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}

	start := time.Now()
	resp, err := h.Client.ChatCompletion(ctx, apiKey, payload)
	if err != nil {
		h.Metrics.ObserveUpstream(metrics.OutcomeTransport, time.Since(start))
		return nil, fmt.Errorf("upstream call: %w", err)
	}

	if !resp.OK() {
		h.Metrics.ObserveUpstream(metrics.OutcomeStatusError, time.Since(start))
		log.Error("Upstream API error: status=%d body=%s", resp.StatusCode, redact(string(resp.Body), apiKey))

		message, err := upstreamErrorMessage(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decode upstream error (status %d): %w", resp.StatusCode, err)
		}
		return nil, callable.NewError(callable.Internal, redact(message, apiKey))
	}

	h.Metrics.ObserveUpstream(metrics.OutcomeOK, time.Since(start))
	if !json.Valid(resp.Body) {
		return nil, errInvalidUpstreamJSON
	}
	log.Debug("Upstream call completed with status %d", resp.StatusCode)
	return json.RawMessage(resp.Body), nil
}

// upstreamErrorMessage returns error.message from an upstream error body,
// or the generic upstream failure message when the body is valid JSON
// without one.
func upstreamErrorMessage(body []byte) (string, error) {
	var parsed interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if obj, ok := parsed.(map[string]interface{}); ok {
		if errObj, ok := obj["error"].(map[string]interface{}); ok {
			if msg, ok := errObj["message"].(string); ok && msg != "" {
				return msg, nil
			}
		}
	}
	return callable.MsgUpstreamFailed, nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, redacted)
}
