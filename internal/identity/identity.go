package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/sleepstars/chatproxy/internal/config"
	"github.com/sleepstars/chatproxy/internal/models"
)

// Guest is the caller id logged for invocations without an identity.
const Guest = "guest"

// ErrInvalidToken is returned when a presented token is not recognised.
var ErrInvalidToken = errors.New("invalid caller token")

// Verifier turns a caller's bearer token into a user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// CallerID returns the authenticated uid, or Guest.
func CallerID(auth *models.AuthContext) string {
	if auth == nil || auth.UID == "" {
		return Guest
	}
	return auth.UID
}

// BearerToken extracts the token from an Authorization header value.
// It reports false when the header is empty or uses another scheme.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// TokenVerifier accepts a fixed set of tokens.
type TokenVerifier struct {
	tokens []config.TokenConfig
}

// NewTokenVerifier builds a verifier from configured tokens.
func NewTokenVerifier(tokens []config.TokenConfig) *TokenVerifier {
	return &TokenVerifier{tokens: append([]config.TokenConfig(nil), tokens...)}
}

// Verify compares against every configured token so timing does not reveal
// which prefix matched.
func (v *TokenVerifier) Verify(_ context.Context, token string) (string, error) {
	uid := ""
	for _, tc := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(tc.Token), []byte(token)) == 1 {
			uid = tc.UID
		}
	}
	if uid == "" {
		return "", ErrInvalidToken
	}
	return uid, nil
}
