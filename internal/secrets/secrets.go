package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

var (
	// ErrNotSet is returned when a secret has no value.
	ErrNotSet = errors.New("secret not set")
	// ErrEnvFile is returned when the dotenv fallback cannot be read or
	// parsed. The underlying error is dropped because parse errors quote
	// the file content.
	ErrEnvFile = errors.New("env file unreadable")
)

// Provider resolves the upstream credential. Implementations are called
// once per invocation and must never log the value they return.
type Provider interface {
	Secret(ctx context.Context) (string, error)
}

// EnvProvider reads a secret from the process environment at call time,
// so a value rotated by the host is picked up without a restart. When
// EnvFile is set and the variable is unset, the file is read with dotenv
// syntax as a fallback for local development.
type EnvProvider struct {
	Name    string
	EnvFile string
}

// NewEnvProvider creates a provider for the named variable.
func NewEnvProvider(name, envFile string) *EnvProvider {
	return &EnvProvider{Name: name, EnvFile: envFile}
}

func (p *EnvProvider) Secret(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if value := os.Getenv(p.Name); value != "" {
		return value, nil
	}
	if p.EnvFile != "" {
		values, err := godotenv.Read(p.EnvFile)
		if err != nil {
			return "", fmt.Errorf("read env file %s for %s: %w", p.EnvFile, p.Name, ErrEnvFile)
		}
		if value := values[p.Name]; value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("%s: %w", p.Name, ErrNotSet)
}

// StaticProvider returns a fixed value.
type StaticProvider string

func (p StaticProvider) Secret(context.Context) (string, error) {
	if p == "" {
		return "", ErrNotSet
	}
	return string(p), nil
}
