package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sleepstars/chatproxy/internal/logger"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListenAddr    = ":8080"
	DefaultFunctionPath  = "/openaiProxy"
	DefaultUpstreamURL   = "https://api.openai.com/v1/chat/completions"
	DefaultSecretName    = "OPENAI_API_KEY"
	DefaultMaxInstances  = 10
	DefaultSlotTimeout   = 30 * time.Second
	DefaultLogLevel      = "info"
	DefaultMetricsPrefix = "chatproxy"
)

// ProxyConfig is the top-level configuration of the proxy service.
// The upstream credential is deliberately absent: it is resolved from the
// environment at call time by the secrets provider.
type ProxyConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Secret   SecretConfig   `yaml:"secret"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig controls the invocation host
type ServerConfig struct {
	ListenAddr   string `yaml:"listen_addr"`
	FunctionPath string `yaml:"function_path"`
	// MaxInstances caps the number of invocations handled at the same time.
	MaxInstances int `yaml:"max_instances"`
	// SlotTimeout bounds how long an invocation waits for a free instance
	// before it is rejected.
	SlotTimeout time.Duration `yaml:"slot_timeout"`
	CORSOrigins []string      `yaml:"cors_origins,omitempty"`
}

// UpstreamConfig describes the chat-completion endpoint requests are forwarded to
type UpstreamConfig struct {
	URL string `yaml:"url"`
	// Timeout of 0 leaves the HTTP client default in place.
	Timeout time.Duration `yaml:"timeout"`
}

// SecretConfig names where the upstream credential comes from
type SecretConfig struct {
	Name    string `yaml:"name"`
	EnvFile string `yaml:"env_file,omitempty"`
}

// AuthConfig lists the bearer tokens accepted as caller identities
type AuthConfig struct {
	Tokens []TokenConfig `yaml:"tokens,omitempty"`
}

// TokenConfig binds one bearer token to a user id
type TokenConfig struct {
	Token string `yaml:"token"`
	UID   string `yaml:"uid"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig contains Prometheus settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns a configuration with every field set to its default value.
func Default() *ProxyConfig {
	cfg := &ProxyConfig{Metrics: MetricsConfig{Enabled: true}}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*ProxyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &ProxyConfig{Metrics: MetricsConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ProxyConfig) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.FunctionPath == "" {
		c.Server.FunctionPath = DefaultFunctionPath
	}
	if c.Server.MaxInstances == 0 {
		c.Server.MaxInstances = DefaultMaxInstances
	}
	if c.Server.SlotTimeout == 0 {
		c.Server.SlotTimeout = DefaultSlotTimeout
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Upstream.URL == "" {
		c.Upstream.URL = DefaultUpstreamURL
	}
	if c.Secret.Name == "" {
		c.Secret.Name = DefaultSecretName
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsPrefix
	}
}

// Validate reports the first invalid setting.
func (c *ProxyConfig) Validate() error {
	if c.Server.MaxInstances < 0 {
		return errors.New("server.max_instances must not be negative")
	}
	if c.Server.SlotTimeout < 0 {
		return errors.New("server.slot_timeout must not be negative")
	}
	if !strings.HasPrefix(c.Server.FunctionPath, "/") {
		return fmt.Errorf("server.function_path %q must start with '/'", c.Server.FunctionPath)
	}
	u, err := url.Parse(c.Upstream.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("upstream.url %q must be an absolute http(s) URL", c.Upstream.URL)
	}
	if c.Upstream.Timeout < 0 {
		return errors.New("upstream.timeout must not be negative")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	seen := make(map[string]bool, len(c.Auth.Tokens))
	for i, tc := range c.Auth.Tokens {
		if tc.Token == "" || tc.UID == "" {
			return fmt.Errorf("auth.tokens[%d] needs both token and uid", i)
		}
		if seen[tc.Token] {
			return fmt.Errorf("auth.tokens[%d] duplicates an earlier token", i)
		}
		seen[tc.Token] = true
	}
	return nil
}
