// Package config implements the gateway's configuration snapshot store: a
// YAML file is loaded, sanitized, and validated into an immutable Config
// value, published atomically so concurrent readers never observe a
// partially-updated snapshot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/relaykit/aigateway/internal/payload"
	"github.com/relaykit/aigateway/internal/router"
)

const (
	DefaultPort           = 8317
	DefaultHost           = "0.0.0.0"
	DefaultConfigFilename = "config.yaml"
)

type TLSConfig struct {
	Enable bool   `yaml:"enable"`
	Cert   string `yaml:"cert,omitempty"`
	Key    string `yaml:"key,omitempty"`
}

type RoutingConfig struct {
	Strategy router.RoutingStrategy `yaml:"strategy"`
}

type StreamingConfig struct {
	KeepaliveSeconds int `yaml:"keepalive-seconds"`
	BootstrapRetries int `yaml:"bootstrap-retries"`
}

type RetryConfig struct {
	MaxRetries           int `yaml:"max-retries"`
	MaxBackoffSecs       int `yaml:"max-backoff-secs"`
	Cooldown429Secs      int `yaml:"cooldown-429-secs"`
	Cooldown5xxSecs      int `yaml:"cooldown-5xx-secs"`
	CooldownNetworkSecs  int `yaml:"cooldown-network-secs"`
}

// Config is the fully-loaded, sanitized, validated configuration snapshot.
// It is never mutated after Load returns; hot-reload publishes a brand new
// value via atomic swap.
type Config struct {
	Host    string    `yaml:"host"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
	APIKeys []string  `yaml:"api-keys"`
	// ProxyURL is the global default; a ProviderKeyEntry overrides it per
	// §4.3, with an explicit empty string meaning "bypass, go direct".
	ProxyURL string `yaml:"proxy-url,omitempty"`
	Debug    bool   `yaml:"debug"`

	Routing           RoutingConfig   `yaml:"routing"`
	RequestRetry      int             `yaml:"request-retry"`
	MaxRetryInterval  int             `yaml:"max-retry-interval"`
	ConnectTimeout    int             `yaml:"connect-timeout"`
	RequestTimeout    int             `yaml:"request-timeout"`
	Streaming         StreamingConfig `yaml:"streaming"`
	BodyLimitMB       int             `yaml:"body-limit-mb"`
	Retry             RetryConfig     `yaml:"retry"`

	Payload              payload.Config    `yaml:"payload"`
	PassthroughHeaders   []string          `yaml:"passthrough-headers"`
	ClaudeHeaderDefaults map[string]string `yaml:"claude-header-defaults"`
	ForceModelPrefix     bool              `yaml:"force-model-prefix"`
	NonStreamKeepaliveSecs int             `yaml:"non-stream-keepalive-secs"`

	ClaudeAPIKey        []router.ProviderKeyEntry `yaml:"claude-api-key"`
	OpenAIAPIKey        []router.ProviderKeyEntry `yaml:"openai-api-key"`
	GeminiAPIKey        []router.ProviderKeyEntry `yaml:"gemini-api-key"`
	OpenAICompatibility []router.ProviderKeyEntry `yaml:"openai-compatibility"`

	// Ambient fields, parsed and validated so the file round-trips, but
	// with no behavior defined by this core (owned by the CLI/logging
	// scaffolding).
	LoggingToFile bool   `yaml:"logging-to-file"`
	LogDir        string `yaml:"log-dir"`

	// apiKeySet is derived during sanitize for O(1) client-auth lookup.
	// Unexported: never serialized, never copied across a reload except
	// by recomputation.
	apiKeySet map[string]struct{}
}

func defaults() *Config {
	return &Config{
		Host: DefaultHost,
		Port: DefaultPort,
		Routing: RoutingConfig{
			Strategy: router.StrategyRoundRobin,
		},
		RequestRetry:     3,
		MaxRetryInterval: 30,
		ConnectTimeout:   30,
		RequestTimeout:   300,
		Streaming: StreamingConfig{
			KeepaliveSeconds: 15,
			BootstrapRetries: 1,
		},
		BodyLimitMB: 10,
		Retry: RetryConfig{
			MaxRetries:          3,
			MaxBackoffSecs:      30,
			Cooldown429Secs:     60,
			Cooldown5xxSecs:     15,
			CooldownNetworkSecs: 10,
		},
		ClaudeHeaderDefaults: map[string]string{},
	}
}

// IsClientKeyValid reports whether key is one of the configured api-keys.
func (c *Config) IsClientKeyValid(key string) bool {
	if len(c.apiKeySet) == 0 {
		return false
	}
	_, ok := c.apiKeySet[key]
	return ok
}

// Manager owns the atomic config snapshot and the path it was loaded from.
type Manager struct {
	configPath  string
	snapshot    atomic.Pointer[Config]
	lastHash    atomic.Pointer[[32]byte]
}

func NewManager(path string) *Manager {
	return &Manager{configPath: path}
}

// Load reads, sanitizes, validates, and publishes a fresh Config snapshot.
func (m *Manager) Load() (*Config, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	sanitize(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	m.snapshot.Store(cfg)
	return cfg, nil
}

// Get returns the current snapshot, loading it on first access if absent.
func (m *Manager) Get() *Config {
	if v := m.snapshot.Load(); v != nil {
		return v
	}
	cfg, err := m.Load()
	if err != nil {
		return defaults()
	}
	return cfg
}

func (m *Manager) GetPath() string { return m.configPath }

func (m *Manager) Exists() bool {
	_, err := os.Stat(m.configPath)
	return err == nil
}

func DefaultConfigPath(baseDir string) string {
	return filepath.Join(baseDir, DefaultConfigFilename)
}
