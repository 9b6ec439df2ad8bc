package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, yaml string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
api-keys: ["client-key"]
openai-api-key:
  - api-key: sk-openai
`)

	mgr := NewManager(path)
	cfg, err := mgr.Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 15, cfg.Streaming.KeepaliveSeconds)
	assert.True(t, cfg.IsClientKeyValid("client-key"))
	assert.False(t, cfg.IsClientKeyValid("other-key"))
}

func TestSanitizeDropsEmptyAndDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
openai-api-key:
  - api-key: ""
  - api-key: sk-a
    base-url: "https://example.com/"
    headers:
      X-Custom: value
  - api-key: sk-a
    name: duplicate
`)

	mgr := NewManager(path)
	cfg, err := mgr.Load()
	require.NoError(t, err)

	require.Len(t, cfg.OpenAIAPIKey, 1)
	entry := cfg.OpenAIAPIKey[0]
	assert.Equal(t, "sk-a", entry.APIKey)
	assert.Equal(t, "https://example.com", entry.BaseURL)
	assert.Equal(t, "value", entry.Headers["x-custom"])
}

func TestValidateRejectsIncompleteTLS(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
tls:
  enable: true
`)

	mgr := NewManager(path)
	_, err := mgr.Load()
	require.Error(t, err)
}

func TestValidateRejectsUnrecognizedProxyScheme(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
proxy-url: "ftp://example.com"
`)

	mgr := NewManager(path)
	_, err := mgr.Load()
	require.Error(t, err)
}

func TestValidateAcceptsExplicitEmptyProviderProxy(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
proxy-url: "socks5://proxy.internal:1080"
openai-api-key:
  - api-key: sk-a
    proxy-url: ""
`)

	mgr := NewManager(path)
	cfg, err := mgr.Load()
	require.NoError(t, err)
	require.Len(t, cfg.OpenAIAPIKey, 1)
	require.NotNil(t, cfg.OpenAIAPIKey[0].ProxyURL)
	assert.Equal(t, "", *cfg.OpenAIAPIKey[0].ProxyURL)
}

func TestGetFallsBackToDefaultsWhenLoadFails(t *testing.T) {
	mgr := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
	cfg := mgr.Get()
	assert.Equal(t, DefaultHost, cfg.Host)
}
