package router

import "github.com/relaykit/aigateway/internal/cloak"

// ConfigModelEntry is the configuration-file shape of a model mapping.
type ConfigModelEntry struct {
	ID    string `yaml:"id"`
	Alias string `yaml:"alias,omitempty"`
}

// ProviderKeyEntry mirrors AuthRecord without runtime state; it is the
// shape read from the configuration file. The router builds one
// AuthRecord per sanitized entry.
type ProviderKeyEntry struct {
	APIKey   string `yaml:"api-key"`
	BaseURL  string `yaml:"base-url,omitempty"`
	// ProxyURL is a pointer so the config loader can distinguish an
	// absent proxy-url key (fall back to the global proxy) from an
	// explicit empty string (bypass the global proxy entirely).
	ProxyURL       *string            `yaml:"proxy-url,omitempty"`
	Prefix         string             `yaml:"prefix,omitempty"`
	Models         []ConfigModelEntry `yaml:"models,omitempty"`
	ExcludedModels []string          `yaml:"excluded-models,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty"`
	Weight         uint32            `yaml:"weight,omitempty"`
	Disabled       bool              `yaml:"disabled,omitempty"`
	Name           string            `yaml:"name,omitempty"`
	Cloak          *cloak.Config     `yaml:"cloak,omitempty"`
	WireAPI        WireApi           `yaml:"wire-api,omitempty"`
}
