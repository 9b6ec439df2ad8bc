package config

import (
	"fmt"
	"strings"

	"github.com/relaykit/aigateway/internal/router"
)

// sanitize implements §4.1 step 1: drop empty-key entries, dedupe by
// api-key, trim trailing slashes from base-url, lowercase header keys, and
// build the client API key lookup set.
func sanitize(cfg *Config) {
	cfg.ClaudeAPIKey = sanitizeEntries(cfg.ClaudeAPIKey)
	cfg.OpenAIAPIKey = sanitizeEntries(cfg.OpenAIAPIKey)
	cfg.GeminiAPIKey = sanitizeEntries(cfg.GeminiAPIKey)
	cfg.OpenAICompatibility = sanitizeEntries(cfg.OpenAICompatibility)

	cfg.apiKeySet = make(map[string]struct{}, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		if key == "" {
			continue
		}
		cfg.apiKeySet[key] = struct{}{}
	}
}

func sanitizeEntries(entries []router.ProviderKeyEntry) []router.ProviderKeyEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]router.ProviderKeyEntry, 0, len(entries))

	for _, entry := range entries {
		if entry.APIKey == "" {
			continue
		}
		if _, dup := seen[entry.APIKey]; dup {
			continue
		}
		seen[entry.APIKey] = struct{}{}

		entry.BaseURL = strings.TrimRight(entry.BaseURL, "/")

		if len(entry.Headers) > 0 {
			lowered := make(map[string]string, len(entry.Headers))
			for k, v := range entry.Headers {
				lowered[strings.ToLower(k)] = v
			}
			entry.Headers = lowered
		}

		out = append(out, entry)
	}

	return out
}

// validate implements §4.1 step 2.
func validate(cfg *Config) error {
	if cfg.TLS.Enable {
		if cfg.TLS.Cert == "" || cfg.TLS.Key == "" {
			return fmt.Errorf("tls.enable is true but cert/key are not both set")
		}
	}

	if err := validateProxyURL(cfg.ProxyURL); err != nil {
		return fmt.Errorf("global proxy-url: %w", err)
	}

	for _, entries := range [][]router.ProviderKeyEntry{cfg.ClaudeAPIKey, cfg.OpenAIAPIKey, cfg.GeminiAPIKey, cfg.OpenAICompatibility} {
		for _, entry := range entries {
			if entry.ProxyURL == nil {
				continue
			}
			if err := validateProxyURL(*entry.ProxyURL); err != nil {
				return fmt.Errorf("provider %q proxy-url: %w", entry.Name, err)
			}
		}
	}

	return nil
}

func validateProxyURL(raw string) error {
	if raw == "" {
		return nil // empty means direct, always valid
	}
	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"),
		strings.HasPrefix(raw, "socks5://"), strings.HasPrefix(raw, "socks5h://"):
		return nil
	default:
		return fmt.Errorf("unrecognized proxy scheme: %q", raw)
	}
}
