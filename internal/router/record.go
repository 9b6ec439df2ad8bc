package router

import (
	"strings"
	"time"

	"github.com/relaykit/aigateway/internal/cloak"
)

// ModelEntry maps an upstream model id to an optional client-facing alias.
type ModelEntry struct {
	ID    string
	Alias string
}

// AuthRecord is a fully-resolved credential ready for routing.
type AuthRecord struct {
	ID             string
	Format         Format
	APIKey         string
	BaseURL        string
	ProxyURL       string
	// DirectProxy is true when the credential explicitly configured an
	// empty proxy-url, meaning "bypass the global proxy" rather than
	// "no override configured" (§4.3 step 1).
	DirectProxy    bool
	Headers        map[string]string
	Models         []ModelEntry
	ExcludedModels []string
	Prefix         string
	Disabled       bool
	CooldownUntil  time.Time // zero value means no cooldown
	Cloak          *cloak.Config
	WireAPI        WireApi
	CredentialName string
	Weight         uint32
}

// BaseURLOrDefault returns the configured base URL, trimmed of a trailing
// slash, or the provided default if none was configured.
func (a *AuthRecord) BaseURLOrDefault(def string) string {
	u := a.BaseURL
	if u == "" {
		u = def
	}
	return strings.TrimRight(u, "/")
}

// StripPrefix removes the record's configured prefix from model, if
// present; otherwise model is returned unchanged.
func (a *AuthRecord) StripPrefix(model string) string {
	if a.Prefix == "" {
		return model
	}
	if stripped, ok := strings.CutPrefix(model, a.Prefix); ok {
		return stripped
	}
	return model
}

// PrefixedModelID prepends the record's configured prefix to modelID.
func (a *AuthRecord) PrefixedModelID(modelID string) string {
	if a.Prefix == "" {
		return modelID
	}
	return a.Prefix + modelID
}

// IsModelExcluded reports whether model matches any glob in ExcludedModels.
func (a *AuthRecord) IsModelExcluded(model string) bool {
	for _, pattern := range a.ExcludedModels {
		if globMatch(pattern, model) {
			return true
		}
	}
	return false
}

// SupportsModel reports whether this record can serve the given
// (possibly-prefixed) model name.
func (a *AuthRecord) SupportsModel(model string) bool {
	effective := a.StripPrefix(model)

	if len(a.Models) == 0 {
		return !a.IsModelExcluded(effective)
	}

	found := false
	for _, m := range a.Models {
		if globMatch(m.ID, effective) || (m.Alias != "" && globMatch(m.Alias, effective)) {
			found = true
			break
		}
	}
	return found && !a.IsModelExcluded(effective)
}

// ResolveModelID resolves a possibly-aliased model name to the upstream
// model id, after stripping this record's prefix.
func (a *AuthRecord) ResolveModelID(model string) string {
	effective := a.StripPrefix(model)
	for _, m := range a.Models {
		if m.Alias != "" && m.Alias == effective {
			return m.ID
		}
		if m.ID == effective {
			return m.ID
		}
	}
	return effective
}

// Name returns the human-readable credential name, if set.
func (a *AuthRecord) Name() string {
	return a.CredentialName
}

// Available reports whether this credential is currently eligible for
// selection: not disabled, and not within its cooldown window.
func (a *AuthRecord) Available(now time.Time) bool {
	if a.Disabled {
		return false
	}
	if !a.CooldownUntil.IsZero() && now.Before(a.CooldownUntil) {
		return false
	}
	return true
}
