// Package router implements the credential store: it tracks, per wire
// format, the pool of available AuthRecords, rotates among them under a
// configurable routing strategy, and applies/observes cooldowns.
package router

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ModelInfo describes a model exposed through GET /v1/models.
type ModelInfo struct {
	ID       string
	Provider string
	OwnedBy  string
}

// Router is the credential store and picker. It is safe for concurrent use.
type Router struct {
	logger *slog.Logger

	mu         sync.RWMutex
	records    map[Format][]*AuthRecord
	strategy   RoutingStrategy

	countersMu sync.RWMutex
	counters   map[string]*atomic.Uint64
}

func New(logger *slog.Logger) *Router {
	return &Router{
		logger:   logger,
		records:  make(map[Format][]*AuthRecord),
		strategy: StrategyRoundRobin,
		counters: make(map[string]*atomic.Uint64),
	}
}

// Pick selects the next eligible credential for (format, model), excluding
// any id present in tried. Returns nil if nothing is eligible.
func (r *Router) Pick(format Format, model string, tried []string) *AuthRecord {
	r.mu.RLock()
	candidates := r.records[format]
	strategy := r.strategy
	now := time.Now()

	eligible := make([]*AuthRecord, 0, len(candidates))
	for _, rec := range candidates {
		if !rec.Available(now) {
			continue
		}
		if !rec.SupportsModel(model) {
			continue
		}
		if containsID(tried, rec.ID) {
			continue
		}
		cp := *rec
		eligible = append(eligible, &cp)
	}
	r.mu.RUnlock()

	if len(eligible) == 0 {
		return nil
	}

	switch strategy {
	case StrategyFillFirst:
		return eligible[0]
	default:
		return r.pickWeightedRoundRobin(format, model, eligible)
	}
}

// pickWeightedRoundRobin implements weighted round robin: slot = counter
// mod sum(weights), walking cumulative weight ranges to find the winner.
func (r *Router) pickWeightedRoundRobin(format Format, model string, eligible []*AuthRecord) *AuthRecord {
	var total uint64
	for _, rec := range eligible {
		total += effectiveWeight(rec)
	}
	if total == 0 {
		return eligible[0]
	}

	key := string(format) + ":" + model
	counter := r.counterFor(key)
	slot := counter.Add(1) % total

	var cumulative uint64
	for _, rec := range eligible {
		cumulative += effectiveWeight(rec)
		if slot < cumulative {
			return rec
		}
	}
	return eligible[len(eligible)-1]
}

func effectiveWeight(rec *AuthRecord) uint64 {
	if rec.Weight == 0 {
		return 1
	}
	return uint64(rec.Weight)
}

func (r *Router) counterFor(key string) *atomic.Uint64 {
	r.countersMu.RLock()
	c, ok := r.counters[key]
	r.countersMu.RUnlock()
	if ok {
		return c
	}

	r.countersMu.Lock()
	defer r.countersMu.Unlock()
	if c, ok = r.counters[key]; ok {
		return c
	}
	c = &atomic.Uint64{}
	r.counters[key] = c
	return c
}

// MarkUnavailable sets a cooldown deadline on the credential matching id,
// across every format bucket.
func (r *Router) MarkUnavailable(id string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deadline := time.Now().Add(duration)
	for _, recs := range r.records {
		for _, rec := range recs {
			if rec.ID == id {
				rec.CooldownUntil = deadline
			}
		}
	}
}

// UpdateFromConfig rebuilds the credential map from the given provider key
// entries, preserving cooldown state for records whose (api_key, format)
// matches a previous record.
func (r *Router) UpdateFromConfig(entries map[Format][]ProviderKeyEntry, strategy RoutingStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	newRecords := make(map[Format][]*AuthRecord, len(entries))
	for format, list := range entries {
		built := make([]*AuthRecord, 0, len(list))
		for _, entry := range list {
			rec := buildAuthRecord(format, entry)
			if old := findMatching(r.records[format], rec.APIKey); old != nil {
				rec.CooldownUntil = old.CooldownUntil
			}
			built = append(built, rec)
		}
		newRecords[format] = built
	}

	r.records = newRecords
	r.strategy = strategy
}

func findMatching(old []*AuthRecord, apiKey string) *AuthRecord {
	for _, rec := range old {
		if rec.APIKey == apiKey {
			return rec
		}
	}
	return nil
}

// AllModels returns one ModelInfo per distinct client-visible model name
// across every available record, alias preferred over id, deduplicated.
func (r *Router) AllModels() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	seen := make(map[string]struct{})
	var out []ModelInfo
	for format, recs := range r.records {
		for _, rec := range recs {
			if !rec.Available(now) {
				continue
			}
			if len(rec.Models) == 0 {
				continue
			}
			for _, m := range rec.Models {
				name := m.ID
				if m.Alias != "" {
					name = m.Alias
				}
				display := rec.PrefixedModelID(name)
				if _, dup := seen[display]; dup {
					continue
				}
				seen[display] = struct{}{}
				out = append(out, ModelInfo{ID: display, Provider: string(format), OwnedBy: string(format)})
			}
		}
	}
	return out
}

// ResolveProviders returns the formats that have at least one available
// record supporting model.
func (r *Router) ResolveProviders(model string) []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var out []Format
	for format, recs := range r.records {
		for _, rec := range recs {
			if rec.Available(now) && rec.SupportsModel(model) {
				out = append(out, format)
				break
			}
		}
	}
	return out
}

// ModelHasPrefix reports whether any available record with a non-empty
// prefix matches model after stripping.
func (r *Router) ModelHasPrefix(model string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	for _, recs := range r.records {
		for _, rec := range recs {
			if rec.Prefix == "" {
				continue
			}
			if rec.Available(now) && rec.SupportsModel(model) {
				return true
			}
		}
	}
	return false
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func buildAuthRecord(format Format, entry ProviderKeyEntry) *AuthRecord {
	models := make([]ModelEntry, 0, len(entry.Models))
	for _, m := range entry.Models {
		models = append(models, ModelEntry{ID: m.ID, Alias: m.Alias})
	}
	weight := entry.Weight
	if weight == 0 {
		weight = 1
	}
	var proxyURL string
	var directProxy bool
	if entry.ProxyURL != nil {
		proxyURL = *entry.ProxyURL
		directProxy = proxyURL == ""
	}
	return &AuthRecord{
		ID:             uuid.NewString(),
		Format:         format,
		APIKey:         entry.APIKey,
		BaseURL:        entry.BaseURL,
		ProxyURL:       proxyURL,
		DirectProxy:    directProxy,
		Headers:        entry.Headers,
		Models:         models,
		ExcludedModels: entry.ExcludedModels,
		Prefix:         entry.Prefix,
		Disabled:       entry.Disabled,
		Cloak:          entry.Cloak,
		WireAPI:        entry.WireAPI,
		CredentialName: entry.Name,
		Weight:         weight,
	}
}
