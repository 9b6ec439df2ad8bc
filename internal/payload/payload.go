// Package payload implements the payload-manipulation pipeline: per-model
// default/override/filter rules applied to a translated JSON request body,
// in a fixed order (defaults, then overrides, then filters).
package payload

import (
	"strings"
)

// ModelMatcher matches a rule against a model name and optional protocol.
type ModelMatcher struct {
	Name     string `yaml:"name"`
	Protocol string `yaml:"protocol,omitempty"`
}

// Rule is a default/override rule: a set of matchers and a set of
// dot-path → value assignments.
type Rule struct {
	Match  []ModelMatcher `yaml:"match"`
	Params map[string]any `yaml:"params"`
}

// FilterRule removes a set of dot-paths from matching payloads.
type FilterRule struct {
	Match []ModelMatcher `yaml:"match"`
	Paths []string       `yaml:"paths"`
}

// Config is the full set of payload rules loaded from configuration.
type Config struct {
	Default  []Rule       `yaml:"default"`
	Override []Rule       `yaml:"override"`
	Filter   []FilterRule `yaml:"filter"`
}

func globMatch(pattern, text string) bool {
	px, tx := 0, 0
	starPx := -1
	starTx := 0
	for tx < len(text) {
		if px < len(pattern) && pattern[px] == text[tx] {
			px++
			tx++
		} else if px < len(pattern) && pattern[px] == '*' {
			starPx = px
			starTx = tx
			px++
		} else if starPx != -1 {
			starTx++
			tx = starTx
			px = starPx + 1
		} else {
			return false
		}
	}
	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}

func matchesRule(matchers []ModelMatcher, model, protocol string) bool {
	for _, m := range matchers {
		if !globMatch(m.Name, model) {
			continue
		}
		if m.Protocol == "" {
			return true
		}
		if strings.EqualFold(m.Protocol, protocol) {
			return true
		}
	}
	return false
}

// setNested sets value at the dot-joined path inside root, creating
// intermediate objects as needed. If onlyIfMissing is true and the final
// key already exists, it is left untouched. Fails silently (no-op) if an
// intermediate segment exists but is not an object.
func setNested(root map[string]any, path string, value any, onlyIfMissing bool) {
	segments := strings.Split(path, ".")
	cur := root
	for i, seg := range segments {
		last := i == len(segments)-1
		if last {
			if onlyIfMissing {
				if _, exists := cur[seg]; exists {
					return
				}
			}
			cur[seg] = value
			return
		}
		next, ok := cur[seg]
		if !ok {
			newObj := make(map[string]any)
			cur[seg] = newObj
			cur = newObj
			continue
		}
		nextObj, ok := next.(map[string]any)
		if !ok {
			return
		}
		cur = nextObj
	}
}

// removeNested deletes the key named by the dot-joined path, descending
// only through existing object nodes (never creating them). Fails
// silently if any intermediate segment is missing or not an object.
func removeNested(root map[string]any, path string) {
	segments := strings.Split(path, ".")
	cur := root
	for i, seg := range segments {
		last := i == len(segments)-1
		if last {
			delete(cur, seg)
			return
		}
		next, ok := cur[seg]
		if !ok {
			return
		}
		nextObj, ok := next.(map[string]any)
		if !ok {
			return
		}
		cur = nextObj
	}
}

// Apply runs the default, override, then filter rules against body, for
// the given model and protocol (format identifier).
func Apply(body map[string]any, cfg *Config, model, protocol string) {
	if cfg == nil {
		return
	}
	for _, rule := range cfg.Default {
		if !matchesRule(rule.Match, model, protocol) {
			continue
		}
		for path, value := range rule.Params {
			setNested(body, path, value, true)
		}
	}
	for _, rule := range cfg.Override {
		if !matchesRule(rule.Match, model, protocol) {
			continue
		}
		for path, value := range rule.Params {
			setNested(body, path, value, false)
		}
	}
	for _, rule := range cfg.Filter {
		if !matchesRule(rule.Match, model, protocol) {
			continue
		}
		for _, path := range rule.Paths {
			removeNested(body, path)
		}
	}
}
