package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyDefaultOverrideFilter(t *testing.T) {
	body := map[string]any{
		"generationConfig": map[string]any{
			"temperature":        0.5,
			"responseJsonSchema": "something",
		},
	}

	cfg := &Config{
		Default: []Rule{
			{
				Match:  []ModelMatcher{{Name: "gemini-*"}},
				Params: map[string]any{"generationConfig.thinkingConfig.thinkingBudget": 32768},
			},
		},
		Override: []Rule{
			{
				Match:  []ModelMatcher{{Name: "gemini-*"}},
				Params: map[string]any{"generationConfig.temperature": 0.9},
			},
		},
		Filter: []FilterRule{
			{
				Match: []ModelMatcher{{Name: "gemini-*"}},
				Paths: []string{"generationConfig.responseJsonSchema"},
			},
		},
	}

	Apply(body, cfg, "gemini-2.5-pro", "gemini")

	gc := body["generationConfig"].(map[string]any)
	assert.Equal(t, 0.9, gc["temperature"])
	assert.NotContains(t, gc, "responseJsonSchema")
	tc := gc["thinkingConfig"].(map[string]any)
	assert.Equal(t, 32768, tc["thinkingBudget"])
}

func TestDefaultDoesNotOverwriteExisting(t *testing.T) {
	body := map[string]any{"temperature": 0.5}
	cfg := &Config{
		Default: []Rule{
			{Match: []ModelMatcher{{Name: "*"}}, Params: map[string]any{"temperature": 1.0}},
		},
	}
	Apply(body, cfg, "any-model", "")
	assert.Equal(t, 0.5, body["temperature"])
}

func TestProtocolGating(t *testing.T) {
	body := map[string]any{}
	cfg := &Config{
		Override: []Rule{
			{
				Match:  []ModelMatcher{{Name: "gpt-*", Protocol: "openai"}},
				Params: map[string]any{"reasoning.effort": "high"},
			},
		},
	}

	Apply(body, cfg, "gpt-5", "claude")
	assert.NotContains(t, body, "reasoning")

	Apply(body, cfg, "gpt-5", "openai")
	r := body["reasoning"].(map[string]any)
	assert.Equal(t, "high", r["effort"])
}

func TestApplyIsIdempotentWithoutDefaults(t *testing.T) {
	body := map[string]any{"generationConfig": map[string]any{"temperature": 0.9}}
	cfg := &Config{
		Override: []Rule{
			{Match: []ModelMatcher{{Name: "*"}}, Params: map[string]any{"generationConfig.temperature": 0.9}},
		},
	}
	Apply(body, cfg, "m", "")
	first := body["generationConfig"].(map[string]any)["temperature"]
	Apply(body, cfg, "m", "")
	second := body["generationConfig"].(map[string]any)["temperature"]
	assert.Equal(t, first, second)
}
