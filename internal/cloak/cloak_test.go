package cloak

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldCloak(t *testing.T) {
	assert.False(t, ShouldCloak(&Config{Mode: ModeNever}, ""))
	assert.True(t, ShouldCloak(&Config{Mode: ModeAlways}, ""))
	assert.False(t, ShouldCloak(&Config{Mode: ModeAuto}, "claude-cli/1.0"))
	assert.False(t, ShouldCloak(&Config{Mode: ModeAuto}, "claude-code/1.0"))
	assert.True(t, ShouldCloak(&Config{Mode: ModeAuto}, "curl/8.0"))
}

func TestGenerateUserIDFormatAndCaching(t *testing.T) {
	id := GenerateUserID("test-key-1", false)
	assert.True(t, strings.HasPrefix(id, "user_"))
	assert.Contains(t, id, "_account__session_")

	a := GenerateUserID("test-key-2", true)
	b := GenerateUserID("test-key-2", true)
	assert.Equal(t, a, b)
}

func TestApplySystemPromptPrepend(t *testing.T) {
	body := map[string]any{"system": "be concise"}
	Apply(body, &Config{Mode: ModeAlways}, "key")
	sys := body["system"].(string)
	require.True(t, strings.HasPrefix(sys, systemPrompt))
	assert.True(t, strings.HasSuffix(sys, "be concise"))
}

func TestApplySystemPromptStrictMode(t *testing.T) {
	body := map[string]any{"system": "be concise"}
	Apply(body, &Config{Mode: ModeAlways, StrictMode: true}, "key")
	assert.Equal(t, systemPrompt, body["system"])
}

func TestApplyUserIDInMetadata(t *testing.T) {
	body := map[string]any{}
	Apply(body, &Config{Mode: ModeAlways}, "key")
	meta := body["metadata"].(map[string]any)
	assert.Contains(t, meta["user_id"], "user_")
}

func TestApplySensitiveWordObfuscation(t *testing.T) {
	body := map[string]any{
		"system": "mention of secretword here",
		"messages": []any{
			map[string]any{"role": "user", "content": "another secretword occurrence"},
		},
	}
	cfg := &Config{Mode: ModeAlways, SensitiveWords: []string{"secretword"}}
	Apply(body, cfg, "key")

	sys := body["system"].(string)
	assert.NotEqual(t, "mention of secretword here", sys)
	assert.Contains(t, sys, "s")

	msgs := body["messages"].([]any)
	first := msgs[0].(map[string]any)
	assert.NotContains(t, first["content"], "another secretword occurrence")
}

func TestObfuscateIdempotent(t *testing.T) {
	re := buildSensitiveRegex([]string{"secret"})
	once := obfuscate(re, "a secret value")
	twice := obfuscate(re, once)
	assert.Equal(t, once, twice)
}
