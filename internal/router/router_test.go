package router

import (
	"log/slog"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPickInvariants(t *testing.T) {
	r := New(discardLogger())
	r.UpdateFromConfig(map[Format][]ProviderKeyEntry{
		FormatOpenAI: {
			{APIKey: "k1", Models: []ConfigModelEntry{{ID: "gpt-4o"}}},
			{APIKey: "k2", Models: []ConfigModelEntry{{ID: "gpt-4o"}}},
		},
	}, StrategyRoundRobin)

	rec := r.Pick(FormatOpenAI, "gpt-4o", nil)
	require.NotNil(t, rec)
	assert.True(t, rec.SupportsModel("gpt-4o"))
	assert.True(t, rec.Available(time.Now()))
}

func TestPickExcludesTried(t *testing.T) {
	r := New(discardLogger())
	r.UpdateFromConfig(map[Format][]ProviderKeyEntry{
		FormatOpenAI: {
			{APIKey: "only", Models: []ConfigModelEntry{{ID: "gpt-4o"}}},
		},
	}, StrategyFillFirst)

	rec := r.Pick(FormatOpenAI, "gpt-4o", nil)
	require.NotNil(t, rec)
	assert.Nil(t, r.Pick(FormatOpenAI, "gpt-4o", []string{rec.ID}))
}

func TestMarkUnavailableAndCooldown(t *testing.T) {
	r := New(discardLogger())
	r.UpdateFromConfig(map[Format][]ProviderKeyEntry{
		FormatOpenAI: {{APIKey: "k1", Models: []ConfigModelEntry{{ID: "gpt-4o"}}}},
	}, StrategyFillFirst)

	rec := r.Pick(FormatOpenAI, "gpt-4o", nil)
	require.NotNil(t, rec)
	r.MarkUnavailable(rec.ID, 50*time.Millisecond)

	assert.Nil(t, r.Pick(FormatOpenAI, "gpt-4o", nil))
	time.Sleep(70 * time.Millisecond)
	assert.NotNil(t, r.Pick(FormatOpenAI, "gpt-4o", nil))
}

func TestUpdateFromConfigPreservesCooldown(t *testing.T) {
	r := New(discardLogger())
	entries := map[Format][]ProviderKeyEntry{
		FormatClaude: {{APIKey: "K", Models: []ConfigModelEntry{{ID: "claude-3"}}}},
	}
	r.UpdateFromConfig(entries, StrategyFillFirst)
	rec := r.Pick(FormatClaude, "claude-3", nil)
	require.NotNil(t, rec)
	r.MarkUnavailable(rec.ID, time.Hour)

	r.UpdateFromConfig(entries, StrategyFillFirst)
	assert.Nil(t, r.Pick(FormatClaude, "claude-3", nil))
}

func TestWeightedRoundRobinDistribution(t *testing.T) {
	r := New(discardLogger())
	r.UpdateFromConfig(map[Format][]ProviderKeyEntry{
		FormatOpenAI: {
			{APIKey: "heavy", Weight: 3, Models: []ConfigModelEntry{{ID: "gpt-4o"}}},
			{APIKey: "light", Weight: 1, Models: []ConfigModelEntry{{ID: "gpt-4o"}}},
		},
	}, StrategyRoundRobin)

	counts := map[string]int{}
	const n = 4000
	for i := 0; i < n; i++ {
		rec := r.Pick(FormatOpenAI, "gpt-4o", nil)
		require.NotNil(t, rec)
		counts[rec.APIKey]++
	}

	ratio := float64(counts["heavy"]) / float64(counts["light"])
	assert.InDelta(t, 3.0, ratio, 0.5)
}

func TestResolveProvidersAndModelHasPrefix(t *testing.T) {
	r := New(discardLogger())
	r.UpdateFromConfig(map[Format][]ProviderKeyEntry{
		FormatOpenAI: {{APIKey: "k1", Prefix: "teamA/", Models: []ConfigModelEntry{{ID: "gpt-4o"}}}},
	}, StrategyFillFirst)

	assert.ElementsMatch(t, []Format{FormatOpenAI}, r.ResolveProviders("teamA/gpt-4o"))
	assert.True(t, r.ModelHasPrefix("teamA/gpt-4o"))
	assert.False(t, r.ModelHasPrefix("gpt-4o-unrelated"))
}
