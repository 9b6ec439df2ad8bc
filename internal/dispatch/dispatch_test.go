package dispatch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/aigateway/internal/config"
	"github.com/relaykit/aigateway/internal/executor"
	"github.com/relaykit/aigateway/internal/router"
	"github.com/relaykit/aigateway/internal/translator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Retry: config.RetryConfig{
			MaxRetries:          3,
			MaxBackoffSecs:      0,
			Cooldown429Secs:     60,
			Cooldown5xxSecs:     60,
			CooldownNetworkSecs: 5,
		},
		Streaming: config.StreamingConfig{BootstrapRetries: 1},
	}
}

func newEngine(t *testing.T, entries map[router.Format][]router.ProviderKeyEntry) *Engine {
	t.Helper()
	r := router.New(testLogger())
	r.UpdateFromConfig(entries, router.StrategyRoundRobin)
	return New(r, translator.New(), executor.NewRegistry(), testLogger())
}

func TestDispatchNonStreamSucceedsOnFirstCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"chatcmpl-1","choices":[{"message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer server.Close()

	e := newEngine(t, map[router.Format][]router.ProviderKeyEntry{
		router.FormatOpenAI: {{APIKey: "sk-a", BaseURL: server.URL}},
	})

	desc := &RequestDescriptor{
		SourceFormat: router.FormatOpenAI,
		Model:        "gpt-4o",
		Raw:          []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`),
	}

	result, err := DispatchNonStream(context.Background(), e, desc, testConfig(), executor.Options{RequestTimeout: 5 * time.Second, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Contains(t, string(result.Payload), "chatcmpl-1")
}

func TestDispatchNonStreamFallsBackAcrossModelChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"chatcmpl-fallback"}`))
	}))
	defer server.Close()

	e := newEngine(t, map[router.Format][]router.ProviderKeyEntry{
		router.FormatOpenAI: {{
			APIKey:  "sk-a",
			BaseURL: server.URL,
			Models:  []router.ConfigModelEntry{{ID: "gpt-4o-mini"}},
		}},
	})

	desc := &RequestDescriptor{
		SourceFormat: router.FormatOpenAI,
		Models:       []string{"gpt-4o", "gpt-4o-mini"},
		Raw:          []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`),
	}

	result, err := DispatchNonStream(context.Background(), e, desc, testConfig(), executor.Options{RequestTimeout: 5 * time.Second, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Contains(t, string(result.Payload), "chatcmpl-fallback")
}

func TestDispatchNonStreamRetriesAfterUpstreamErrorAndCoolsDownCredential(t *testing.T) {
	var calls atomic.Int32
	serverA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer serverA.Close()

	serverB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"chatcmpl-b"}`))
	}))
	defer serverB.Close()

	r := router.New(testLogger())
	r.UpdateFromConfig(map[router.Format][]router.ProviderKeyEntry{
		router.FormatOpenAI: {
			{APIKey: "sk-a", BaseURL: serverA.URL},
			{APIKey: "sk-b", BaseURL: serverB.URL},
		},
	}, router.StrategyFillFirst)
	e := New(r, translator.New(), executor.NewRegistry(), testLogger())

	desc := &RequestDescriptor{
		SourceFormat: router.FormatOpenAI,
		Model:        "gpt-4o",
		Raw:          []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`),
	}

	result, err := DispatchNonStream(context.Background(), e, desc, testConfig(), executor.Options{RequestTimeout: 5 * time.Second, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Contains(t, string(result.Payload), "chatcmpl-b")
	assert.Equal(t, int32(1), calls.Load())

	// serverA's credential should now be cooled down: picking again with a
	// clean tried-set must skip straight to serverB.
	auth := r.Pick(router.FormatOpenAI, "gpt-4o", nil)
	require.NotNil(t, auth)
	assert.Equal(t, "sk-b", auth.APIKey)
}

func TestDispatchNonStreamReturnsNoCredentialsWhenNoneRegistered(t *testing.T) {
	e := newEngine(t, nil)

	desc := &RequestDescriptor{
		SourceFormat: router.FormatOpenAI,
		Model:        "gpt-4o",
		Raw:          []byte(`{"model":"gpt-4o","messages":[]}`),
	}

	_, err := DispatchNonStream(context.Background(), e, desc, testConfig(), executor.Options{})
	require.Error(t, err)
}

func TestDispatchNonStreamPopulatesDebugInfoWhenRequested(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"chatcmpl-debug"}`))
	}))
	defer server.Close()

	e := newEngine(t, map[router.Format][]router.ProviderKeyEntry{
		router.FormatOpenAI: {{APIKey: "sk-a", BaseURL: server.URL, Name: "primary"}},
	})

	desc := &RequestDescriptor{
		SourceFormat: router.FormatOpenAI,
		Model:        "gpt-4o",
		Debug:        true,
		Raw:          []byte(`{"model":"gpt-4o","messages":[]}`),
	}

	result, err := DispatchNonStream(context.Background(), e, desc, testConfig(), executor.Options{})
	require.NoError(t, err)
	require.NotNil(t, result.Debug)
	assert.Equal(t, "openai", result.Debug.Provider)
	assert.Equal(t, "primary", result.Debug.Credential)
}

func TestDispatchStreamBootstrapsFirstEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "data: {\"id\":\"chatcmpl-s\",\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	e := newEngine(t, map[router.Format][]router.ProviderKeyEntry{
		router.FormatOpenAI: {{APIKey: "sk-a", BaseURL: server.URL}},
	})

	desc := &RequestDescriptor{
		SourceFormat: router.FormatOpenAI,
		Model:        "gpt-4o",
		Stream:       true,
		Raw:          []byte(`{"model":"gpt-4o","stream":true,"messages":[]}`),
	}

	start, err := DispatchStream(context.Background(), e, desc, testConfig(), executor.Options{RequestTimeout: 5 * time.Second, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer start.Stream.Close()
	require.Len(t, start.FirstLines, 1)
	assert.Contains(t, start.FirstLines[0], "chatcmpl-s")
}

func TestDispatchStreamBootstrapRetriesOnEmptyFirstConnection(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if n == 1 {
			// First connection ends immediately with no event: forces the
			// bootstrap retry to open a second connection.
			return
		}
		io.WriteString(w, "data: {\"id\":\"chatcmpl-retry\",\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n")
	}))
	defer server.Close()

	e := newEngine(t, map[router.Format][]router.ProviderKeyEntry{
		router.FormatOpenAI: {{APIKey: "sk-a", BaseURL: server.URL}},
	})

	desc := &RequestDescriptor{
		SourceFormat: router.FormatOpenAI,
		Model:        "gpt-4o",
		Stream:       true,
		Raw:          []byte(`{"model":"gpt-4o","stream":true,"messages":[]}`),
	}

	start, err := DispatchStream(context.Background(), e, desc, testConfig(), executor.Options{RequestTimeout: 5 * time.Second, ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer start.Stream.Close()
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, start.FirstLines, 1)
	assert.Contains(t, start.FirstLines[0], "chatcmpl-retry")
}
