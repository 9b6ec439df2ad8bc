package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/aigateway/internal/config"
	"github.com/relaykit/aigateway/internal/dispatch"
	"github.com/relaykit/aigateway/internal/executor"
	"github.com/relaykit/aigateway/internal/router"
	"github.com/relaykit/aigateway/internal/translator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManager(t *testing.T) *config.Manager {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retry:
  max-retries: 3
  cooldown-429-secs: 1
  cooldown-5xx-secs: 1
  cooldown-network-secs: 1
streaming:
  bootstrap-retries: 1
connect-timeout: 5
request-timeout: 5
body-limit-mb: 10
`), 0644))
	mgr := config.NewManager(path)
	_, err := mgr.Load()
	require.NoError(t, err)
	return mgr
}

func testEngine(t *testing.T, upstreamURL string) *dispatch.Engine {
	t.Helper()
	r := router.New(testLogger())
	r.UpdateFromConfig(map[router.Format][]router.ProviderKeyEntry{
		router.FormatOpenAI: {{APIKey: "sk-a", BaseURL: upstreamURL}},
	}, router.StrategyRoundRobin)
	return dispatch.New(r, translator.New(), executor.NewRegistry(), testLogger())
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}

func TestChatHandlerNonStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"chatcmpl-1","choices":[{"message":{"role":"assistant","content":"hi"}}]}`))
	}))
	defer server.Close()

	mgr := testManager(t)
	engine := testEngine(t, server.URL)
	h := NewChatHandler(mgr, engine, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", jsonBody(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chatcmpl-1")
}

func TestChatHandlerMissingModelReturnsBadRequest(t *testing.T) {
	mgr := testManager(t)
	engine := testEngine(t, "http://unused.invalid")
	h := NewChatHandler(mgr, engine, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", jsonBody(`{"messages":[]}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandlerDebugHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"chatcmpl-debug"}`))
	}))
	defer server.Close()

	mgr := testManager(t)
	engine := testEngine(t, server.URL)
	h := NewChatHandler(mgr, engine, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", jsonBody(`{"model":"gpt-4o","messages":[]}`))
	req.Header.Set("x-debug", "true")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "openai", w.Header().Get("x-debug-provider"))
	assert.Equal(t, "gpt-4o", w.Header().Get("x-debug-model"))
}

func TestMessagesHandlerNeverDispatchesCrossFormat(t *testing.T) {
	// Router only has an openai credential; /v1/messages restricts targets
	// to claude only, so this must fail with no credentials rather than
	// silently succeeding against the openai pool.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	mgr := testManager(t)
	engine := testEngine(t, server.URL)
	h := NewMessagesHandler(mgr, engine, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", jsonBody(`{"model":"claude-3-opus","messages":[]}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestResponsesHandlerRejectsStreaming(t *testing.T) {
	mgr := testManager(t)
	engine := testEngine(t, "http://unused.invalid")
	h := NewResponsesHandler(mgr, engine, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/responses", jsonBody(`{"model":"gpt-4o","stream":true,"input":"hi"}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModelsHandlerListsConfiguredModels(t *testing.T) {
	r := router.New(testLogger())
	r.UpdateFromConfig(map[router.Format][]router.ProviderKeyEntry{
		router.FormatOpenAI: {{
			APIKey:  "sk-a",
			BaseURL: "http://unused.invalid",
			Models:  []router.ConfigModelEntry{{ID: "gpt-4o"}},
		}},
	}, router.StrategyRoundRobin)

	h := NewModelsHandler(r, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var list modelList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, "list", list.Object)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "gpt-4o", list.Data[0].ID)
}

func TestChatHandlerStreamsSSE(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "data: {\"id\":\"chatcmpl-s\",\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	mgr := testManager(t)
	engine := testEngine(t, server.URL)
	h := NewChatHandler(mgr, engine, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", jsonBody(`{"model":"gpt-4o","stream":true,"messages":[]}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chatcmpl-s")
	assert.Contains(t, w.Body.String(), "[DONE]")
}
