package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/aigateway/internal/config"
)

func testManagerWithKeys(t *testing.T, keys []string) *config.Manager {
	t.Helper()

	body := "host: 127.0.0.1\nport: 8080\n"
	if len(keys) > 0 {
		body += "api-keys:\n"
		for _, k := range keys {
			body += "  - " + k + "\n"
		}
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	mgr := config.NewManager(path)
	_, err := mgr.Load()
	require.NoError(t, err)
	return mgr
}

func passHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddlewareAllowsAllWhenNoKeysConfigured(t *testing.T) {
	mgr := testManagerWithKeys(t, nil)
	mw := NewAuthMiddleware(mgr, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	mw(passHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	mgr := testManagerWithKeys(t, []string{"secret-key"})
	mw := NewAuthMiddleware(mgr, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	mw(passHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	mgr := testManagerWithKeys(t, []string{"secret-key"})
	mw := NewAuthMiddleware(mgr, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	w := httptest.NewRecorder()
	mw(passHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareAcceptsXAPIKeyHeader(t *testing.T) {
	mgr := testManagerWithKeys(t, []string{"secret-key"})
	mw := NewAuthMiddleware(mgr, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("X-API-Key", "secret-key")
	w := httptest.NewRecorder()
	mw(passHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareRejectsWrongToken(t *testing.T) {
	mgr := testManagerWithKeys(t, []string{"secret-key"})
	mw := NewAuthMiddleware(mgr, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	w := httptest.NewRecorder()
	mw(passHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
