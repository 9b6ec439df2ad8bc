// Package handlers implements the client-facing HTTP surface: one handler
// per endpoint in §6.1, each parsing the client's wire format into a
// dispatch.RequestDescriptor, calling the dispatch engine, and writing back
// either a buffered JSON response or an SSE stream.
package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/relaykit/aigateway/internal/apierror"
	"github.com/relaykit/aigateway/internal/config"
	"github.com/relaykit/aigateway/internal/dispatch"
	"github.com/relaykit/aigateway/internal/executor"
	"github.com/relaykit/aigateway/internal/router"
)

// clientRequest is the subset of fields every wire format shares in some
// form, extracted once so handlers don't each re-parse the body.
type clientRequest struct {
	Model  string   `json:"model"`
	Models []string `json:"models,omitempty"`
	Stream bool     `json:"stream,omitempty"`
}

// buildDescriptor reads, size-limits, and parses raw body into a
// dispatch.RequestDescriptor. The caller still owns closing r.Body.
func buildDescriptor(w http.ResponseWriter, r *http.Request, cfg *config.Config, source router.Format, allowed []router.Format) (*dispatch.RequestDescriptor, *apierror.Error) {
	if cfg.BodyLimitMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, int64(cfg.BodyLimitMB)*1024*1024)
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, apierror.BadRequest("failed to read request body: " + err.Error())
	}

	var parsed clientRequest
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apierror.BadRequest("invalid JSON body: " + err.Error())
	}
	if parsed.Model == "" && len(parsed.Models) == 0 {
		return nil, apierror.BadRequest("request body must set \"model\" or \"models\"")
	}

	return &dispatch.RequestDescriptor{
		SourceFormat:   source,
		Model:          parsed.Model,
		Models:         parsed.Models,
		Stream:         parsed.Stream,
		UserAgent:      r.Header.Get("User-Agent"),
		Debug:          r.Header.Get("x-debug") == "true",
		Raw:            raw,
		AllowedTargets: allowed,
	}, nil
}

func executorOptions(cfg *config.Config) executor.Options {
	return executor.Options{
		ConnectTimeout:   time.Duration(cfg.ConnectTimeout) * time.Second,
		RequestTimeout:   time.Duration(cfg.RequestTimeout) * time.Second,
		GlobalProxyURL:   cfg.ProxyURL,
		AnthropicVersion: "2023-06-01",
	}
}

// writeDebugHeaders sets the x-debug-* response headers per §6.3, if info
// is non-nil.
func writeDebugHeaders(w http.ResponseWriter, info *dispatch.DebugInfo) {
	if info == nil {
		return
	}
	w.Header().Set("x-debug-provider", info.Provider)
	w.Header().Set("x-debug-model", info.Model)
	w.Header().Set("x-debug-credential", info.Credential)
	if len(info.Attempts) > 0 {
		w.Header().Set("x-debug-attempts", strings.Join(info.Attempts, ","))
	}
}

func copyPassthroughHeaders(dst, src http.Header) {
	for name, values := range src {
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// writeAPIError renders err per §7: an upstream error whose body already
// parses as JSON is passed through verbatim with the upstream status;
// everything else gets the normalized envelope.
func writeAPIError(w http.ResponseWriter, logger *slog.Logger, err error) {
	aerr := normalizeAPIError(err)
	logger.Error("request failed", "kind", aerr.Kind.String(), "message", aerr.Message, "error", aerr.Wrapped)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(aerr.HTTPStatus())
	w.Write(apiErrorBody(aerr))
}

func normalizeAPIError(err error) *apierror.Error {
	aerr, ok := apierror.As(err)
	if !ok {
		return apierror.Internal("unexpected error", err)
	}
	return aerr
}

// apiErrorBody renders aerr's body per §7: an upstream error whose body
// already parses as JSON is passed through verbatim; everything else gets
// the normalized envelope, marshaled directly (not via json.NewEncoder, so
// callers writing after a header has already been committed get the exact
// bytes back rather than a stream-shaped encode).
func apiErrorBody(aerr *apierror.Error) []byte {
	if aerr.Kind == apierror.KindUpstream && json.Valid([]byte(aerr.Body)) {
		return []byte(aerr.Body)
	}
	envelope := apierror.ErrorEnvelope{
		Error: apierror.ErrorDetail{
			Message: aerr.Message,
			Type:    aerr.Kind.String(),
			Code:    aerr.HTTPStatus(),
		},
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		return []byte(`{"error":{"message":"internal error","type":"internal"}}`)
	}
	return out
}

// estimateTokens gives a rough cl100k_base token count for debug logging,
// per the DOMAIN STACK's tiktoken-go wiring. It is advisory only: if the
// encoding fails to load, tokenEncoding stays nil and estimateTokens returns 0.
var tokenEncoding = loadTokenEncoding()

func loadTokenEncoding() *tiktoken.Tiktoken {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil
	}
	return enc
}

func estimateTokens(text string) int {
	if tokenEncoding == nil {
		return 0
	}
	return len(tokenEncoding.Encode(text, nil, nil))
}

func logRequestSize(logger *slog.Logger, desc *dispatch.RequestDescriptor) {
	if !desc.Debug {
		return
	}
	logger.Debug("estimated request tokens", "model", desc.Model, "tokens", estimateTokens(string(desc.Raw)))
}

func writeClientError(w http.ResponseWriter, logger *slog.Logger, err *apierror.Error) {
	writeAPIError(w, logger, err)
}
