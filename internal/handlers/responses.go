package handlers

import (
	"log/slog"
	"net/http"

	"github.com/relaykit/aigateway/internal/apierror"
	"github.com/relaykit/aigateway/internal/config"
	"github.com/relaykit/aigateway/internal/dispatch"
	"github.com/relaykit/aigateway/internal/router"
)

// ResponsesHandler serves POST /v1/responses: source format openai, target
// openai or openai-compat only, no streaming, per §6.1.
type ResponsesHandler struct {
	config *config.Manager
	engine *dispatch.Engine
	logger *slog.Logger
}

func NewResponsesHandler(config *config.Manager, engine *dispatch.Engine, logger *slog.Logger) *ResponsesHandler {
	return &ResponsesHandler{config: config, engine: engine, logger: logger}
}

var responsesTargets = []router.Format{router.FormatOpenAI, router.FormatOpenAICompat}

func (h *ResponsesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Get()

	desc, aerr := buildDescriptor(w, r, cfg, router.FormatOpenAI, responsesTargets)
	if aerr != nil {
		writeClientError(w, h.logger, aerr)
		return
	}
	if desc.Stream {
		writeClientError(w, h.logger, apierror.BadRequest("streaming is not supported on /v1/responses"))
		return
	}
	logRequestSize(h.logger, desc)

	serveNonStream(w, r, h.logger, h.engine, cfg, desc)
}
