package handlers

import (
	"log/slog"
	"net/http"

	"github.com/relaykit/aigateway/internal/config"
	"github.com/relaykit/aigateway/internal/dispatch"
	"github.com/relaykit/aigateway/internal/router"
)

// ChatHandler serves POST /v1/chat/completions: source format openai,
// any registered target format eligible per §6.1.
type ChatHandler struct {
	config *config.Manager
	engine *dispatch.Engine
	logger *slog.Logger
}

func NewChatHandler(config *config.Manager, engine *dispatch.Engine, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{config: config, engine: engine, logger: logger}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Get()

	desc, aerr := buildDescriptor(w, r, cfg, router.FormatOpenAI, nil)
	if aerr != nil {
		writeClientError(w, h.logger, aerr)
		return
	}
	logRequestSize(h.logger, desc)

	if desc.Stream {
		serveStream(w, r, h.logger, h.engine, cfg, desc)
		return
	}
	serveNonStream(w, r, h.logger, h.engine, cfg, desc)
}
