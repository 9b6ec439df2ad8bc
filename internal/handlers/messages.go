package handlers

import (
	"log/slog"
	"net/http"

	"github.com/relaykit/aigateway/internal/config"
	"github.com/relaykit/aigateway/internal/dispatch"
	"github.com/relaykit/aigateway/internal/router"
)

// MessagesHandler serves POST /v1/messages: source format claude, target
// format claude only, per §6.1's no-cross-format rule for this endpoint.
type MessagesHandler struct {
	config *config.Manager
	engine *dispatch.Engine
	logger *slog.Logger
}

func NewMessagesHandler(config *config.Manager, engine *dispatch.Engine, logger *slog.Logger) *MessagesHandler {
	return &MessagesHandler{config: config, engine: engine, logger: logger}
}

var claudeOnly = []router.Format{router.FormatClaude}

func (h *MessagesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Get()

	desc, aerr := buildDescriptor(w, r, cfg, router.FormatClaude, claudeOnly)
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
