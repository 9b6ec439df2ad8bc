package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/relaykit/aigateway/internal/router"
)

// ModelsHandler serves GET /v1/models, shaping router.AllModels() per §6.1.
type ModelsHandler struct {
	router *router.Router
	logger *slog.Logger
}

func NewModelsHandler(r *router.Router, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{router: r, logger: logger}
}

type modelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelList struct {
	Object string        `json:"object"`
	Data   []modelObject `json:"data"`
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	models := h.router.AllModels()

	data := make([]modelObject, 0, len(models))
	for _, m := range models {
		data = append(data, modelObject{ID: m.ID, Object: "model", OwnedBy: m.OwnedBy})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(modelList{Object: "list", Data: data}); err != nil {
		h.logger.Error("failed to write models response", "error", err)
	}
}
