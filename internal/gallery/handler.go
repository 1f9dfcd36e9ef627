package gallery

import (
	"encoding/json"
	"net/http"

	"github.com/jparrish/portfolio-platform/pkg/logging"
)

// Handler serves GET /gallery.
type Handler struct {
	client *Client
	logger *logging.Logger
}

func NewHandler(client *Client, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{client: client, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.client.Items(r.Context())
	if err != nil {
		h.logger.Error("gallery load failed", "error", err)
		http.Error(w, "gallery is unavailable right now", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
}
