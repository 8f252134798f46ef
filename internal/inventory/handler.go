package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/storebridge/storebridge/internal/platform/httpx"
)

// Syncer runs a sync.
type Syncer interface {
	Sync(ctx context.Context, req Request) (*Summary, error)
}

// Handler exposes the sync on the admin API.
type Handler struct {
	syncer Syncer
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(syncer Syncer, logger *slog.Logger) *Handler {
	return &Handler{syncer: syncer, logger: logger}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sync", h.sync)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	var req Request
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		req.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		req.Offset, _ = strconv.Atoi(v)
	}
	summary, err := h.syncer.Sync(r.Context(), req)
	if err != nil {
		h.logger.Error("inventory sync", slog.Any("error", err))
		httpx.JSON(w, http.StatusBadGateway, httpx.Envelope{Success: false, Data: summary, Error: "inventory sync failed: could not fetch catalog page"})
		return
	}
	httpx.OK(w, summary)
}
