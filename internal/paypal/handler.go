package paypal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storebridge/storebridge/internal/platform/httpx"
)

// Orders is the lookup the handler needs.
type Orders interface {
	GetOrder(ctx context.Context, id string) (*Order, error)
}

// Handler exposes PayPal order lookup on the admin API.
type Handler struct {
	orders Orders
	logger *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(orders Orders, logger *slog.Logger) *Handler {
	return &Handler{orders: orders, logger: logger}
}

// MountRoutes registers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders/{id}", h.getOrder)
}

type orderView struct {
	*Order
	Total Money `json:"total"`
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			httpx.Fail(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error("paypal lookup failed", slog.Any("error", err))
		httpx.Fail(w, http.StatusBadGateway, "paypal request failed")
		return
	}
	httpx.OK(w, orderView{Order: order, Total: order.Total()})
}
