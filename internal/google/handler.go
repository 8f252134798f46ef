package google

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/storebridge/storebridge/internal/oauth"
	"github.com/storebridge/storebridge/internal/platform/httpx"
)

// Reviews is the client surface the handler needs.
type Reviews interface {
	ListReviews(ctx context.Context, pageSize int, pageToken string) (*ReviewPage, error)
	Reply(ctx context.Context, reviewID, comment string) (*ReviewReply, error)
}

// Handler exposes reviews on the admin API.
type Handler struct {
	reviews   Reviews
	logger    *slog.Logger
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(reviews Reviews, logger *slog.Logger) *Handler {
	return &Handler{reviews: reviews, logger: logger, validator: validator.New()}
}

// MountRoutes registers review routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/reviews", h.list)
	r.Post("/reviews/{id}/reply", h.reply)
}

type replyRequest struct {
	Comment string `json:"comment" validate:"required,max=4096"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	page, err := h.reviews.ListReviews(r.Context(), size, r.URL.Query().Get("page_token"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, page)
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "comment is required (max 4096 characters)")
		return
	}
	reply, err := h.reviews.Reply(r.Context(), chi.URLParam(r, "id"), req.Comment)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, reply)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, oauth.ErrReauthorizationRequired):
		httpx.Fail(w, http.StatusServiceUnavailable, "google authorization required: visit /oauth/google/start")
	case errors.Is(err, ErrReviewNotFound):
		httpx.Fail(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("google reviews call failed", slog.Any("error", err))
		httpx.Fail(w, http.StatusBadGateway, "google request failed")
	}
}
