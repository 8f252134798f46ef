package notify

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storebridge/storebridge/internal/platform/httpx"
	"github.com/storebridge/storebridge/internal/shared"
)

// Settings is the store surface used by the admin API.
type Settings interface {
	List(ctx context.Context) ([]Setting, error)
	Add(ctx context.Context, t Type, email string) error
	BulkAdd(ctx context.Context, email string, types []Type) error
	Remove(ctx context.Context, t Type, email string) error
	SetActive(ctx context.Context, t Type, email string, active bool) error
	DefaultRecipient() string
}

// Handler manages recipients over the admin API.
type Handler struct {
	settings Settings
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(settings Settings, logger *slog.Logger) *Handler {
	return &Handler{settings: settings, logger: logger}
}

// MountRoutes registers recipient routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.add)
	r.Post("/bulk", h.bulkAdd)
	r.Delete("/", h.remove)
	r.Patch("/", h.setActive)
}

type listResponse struct {
	Types            []Type    `json:"types"`
	DefaultRecipient string    `json:"default_recipient"`
	Settings         []Setting `json:"settings"`
}

type recipientRequest struct {
	Type  Type   `json:"type"`
	Email string `json:"email"`
}

type bulkRequest struct {
	Email string `json:"email"`
	Types []Type `json:"types"`
}

type activeRequest struct {
	Type   Type   `json:"type"`
	Email  string `json:"email"`
	Active *bool  `json:"active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.List(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.OK(w, listResponse{Types: AllTypes, DefaultRecipient: h.settings.DefaultRecipient(), Settings: settings})
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.settings.Add(r.Context(), req.Type, req.Email); err != nil {
		h.fail(w, err)
		return
	}
	h.audit(r, "notification recipient added", slog.String("type", string(req.Type)), slog.String("email", req.Email))
	httpx.JSON(w, http.StatusCreated, httpx.Envelope{Success: true, Data: req})
}

func (h *Handler) bulkAdd(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.settings.BulkAdd(r.Context(), req.Email, req.Types); err != nil {
		h.fail(w, err)
		return
	}
	h.audit(r, "notification recipient bulk added", slog.String("email", req.Email), slog.Int("types", len(req.Types)))
	httpx.JSON(w, http.StatusCreated, httpx.Envelope{Success: true, Data: req})
}

// remove accepts the recipient as query parameters or a JSON body.
func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	req := recipientRequest{Type: Type(r.URL.Query().Get("type")), Email: r.URL.Query().Get("email")}
	if req.Type == "" && req.Email == "" && r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if err := h.settings.Remove(r.Context(), req.Type, req.Email); err != nil {
		h.fail(w, err)
		return
	}
	h.audit(r, "notification recipient removed", slog.String("type", string(req.Type)), slog.String("email", req.Email))
	httpx.OK(w, req)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Active == nil {
		httpx.Fail(w, http.StatusBadRequest, "active is required")
		return
	}
	if err := h.settings.SetActive(r.Context(), req.Type, req.Email, *req.Active); err != nil {
		h.fail(w, err)
		return
	}
	h.audit(r, "notification recipient updated", slog.String("type", string(req.Type)), slog.String("email", req.Email), slog.Bool("active", *req.Active))
	httpx.OK(w, req)
}

func (h *Handler) audit(r *http.Request, msg string, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("principal", shared.PrincipalFromContext(r.Context())))
	h.logger.LogAttrs(r.Context(), slog.LevelInfo, msg, attrs...)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error("notification settings", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
