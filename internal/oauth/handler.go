package oauth

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storebridge/storebridge/internal/platform/httpx"
	"github.com/storebridge/storebridge/internal/shared"
)

const stateSessionKey = "oauth_state"

// Handler exposes the interactive consent flow.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// MountRoutes registers the consent routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/start", h.start)
	r.Get("/callback", h.callback)
	r.Get("/status", h.status)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	state := uuid.NewString()
	sess.Set(stateSessionKey, state)
	http.Redirect(w, r, h.manager.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	expected := ""
	if sess != nil {
		expected = sess.Get(stateSessionKey)
	}
	state := r.URL.Query().Get("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		httpx.Fail(w, http.StatusBadRequest, "oauth state mismatch")
		return
	}
	sess.Set(stateSessionKey, "")

	if e := r.URL.Query().Get("error"); e != "" {
		httpx.Fail(w, http.StatusBadRequest, "authorization denied: "+e)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.Fail(w, http.StatusBadRequest, "authorization code missing")
		return
	}
	if _, err := h.manager.Exchange(r.Context(), code); err != nil {
		h.logger.Error("oauth exchange failed", slog.Any("error", err))
		httpx.Fail(w, http.StatusBadGateway, "token exchange failed")
		return
	}
	httpx.OK(w, map[string]string{"state": string(StateValid)})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	state, err := h.manager.State(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]string{"state": string(state)})
}

// IsReauthorization reports whether err requires the consent flow.
func IsReauthorization(err error) bool {
	return errors.Is(err, ErrReauthorizationRequired)
}
