// Package auth implements admin login for the JSON admin API: a session
// cookie obtained with the configured admin password, or a bearer API key.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/storebridge/storebridge/internal/platform/httpx"
	"github.com/storebridge/storebridge/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/csrf", h.handleCSRF)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type sessionResponse struct {
	User      string `json:"user,omitempty"`
	CSRFToken string `json:"csrf_token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Fail(w, http.StatusInternalServerError, "internal error")
		return
	}

	admin, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Warn("admin login rejected", slog.String("username", req.Username), slog.String("ip", r.RemoteAddr))
		httpx.Fail(w, http.StatusUnauthorized, shared.ErrInvalidCredentials.Error())
		return
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Error("renew session", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	sess.SetUser(admin.Username)
	// Tokens are bound to the session id, so a renewed session needs a new one.
	sess.Set(shared.CSRFSessionKey, "")
	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("admin logged in", slog.String("username", admin.Username))
	httpx.OK(w, sessionResponse{User: admin.Username, CSRFToken: token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		h.sessionManager.Destroy(sess)
	}
	httpx.OK(w, map[string]bool{"logged_out": true})
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		if errors.Is(err, shared.ErrCSRFTokenMissing) {
			httpx.Fail(w, http.StatusUnauthorized, "no session")
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, sessionResponse{User: sess.User(), CSRFToken: token})
}
