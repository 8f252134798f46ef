package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/storebridge/storebridge/internal/platform/httpx"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/api/notifications", NewHandler(newTestStore(t), slog.Default()).MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, httpx.Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env httpx.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestHandlerLifecycle(t *testing.T) {
	h := newTestRouter(t)

	rec, env := do(t, h, http.MethodPost, "/api/notifications", `{"type":"order_failure","email":"jane@example.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)

	rec, env = do(t, h, http.MethodPatch, "/api/notifications", `{"type":"order_failure","email":"jane@example.com","active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, http.MethodDelete, "/api/notifications?type=order_failure&email=jane@example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	rec, env = do(t, h, http.MethodGet, "/api/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := env.Data.(map[string]any)
	require.Equal(t, "ops@example.com", data["default_recipient"])
	require.Len(t, data["settings"], len(AllTypes))
}

func TestHandlerRejectsProtectedAndInvalid(t *testing.T) {
	h := newTestRouter(t)

	rec, env := do(t, h, http.MethodDelete, "/api/notifications", `{"type":"order_success","email":"ops@example.com"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, env.Success)
	require.Contains(t, env.Error, "default recipient")

	rec, _ = do(t, h, http.MethodPost, "/api/notifications/bulk", `{"email":"x","types":["order_success"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPatch, "/api/notifications", `{"type":"order_success","email":"a@b.co"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
