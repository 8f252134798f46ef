package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/storebridge/storebridge/internal/auth"
	"github.com/storebridge/storebridge/internal/shared"
	_ "github.com/storebridge/storebridge/testing"
)

type authEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		User      string `json:"user"`
		CSRFToken string `json:"csrf_token"`
	} `json:"data"`
}

func newAuthHandler(t *testing.T, apiKeys ...string) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", time.Hour, false)
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	service := auth.NewService(auth.NewStaticDirectory("admin", string(hashed)), apiKeys)
	handler := auth.NewHandler(nil, service, sessionManager, shared.NewCSRFManager("csrfsecret"))
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r, sessionManager
}

func serveWithSession(t *testing.T, h http.Handler, sm *shared.SessionManager, req *http.Request) (*httptest.ResponseRecorder, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	require.NoError(t, sm.Commit(context.Background(), httptest.NewRecorder(), sess))
	return res, sess
}

func decodeAuth(t *testing.T, res *httptest.ResponseRecorder) authEnvelope {
	t.Helper()
	var env authEnvelope
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &env))
	return env
}

func TestLoginIssuesSessionAndCSRFToken(t *testing.T) {
	h, sm := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"correct-horse"}`))
	res, sess := serveWithSession(t, h, sm, req)

	require.Equal(t, http.StatusOK, res.Code)
	env := decodeAuth(t, res)
	require.True(t, env.Success)
	require.Equal(t, "admin", env.Data.User)
	require.NotEmpty(t, env.Data.CSRFToken)
	require.Equal(t, "admin", sess.User())

	next := httptest.NewRequest(http.MethodGet, "/auth/csrf", nil)
	next.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	res, _ = serveWithSession(t, h, sm, next)
	require.Equal(t, http.StatusOK, res.Code)
	env = decodeAuth(t, res)
	require.Equal(t, "admin", env.Data.User)
}

func TestLoginRenewsSessionID(t *testing.T) {
	h, sm := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"correct-horse"}`))
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	before := sess.ID
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotEqual(t, before, sess.ID)
}

func TestLoginInvalidCredentials(t *testing.T) {
	h, sm := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"wrong-password"}`))
	res, sess := serveWithSession(t, h, sm, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	env := decodeAuth(t, res)
	require.False(t, env.Success)
	require.Equal(t, shared.ErrInvalidCredentials.Error(), env.Error)
	require.Empty(t, sess.User())
}

func TestLoginValidation(t *testing.T) {
	h, sm := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin"}`))
	res, _ := serveWithSession(t, h, sm, req)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	h, sm := newAuthHandler(t)

	login := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"correct-horse"}`))
	_, sess := serveWithSession(t, h, sm, login)

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	res, _ := serveWithSession(t, h, sm, logout)
	require.Equal(t, http.StatusOK, res.Code)

	reloaded := httptest.NewRequest(http.MethodGet, "/", nil)
	reloaded.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})
	loaded, err := sm.Load(context.Background(), reloaded)
	require.NoError(t, err)
	require.Empty(t, loaded.User())
}

func TestVerifyAPIKey(t *testing.T) {
	service := auth.NewService(auth.NewStaticDirectory("admin", ""), []string{"key-one", " ", "key-two"})

	require.True(t, service.VerifyAPIKey("key-one"))
	require.True(t, service.VerifyAPIKey("key-two"))
	require.False(t, service.VerifyAPIKey("key-three"))
	require.False(t, service.VerifyAPIKey(""))
	require.Equal(t, "apikey:key-on", auth.Principal("key-one"))
}

func TestEmptyPasswordHashDisablesLogin(t *testing.T) {
	service := auth.NewService(auth.NewStaticDirectory("admin", ""), nil)
	_, err := service.Authenticate(context.Background(), "admin", "anything-goes")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
