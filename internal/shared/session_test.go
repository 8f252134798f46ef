package shared_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/storebridge/storebridge/internal/shared"
)

func newSessionManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionManager(client, "sb_session", time.Hour, false), mr
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Empty(t, sess.User())

	sess.SetUser("admin")
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	require.True(t, mr.Exists("storebridge:session:"+sess.ID))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "admin", loaded.User())
}

func TestAnonymousSessionIsNotPersisted(t *testing.T) {
	sm, mr := newSessionManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	require.Empty(t, mr.Keys())
	require.Empty(t, rec.Result().Cookies())
}

func TestCSRFTokenVerification(t *testing.T) {
	sm, _ := newSessionManager(t)
	csrf := shared.NewCSRFManager("csrf-secret")

	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	token, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(sess)
	require.NoError(t, err)
	require.Equal(t, token, again)

	require.NoError(t, csrf.VerifyToken(sess, token))
	require.ErrorIs(t, csrf.VerifyToken(sess, "forged"), shared.ErrCSRFTokenMismatch)
	require.ErrorIs(t, csrf.VerifyToken(sess, ""), shared.ErrCSRFTokenMissing)
}

func TestRetryPolicyStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	policy := shared.RetryPolicy{
		Attempts:  5,
		Delay:     time.Millisecond,
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
	}

	calls := 0
	attempts, err := policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 2 {
			return errors.New("flaky")
		}
		return fatal
	})
	require.ErrorIs(t, err, fatal)
	require.Equal(t, 2, attempts)
	require.Equal(t, 2, calls)
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	policy := shared.RetryPolicy{Attempts: 3, Delay: time.Millisecond}
	attempts, err := policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		return errors.New("still down")
	})
	require.EqualError(t, err, "still down")
	require.Equal(t, 3, attempts)
}

func TestRetryPolicySucceeds(t *testing.T) {
	policy := shared.RetryPolicy{Attempts: 3}
	attempts, err := policy.Do(context.Background(), func(ctx context.Context, attempt int) error {
		if attempt == 2 {
			return nil
		}
		return errors.New("once")
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestNewPageClamps(t *testing.T) {
	require.Equal(t, shared.Page{Limit: 50, Offset: 0}, shared.NewPage(0, -4, 50, 200))
	require.Equal(t, shared.Page{Limit: 200, Offset: 10}, shared.NewPage(1000, 10, 50, 200))
}
