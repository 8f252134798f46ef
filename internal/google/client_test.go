package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/storebridge/storebridge/internal/oauth"
)

func newManager(t *testing.T, tok *oauth2.Token) *oauth.Manager {
	t.Helper()
	store := &oauth.MemoryStore{}
	if tok != nil {
		require.NoError(t, store.Save(context.Background(), tok))
	}
	return oauth.NewManager("google", &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: "http://127.0.0.1:1/token"}}, store, nil)
}

func TestListReviewsUsesManagedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer live", r.Header.Get("Authorization"))
		require.Equal(t, "/accounts/a1/locations/l1/reviews", r.URL.Path)
		require.Equal(t, "50", r.URL.Query().Get("pageSize"))
		_, _ = w.Write([]byte(`{"reviews":[{"reviewId":"r1","starRating":"FIVE","comment":"great",
			"createTime":"2026-10-01T10:00:00Z","updateTime":"2026-10-01T10:00:00Z"}],"averageRating":4.8,"totalReviewCount":31}`))
	}))
	defer srv.Close()

	m := newManager(t, &oauth2.Token{AccessToken: "live", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)})
	client := NewClient(Config{BaseURL: srv.URL, AccountID: "a1", LocationID: "l1"}, m)

	page, err := client.ListReviews(context.Background(), 0, "")
	require.NoError(t, err)
	require.Len(t, page.Reviews, 1)
	require.Equal(t, "FIVE", page.Reviews[0].StarRating)
	require.Equal(t, 31, page.TotalReviewCount)
}

func TestListReviewsWithoutTokenNeedsConsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not reach the API without a token")
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, AccountID: "a1", LocationID: "l1"}, newManager(t, nil))
	_, err := client.ListReviews(context.Background(), 10, "")
	require.ErrorIs(t, err, oauth.ErrReauthorizationRequired)
}

func TestReplyNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	m := newManager(t, &oauth2.Token{AccessToken: "live", Expiry: time.Now().Add(time.Hour)})
	client := NewClient(Config{BaseURL: srv.URL, AccountID: "a1", LocationID: "l1"}, m)
	_, err := client.Reply(context.Background(), "missing", "thanks")
	require.ErrorIs(t, err, ErrReviewNotFound)
}
