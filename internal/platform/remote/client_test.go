package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoJSONDecodesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret", r.Header.Get("X-Key"))
		require.Equal(t, "/items/7", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"name":"widget"}`))
	}))
	defer srv.Close()

	auth := AuthorizerFunc(func(req *http.Request, body []byte) error {
		req.Header.Set("X-Key", "secret")
		return nil
	})
	client := New(Options{Name: "test", BaseURL: srv.URL + "/"}, auth)

	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	_, err := client.DoJSON(context.Background(), http.MethodGet, "/items/7", nil, &out)
	require.NoError(t, err)
	require.Equal(t, 7, out.ID)
	require.Equal(t, "widget", out.Name)
}

func TestStatusErrorClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/unavailable":
			http.Error(w, "try later", http.StatusServiceUnavailable)
		case "/missing":
			http.Error(w, "no such record", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := New(Options{Name: "test", BaseURL: srv.URL}, nil)

	_, err := client.Do(context.Background(), http.MethodGet, "/unavailable", nil)
	require.Error(t, err)
	require.True(t, IsTransient(err))
	require.True(t, IsStatus(err, http.StatusServiceUnavailable))

	_, err = client.Do(context.Background(), http.MethodGet, "/missing", nil)
	require.Error(t, err)
	require.False(t, IsTransient(err))
	require.True(t, BodyContains(err, "No Such Record"))
}

func TestBreakerOpensAfterConsecutiveTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(Options{Name: "flaky", BaseURL: srv.URL, Timeout: time.Second}, nil)
	for i := 0; i < 5; i++ {
		_, err := client.Do(context.Background(), http.MethodGet, "/", nil)
		require.Error(t, err)
	}
	_, err := client.Do(context.Background(), http.MethodGet, "/", nil)
	var breakerErr *BreakerError
	require.True(t, errors.As(err, &breakerErr))
	require.True(t, IsTransient(err))
	require.Equal(t, 5, calls)
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := New(Options{Name: "strict", BaseURL: srv.URL}, nil)
	for i := 0; i < 8; i++ {
		_, err := client.Do(context.Background(), http.MethodPost, "/", []byte(`{}`))
		require.True(t, IsStatus(err, http.StatusBadRequest))
	}
}

func TestIsTransientContext(t *testing.T) {
	require.False(t, IsTransient(nil))
	require.False(t, IsTransient(context.Canceled))
	require.True(t, IsTransient(context.DeadlineExceeded))
	require.False(t, IsTransient(errors.New("boom")))
}
