package hubspot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, AccessToken: "pat-1"})
}

func TestUpdateObject(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/crm/v3/objects/contacts/101", r.URL.Path)
		require.Equal(t, "Bearer pat-1", r.Header.Get("Authorization"))
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body propertiesBody
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Equal(t, "Acme", body.Properties["company"])
		_, _ = w.Write([]byte(`{"id":"101"}`))
	})
	require.NoError(t, client.UpdateObject(context.Background(), ObjectContacts, "101", map[string]string{"company": "Acme"}))
}

func TestUpdateObjectNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := client.UpdateObject(context.Background(), ObjectContacts, "1", map[string]string{"a": "b"})
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFindContactByEmail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/crm/v3/objects/contacts/search", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(raw), `"value":"jane@example.com"`)
		_, _ = w.Write([]byte(`{"total":1,"results":[{"id":"77","properties":{"email":"jane@example.com"}}]}`))
	})
	obj, err := client.FindContactByEmail(context.Background(), " jane@example.com", []string{"email"})
	require.NoError(t, err)
	require.Equal(t, "77", obj.ID)

	none, err := client.FindContactByEmail(context.Background(), "", nil)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestVerifySignature(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	ts := strconv.FormatInt(now.Add(-time.Minute).UnixMilli(), 10)
	body := []byte(`[{"eventId":1}]`)
	uri := "https://bridge.example.com/webhooks/hubspot"
	sig := Sign("secret", http.MethodPost, uri, body, ts)

	require.NoError(t, VerifySignature("secret", http.MethodPost, uri, body, ts, sig, now))
	require.ErrorIs(t, VerifySignature("other", http.MethodPost, uri, body, ts, sig, now), ErrSignatureInvalid)
	require.ErrorIs(t, VerifySignature("secret", http.MethodPost, uri, body, ts, "", now), ErrSignatureMissing)

	old := strconv.FormatInt(now.Add(-10*time.Minute).UnixMilli(), 10)
	require.ErrorIs(t, VerifySignature("secret", http.MethodPost, uri, body, old, Sign("secret", http.MethodPost, uri, body, old), now), ErrSignatureExpired)
}
