package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/storebridge/storebridge/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	_ = jobs.Track("order:create").End(nil)
	jobs.AddOrders("created", 1)

	body := scrape(t, metrics)
	require.Contains(t, body, `storebridge_jobs_total{job="order:create",status="success"} 1`)
	require.Contains(t, body, `storebridge_orders_total{outcome="created"} 1`)
	require.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `storebridge_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `storebridge_http_request_duration_seconds_bucket{route="/test"`)
}

func TestObserveWebhook(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveWebhook("hubspot", "applied", 2)
	metrics.ObserveWebhook("hubspot", "failed", 0)

	body := scrape(t, metrics)
	require.Contains(t, body, `storebridge_webhook_events_total{result="applied",source="hubspot"} 2`)
	require.NotContains(t, body, `result="failed"`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveWebhook("hubspot", "applied", 1)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
