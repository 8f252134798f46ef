package orders

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/storebridge/storebridge/internal/netsuite"
	"github.com/storebridge/storebridge/internal/threedcart"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/orders", NewHandler(svc, nil, "https://admin.example.com", discardLogger()).MountRoutes)
	return r
}

func serve(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestHandlerSyncStatus(t *testing.T) {
	order := sampleOrder(1)
	order.OrderStatusID = threedcart.StatusProcessing
	erp := newFakeERP()
	erp.salesOrders[ExternalID(1)] = &netsuite.SalesOrder{ID: "so-1", TrackingNumbers: []string{"T1"}}
	svc, _ := newTestService(newFakeCommerce(order), erp, &fakeNotifier{}, Config{})
	router := newTestRouter(svc)

	rec, env := serve(t, router, http.MethodPost, "/api/orders/1/sync-status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
	var res StatusResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.True(t, res.Updated)

	rec, env = serve(t, router, http.MethodPost, "/api/orders/99/sync-status", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.False(t, env.Success)

	rec, _ = serve(t, router, http.MethodPost, "/api/orders/abc/sync-status", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerBatchSync(t *testing.T) {
	svc, _ := newTestService(newFakeCommerce(sampleOrder(1)), newFakeERP(), &fakeNotifier{}, Config{})
	router := newTestRouter(svc)

	rec, env := serve(t, router, http.MethodPost, "/api/orders/sync-status", `{"order_ids":[1,2]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var batch BatchResult
	require.NoError(t, json.Unmarshal(env.Data, &batch))
	require.Len(t, batch.Results, 1)
	require.Len(t, batch.Failures, 1)

	rec, _ = serve(t, router, http.MethodPost, "/api/orders/sync-status", `{"order_ids":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(t, router, http.MethodPost, "/api/orders/sync-status", `{`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerCreateMapsErrors(t *testing.T) {
	order := sampleOrder(5)
	order.CustomerGroupID = 3
	order.BillingCompany = "Nobody"
	svc, _ := newTestService(newFakeCommerce(order, sampleOrder(6)), newFakeERP(), &fakeNotifier{}, Config{StoreParentID: "1", PassThroughGroups: []int64{3}})
	router := newTestRouter(svc)

	rec, _ := serve(t, router, http.MethodPost, "/api/orders/5/create", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, env := serve(t, router, http.MethodPost, "/api/orders/6/create", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res CreateResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Equal(t, "so-1", res.SalesOrderID)
	require.Equal(t, 1, res.Attempts)
}

func TestHandlerReconcileAndFailures(t *testing.T) {
	commerce := newFakeCommerce(sampleOrder(7))
	svc, _ := newTestService(commerce, newFakeERP(), &fakeNotifier{}, Config{})
	router := newTestRouter(svc)

	serve(t, router, http.MethodPost, "/api/orders/sync-status", `{"order_ids":[7,8]}`)

	rec, env := serve(t, router, http.MethodGet, "/api/orders/7/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rc reconcileResponse
	require.NoError(t, json.Unmarshal(env.Data, &rc))
	require.Equal(t, "3DCART_7", rc.ExternalID)
	require.False(t, rc.InSync)
	require.Len(t, rc.History, 1)
	require.Equal(t, "https://admin.example.com/api/orders/7/reconcile", rc.ReconcileURL)

	rec, env = serve(t, router, http.MethodGet, "/api/orders/failures", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var failures []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &failures))
	require.Len(t, failures, 1)
	require.EqualValues(t, 8, failures[0]["order_id"])
}

func TestSweepWindow(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 4, 0, 0, time.UTC)
	from, to, err := SweepWindow("", "", 0, now)
	require.NoError(t, err)
	require.Equal(t, "2024-06-03", from.Format("2006-01-02"))
	require.Equal(t, "2024-06-10", to.Format("2006-01-02"))

	from, to, err = SweepWindow("2024-01-01", "2024-01-31", 0, now)
	require.NoError(t, err)
	require.Equal(t, 30, int(to.Sub(from).Hours()/24))

	_, _, err = SweepWindow("2024-02-01", "2024-01-01", 0, now)
	require.Error(t, err)
	_, _, err = SweepWindow("01/02/2024", "", 0, now)
	require.Error(t, err)
}
