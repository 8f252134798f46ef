package threedcart

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, SecureURL: "shop.example", PrivateKey: "pk", Token: "tok"})
}

func TestGetOrderSendsCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Orders/1001", r.URL.Path)
		require.Equal(t, "shop.example", r.Header.Get("SecureURL"))
		require.Equal(t, "pk", r.Header.Get("PrivateKey"))
		require.Equal(t, "tok", r.Header.Get("Token"))
		_, _ = w.Write([]byte(`[{"OrderID":1001,"OrderStatusID":2,"OrderAmount":"19.90","BillingEmail":"a@b.c",
			"OrderItemList":[{"ItemID":"SKU-1","ItemQuantity":2,"ItemUnitPrice":9.95}]}]`))
	})

	order, err := client.GetOrder(context.Background(), 1001)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, order.OrderStatusID)
	require.Equal(t, "19.9", order.OrderAmount.String())
	require.Len(t, order.OrderItemList, 1)
	require.Equal(t, "SKU-1", order.OrderItemList[0].ItemID)
}

func TestGetOrderNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := client.GetOrder(context.Background(), 5)
	require.True(t, errors.Is(err, ErrOrderNotFound))
}

func TestUpdateOrderStatusBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		require.EqualValues(t, 4, body["OrderStatusID"])
		require.Equal(t, "Tracking: 1Z", body["InternalComments"])
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, client.UpdateOrderStatus(context.Background(), 7, StatusShipped, "Tracking: 1Z"))
}

func TestUpdateStockSendsOnlyStock(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/Products/42", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"SKUInfo":{"CatalogID":42,"Stock":7}}`, string(raw))
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, client.UpdateStock(context.Background(), 42, 7))
}

func TestListOrdersQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "10/01/2026", q.Get("datestart"))
		require.Equal(t, "2", q.Get("orderstatus"))
		require.Equal(t, "100", q.Get("limit"))
		_, _ = w.Write([]byte(`[{"OrderID":1},{"OrderID":2}]`))
	})
	orders, err := client.ListOrders(context.Background(), OrderFilter{DateStart: "10/01/2026", Status: StatusProcessing, Limit: 100})
	require.NoError(t, err)
	require.Len(t, orders, 2)
}

func TestDecodeOrdersAcceptsObject(t *testing.T) {
	orders, err := DecodeOrders([]byte(` {"OrderID":9} `))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.EqualValues(t, 9, orders[0].OrderID)

	_, err = DecodeOrders([]byte(`[{"OrderID":"x"}]`))
	require.Error(t, err)
}

func TestStatusHelpers(t *testing.T) {
	require.Equal(t, "Shipped", StatusShipped.String())
	require.Equal(t, "Status(42)", Status(42).String())
	require.True(t, StatusCancelled.Final())
	require.False(t, StatusProcessing.Final())
}
