// Package threedcart is a client for the 3DCart REST API (v1).
package threedcart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/storebridge/storebridge/internal/platform/remote"
)

// ErrOrderNotFound is returned when the platform has no order with the id.
var ErrOrderNotFound = errors.New("threedcart: order not found")

// Config configures the client.
type Config struct {
	BaseURL    string
	SecureURL  string
	PrivateKey string
	Token      string
	Timeout    time.Duration
	RatePerSec float64
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to one store.
type Client struct {
	remote *remote.Client
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	auth := remote.AuthorizerFunc(func(req *http.Request, _ []byte) error {
		req.Header.Set("SecureURL", cfg.SecureURL)
		req.Header.Set("PrivateKey", cfg.PrivateKey)
		req.Header.Set("Token", cfg.Token)
		return nil
	})
	return &Client{remote: remote.New(remote.Options{
		Name:       "threedcart",
		BaseURL:    cfg.BaseURL,
		Timeout:    timeout,
		RatePerSec: cfg.RatePerSec,
		Burst:      2,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
	}, auth)}
}

// GetOrder fetches a single order.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	resp, err := c.remote.Do(ctx, http.MethodGet, "/Orders/"+strconv.FormatInt(orderID, 10), nil)
	if err != nil {
		if remote.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	orders, err := DecodeOrders(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("threedcart: decode order %d: %w", orderID, err)
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	return &orders[0], nil
}

// ListOrders returns one page of orders matching filter.
func (c *Client) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	q := url.Values{}
	if filter.DateStart != "" {
		q.Set("datestart", filter.DateStart)
	}
	if filter.DateEnd != "" {
		q.Set("dateend", filter.DateEnd)
	}
	if filter.Status != 0 {
		q.Set("orderstatus", strconv.Itoa(int(filter.Status)))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	path := "/Orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	resp, err := c.remote.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		if remote.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return DecodeOrders(resp.Body)
}

type orderUpdate struct {
	OrderStatusID    Status `json:"OrderStatusID"`
	InternalComments string `json:"InternalComments,omitempty"`
}

// UpdateOrderStatus writes the status and, when non-empty, replaces the
// internal comments.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID int64, status Status, internalComments string) error {
	body := orderUpdate{OrderStatusID: status, InternalComments: internalComments}
	_, err := c.remote.DoJSON(ctx, http.MethodPut, "/Orders/"+strconv.FormatInt(orderID, 10), body, nil)
	return err
}

// ListProducts returns one page of catalog products.
func (c *Client) ListProducts(ctx context.Context, limit, offset int) ([]Product, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var products []Product
	if _, err := c.remote.DoJSON(ctx, http.MethodGet, "/Products?"+q.Encode(), nil, &products); err != nil {
		if remote.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return products, nil
}

// stockUpdate carries only the fields a stock push may touch; the platform
// overwrites every field present in a product PUT.
type stockUpdate struct {
	SKUInfo struct {
		CatalogID int64 `json:"CatalogID"`
		Stock     int   `json:"Stock"`
	} `json:"SKUInfo"`
}

// UpdateStock sets the on-hand stock of a catalog product.
func (c *Client) UpdateStock(ctx context.Context, catalogID int64, stock int) error {
	var body stockUpdate
	body.SKUInfo.CatalogID = catalogID
	body.SKUInfo.Stock = stock
	_, err := c.remote.DoJSON(ctx, http.MethodPut, "/Products/"+strconv.FormatInt(catalogID, 10), body, nil)
	return err
}

// DecodeOrders accepts either a JSON array of orders or a single object, the
// two shapes the platform uses in API responses and webhook bodies.
func DecodeOrders(raw []byte) ([]Order, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var orders []Order
		if err := json.Unmarshal(trimmed, &orders); err != nil {
			return nil, err
		}
		return orders, nil
	}
	var order Order
	if err := json.Unmarshal(trimmed, &order); err != nil {
		return nil, err
	}
	return []Order{order}, nil
}

// FormatDate renders t in the listing filter format.
func FormatDate(t time.Time) string {
	return t.Format("01/02/2006")
}
