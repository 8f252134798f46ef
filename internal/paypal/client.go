// Package paypal looks up checkout orders with client-credential tokens.
package paypal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/storebridge/storebridge/internal/platform/remote"
)

// ErrOrderNotFound is returned for unknown order ids.
var ErrOrderNotFound = errors.New("paypal: order not found")

// Config configures the client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Client is a PayPal REST client.
type Client struct {
	remote *remote.Client
}

// Order is a checkout order.
type Order struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Intent        string         `json:"intent"`
	CreateTime    string         `json:"create_time,omitempty"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
	Payer         *Payer         `json:"payer,omitempty"`
}

// PurchaseUnit is one unit of an order.
type PurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      Money  `json:"amount"`
}

// Money is an amount in a currency.
type Money struct {
	CurrencyCode string          `json:"currency_code"`
	Value        decimal.Decimal `json:"value"`
}

// Payer identifies who paid.
type Payer struct {
	EmailAddress string `json:"email_address,omitempty"`
	Name         struct {
		GivenName string `json:"given_name,omitempty"`
		Surname   string `json:"surname,omitempty"`
	} `json:"name"`
}

// Total sums purchase unit amounts; units in other currencies than the
// first are ignored.
func (o *Order) Total() Money {
	var total Money
	for i, pu := range o.PurchaseUnits {
		if i == 0 {
			total.CurrencyCode = pu.Amount.CurrencyCode
		}
		if pu.Amount.CurrencyCode == total.CurrencyCode {
			total.Value = total.Value.Add(pu.Amount.Value)
		}
	}
	return total
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api-m.paypal.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := cc.Client(ctx)
	httpClient.Timeout = timeout

	return &Client{remote: remote.New(remote.Options{
		Name:       "paypal",
		BaseURL:    baseURL,
		Timeout:    timeout,
		RatePerSec: 5,
		HTTPClient: httpClient,
		Logger:     cfg.Logger,
	}, nil)}
}

// GetOrder fetches a checkout order.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	var order Order
	if _, err := c.remote.DoJSON(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(id), nil, &order); err != nil {
		if remote.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
		}
		return nil, err
	}
	return &order, nil
}
