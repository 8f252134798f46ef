// Package netsuite is a client for the ERP SuiteTalk REST web services:
// record reads and writes plus SuiteQL queries, signed with token based
// authentication.
package netsuite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/storebridge/storebridge/internal/platform/remote"
)

var (
	// ErrDuplicateExternalID is returned when a record with the same
	// external id already exists.
	ErrDuplicateExternalID = errors.New("netsuite: duplicate external id")
	// ErrNoRecordID is returned when a create response lacks a Location.
	ErrNoRecordID = errors.New("netsuite: created record id missing")
)

// Config configures the client.
type Config struct {
	AccountID      string
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	TokenID        string
	TokenSecret    string
	Timeout        time.Duration
	RatePerSec     float64
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Client is a SuiteTalk REST client.
type Client struct {
	remote *remote.Client
}

// NewClient constructs a Client. When BaseURL is empty it is derived from
// the account id.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		host := strings.ToLower(strings.ReplaceAll(cfg.AccountID, "_", "-"))
		baseURL = "https://" + host + ".suitetalk.api.netsuite.com/services/rest"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{remote: remote.New(remote.Options{
		Name:       "netsuite",
		BaseURL:    baseURL,
		Timeout:    timeout,
		RatePerSec: cfg.RatePerSec,
		Burst:      5,
		HTTPClient: newTBAClient(cfg, cfg.HTTPClient, timeout),
		Logger:     cfg.Logger,
	}, nil)}
}

// FindSalesOrderByExternalID returns the sales order carrying externalID, or
// nil when none exists.
func (c *Client) FindSalesOrderByExternalID(ctx context.Context, externalID string) (*SalesOrder, error) {
	var so SalesOrder
	endpoint := "/record/v1/salesorder/eid:" + url.PathEscape(externalID)
	if _, err := c.remote.DoJSON(ctx, http.MethodGet, endpoint, nil, &so); err != nil {
		if remote.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	so.TrackingNumbers = ParseTrackingNumbers(so.LinkedTracking)
	return &so, nil
}

// CreateSalesOrder creates a sales order and returns its internal id.
func (c *Client) CreateSalesOrder(ctx context.Context, in SalesOrderInput) (string, error) {
	resp, err := c.remote.DoJSON(ctx, http.MethodPost, "/record/v1/salesorder", in, nil)
	if err != nil {
		if isDuplicate(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateExternalID, in.ExternalID)
		}
		return "", err
	}
	return recordID(resp)
}

// CreateCustomer creates a customer and returns its internal id.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	resp, err := c.remote.DoJSON(ctx, http.MethodPost, "/record/v1/customer", in, nil)
	if err != nil {
		if isDuplicate(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateExternalID, in.ExternalID)
		}
		return "", err
	}
	return recordID(resp)
}

// UpdateCustomer patches the given body fields on a customer.
func (c *Client) UpdateCustomer(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := c.remote.DoJSON(ctx, http.MethodPatch, "/record/v1/customer/"+url.PathEscape(id), fields, nil)
	return err
}

// FindCustomerByEmail returns the first customer with the exact email.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	if strings.TrimSpace(email) == "" {
		return nil, nil
	}
	return c.firstCustomer(ctx, "LOWER(email) = "+Quote(strings.ToLower(strings.TrimSpace(email))))
}

// FindCustomerByPhone returns the first customer with the exact phone.
func (c *Client) FindCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	if strings.TrimSpace(phone) == "" {
		return nil, nil
	}
	return c.firstCustomer(ctx, "phone = "+Quote(strings.TrimSpace(phone)))
}

// ChildCustomers lists customers directly under parentID.
func (c *Client) ChildCustomers(ctx context.Context, parentID string) ([]Customer, error) {
	rows, err := c.Query(ctx, customerSelect+" WHERE parent = "+Quote(parentID), 1000)
	if err != nil {
		return nil, err
	}
	out := make([]Customer, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.customer())
	}
	return out, nil
}

// LookupItems resolves SKUs to inventory items. SKUs the ERP does not know
// are absent from the result.
func (c *Client) LookupItems(ctx context.Context, skus []string) (map[string]Item, error) {
	out := make(map[string]Item, len(skus))
	const chunk = 200
	for start := 0; start < len(skus); start += chunk {
		end := start + chunk
		if end > len(skus) {
			end = len(skus)
		}
		quoted := make([]string, 0, end-start)
		for _, sku := range skus[start:end] {
			quoted = append(quoted, Quote(sku))
		}
		q := "SELECT id, itemid, totalquantityonhand FROM item WHERE itemid IN (" + strings.Join(quoted, ", ") + ")"
		rows, err := c.Query(ctx, q, 1000)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			item := Item{ID: row.String("id"), SKU: row.String("itemid"), QuantityOnHand: row.Int("totalquantityonhand")}
			out[item.SKU] = item
		}
	}
	return out, nil
}

const customerSelect = "SELECT id, email, phone, companyname, firstname, lastname, isperson, parent FROM customer"

func (c *Client) firstCustomer(ctx context.Context, where string) (*Customer, error) {
	rows, err := c.Query(ctx, customerSelect+" WHERE "+where+" ORDER BY id", 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	cust := rows[0].customer()
	return &cust, nil
}

func recordID(resp *remote.Response) (string, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", ErrNoRecordID
	}
	return path.Base(loc), nil
}

func isDuplicate(err error) bool {
	var statusErr *remote.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		return false
	}
	return remote.BodyContains(err, "duplicate", "already exists", "unique")
}
