// Package hubspot is a small client for the CRM v3 objects API.
package hubspot

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/storebridge/storebridge/internal/platform/remote"
)

// Object types used by the integrations.
const (
	ObjectContacts  = "contacts"
	ObjectCompanies = "companies"
	ObjectDeals     = "deals"
)

// ErrObjectNotFound is returned when the CRM has no such object.
var ErrObjectNotFound = errors.New("hubspot: object not found")

// Config configures the client.
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	RatePerSec  float64
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client issues CRM requests with a private app token.
type Client struct {
	remote *remote.Client
}

// Object is a CRM object with its requested properties.
type Object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.hubapi.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	auth := remote.AuthorizerFunc(func(req *http.Request, _ []byte) error {
		req.Header.Set("Authorization", "Bearer "+cfg.AccessToken)
		return nil
	})
	return &Client{remote: remote.New(remote.Options{
		Name:       "hubspot",
		BaseURL:    baseURL,
		Timeout:    timeout,
		RatePerSec: cfg.RatePerSec,
		Burst:      4,
		HTTPClient: cfg.HTTPClient,
		Logger:     cfg.Logger,
	}, auth)}
}

// GetObject fetches an object with the listed properties.
func (c *Client) GetObject(ctx context.Context, objectType, id string, properties []string) (*Object, error) {
	endpoint := "/crm/v3/objects/" + objectType + "/" + url.PathEscape(id)
	if len(properties) > 0 {
		endpoint += "?properties=" + url.QueryEscape(strings.Join(properties, ","))
	}
	var obj Object
	if _, err := c.remote.DoJSON(ctx, http.MethodGet, endpoint, nil, &obj); err != nil {
		if remote.IsStatus(err, http.StatusNotFound) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return &obj, nil
}

type propertiesBody struct {
	Properties map[string]string `json:"properties"`
}

// UpdateObject patches properties on an object.
func (c *Client) UpdateObject(ctx context.Context, objectType, id string, properties map[string]string) error {
	if len(properties) == 0 {
		return nil
	}
	endpoint := "/crm/v3/objects/" + objectType + "/" + url.PathEscape(id)
	if _, err := c.remote.DoJSON(ctx, http.MethodPatch, endpoint, propertiesBody{Properties: properties}, nil); err != nil {
		if remote.IsStatus(err, http.StatusNotFound) {
			return ErrObjectNotFound
		}
		return err
	}
	return nil
}

type searchFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type searchRequest struct {
	FilterGroups []struct {
		Filters []searchFilter `json:"filters"`
	} `json:"filterGroups"`
	Properties []string `json:"properties,omitempty"`
	Limit      int      `json:"limit"`
}

type searchResponse struct {
	Total   int      `json:"total"`
	Results []Object `json:"results"`
}

// FindContactByEmail returns the contact with the email, or nil.
func (c *Client) FindContactByEmail(ctx context.Context, email string, properties []string) (*Object, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	req := searchRequest{Properties: properties, Limit: 1}
	req.FilterGroups = make([]struct {
		Filters []searchFilter `json:"filters"`
	}, 1)
	req.FilterGroups[0].Filters = []searchFilter{{PropertyName: "email", Operator: "EQ", Value: email}}

	var resp searchResponse
	if _, err := c.remote.DoJSON(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}
