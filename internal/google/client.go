// Package google reads and answers Google Business Profile reviews.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/storebridge/storebridge/internal/oauth"
	"github.com/storebridge/storebridge/internal/platform/remote"
)

// ErrReviewNotFound is returned when replying to an unknown review.
var ErrReviewNotFound = errors.New("google: review not found")

// Config configures the client.
type Config struct {
	BaseURL    string
	AccountID  string
	LocationID string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client calls the Business Profile reviews API with managed OAuth tokens.
type Client struct {
	remote   *remote.Client
	location string
}

// Review is a customer review.
type Review struct {
	ReviewID string `json:"reviewId"`
	Reviewer struct {
		DisplayName string `json:"displayName"`
	} `json:"reviewer"`
	StarRating string       `json:"starRating"`
	Comment    string       `json:"comment,omitempty"`
	CreateTime time.Time    `json:"createTime"`
	UpdateTime time.Time    `json:"updateTime"`
	Reply      *ReviewReply `json:"reviewReply,omitempty"`
}

// ReviewReply is the business's answer to a review.
type ReviewReply struct {
	Comment    string    `json:"comment"`
	UpdateTime time.Time `json:"updateTime,omitempty"`
}

// ReviewPage is one page of reviews.
type ReviewPage struct {
	Reviews          []Review `json:"reviews"`
	AverageRating    float64  `json:"averageRating"`
	TotalReviewCount int      `json:"totalReviewCount"`
	NextPageToken    string   `json:"nextPageToken,omitempty"`
}

// NewClient constructs a Client authorized through tokens.
func NewClient(cfg Config, tokens *oauth.Manager) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://mybusiness.googleapis.com/v4"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	httpClient := tokens.HTTPClient(context.Background(), &http.Client{Timeout: timeout})
	return &Client{
		remote: remote.New(remote.Options{
			Name:       "google",
			BaseURL:    baseURL,
			Timeout:    timeout,
			RatePerSec: 5,
			HTTPClient: httpClient,
			Logger:     cfg.Logger,
		}, nil),
		location: "/accounts/" + url.PathEscape(cfg.AccountID) + "/locations/" + url.PathEscape(cfg.LocationID),
	}
}

// ListReviews returns one page of reviews, newest first.
func (c *Client) ListReviews(ctx context.Context, pageSize int, pageToken string) (*ReviewPage, error) {
	if pageSize <= 0 || pageSize > 50 {
		pageSize = 50
	}
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(pageSize))
	q.Set("orderBy", "updateTime desc")
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	var page ReviewPage
	if _, err := c.remote.DoJSON(ctx, http.MethodGet, c.location+"/reviews?"+q.Encode(), nil, &page); err != nil {
		return nil, unwrapAuth(err)
	}
	return &page, nil
}

// Reply creates or replaces the reply to a review.
func (c *Client) Reply(ctx context.Context, reviewID, comment string) (*ReviewReply, error) {
	var reply ReviewReply
	endpoint := c.location + "/reviews/" + url.PathEscape(reviewID) + "/reply"
	if _, err := c.remote.DoJSON(ctx, http.MethodPut, endpoint, ReviewReply{Comment: comment}, &reply); err != nil {
		if remote.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrReviewNotFound, reviewID)
		}
		return nil, unwrapAuth(err)
	}
	return &reply, nil
}

// unwrapAuth surfaces a missing consent as the oauth sentinel instead of a
// transport failure.
func unwrapAuth(err error) error {
	if errors.Is(err, oauth.ErrReauthorizationRequired) {
		return oauth.ErrReauthorizationRequired
	}
	return err
}
