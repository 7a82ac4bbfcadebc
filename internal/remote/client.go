// Package remote is the HTTP client for the shelfmate reference server:
// the server-side enrichment entry point, the authoritative like toggle
// and the community feed.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"

	"github.com/lepinkainen/shelfmate/internal/book"
	"github.com/lepinkainen/shelfmate/internal/enrich"
	apperrors "github.com/lepinkainen/shelfmate/internal/errors"
	"github.com/lepinkainen/shelfmate/internal/social"
)

// EnrichRequest is the enrichment entry point payload. The server runs
// the hydration pipeline on its side and returns the updated record.
type EnrichRequest struct {
	BookID         string `json:"bookId"`
	ISBN           string `json:"isbn,omitempty"`
	GoogleVolumeID string `json:"googleVolumeId,omitempty"`
	OLWorkKey      string `json:"olWorkKey,omitempty"`
	OLEditionKey   string `json:"olEditionKey,omitempty"`
}

// EnrichResponse is the enrichment entry point reply.
type EnrichResponse struct {
	OK       bool         `json:"ok"`
	Metadata *book.Record `json:"metadata,omitempty"`
}

// ToggleRequest is the like toggle payload, keyed by canonical key.
type ToggleRequest struct {
	Key string `json:"key"`
}

// ToggleResponse is the authoritative toggle reply.
type ToggleResponse struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

// FeedItem is one entry of the community feed.
type FeedItem struct {
	Key      string              `json:"key"`
	Record   book.Record         `json:"record"`
	Counters social.CounterState `json:"counters"`
}

// Client talks to the reference server.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithAPIToken sets the bearer token sent with every request.
func WithAPIToken(token string) Option {
	return func(c *Client) { c.apiToken = token }
}

// NewClient creates a Client for the given server base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote: base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("remote: invalid base URL: %w", err)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Enrich runs the hydration pipeline server-side for one job. Network
// and server errors come back as SystemicFailureError so the scheduler's
// circuit breaker can trip on them.
func (c *Client) Enrich(ctx context.Context, job enrich.Job) (*book.Record, error) {
	req := EnrichRequest{
		BookID:         job.BookID,
		ISBN:           job.ISBN,
		GoogleVolumeID: job.GoogleVolumeID,
		OLWorkKey:      job.OLWorkKey,
		OLEditionKey:   job.OLEditionKey,
	}

	var resp EnrichResponse
	status, err := c.post(ctx, "/api/enrich", req, &resp)
	if err != nil {
		return nil, apperrors.NewSystemicFailureError(err)
	}
	if status != http.StatusOK {
		return nil, apperrors.NewSystemicFailureError(fmt.Errorf("enrich returned status %d", status))
	}
	if !resp.OK || resp.Metadata == nil {
		return nil, apperrors.NewSystemicFailureError(fmt.Errorf("enrich failed for book %s", job.BookID))
	}
	return resp.Metadata, nil
}

// Toggle flips the like for a canonical key. A duplicate-like race on
// the server comes back as a DuplicateConflictError.
func (c *Client) Toggle(ctx context.Context, key string) (bool, int, error) {
	var resp ToggleResponse
	status, err := c.post(ctx, "/api/toggle", ToggleRequest{Key: key}, &resp)
	if err != nil {
		return false, 0, fmt.Errorf("toggle request: %w", err)
	}
	switch status {
	case http.StatusOK:
		return resp.Liked, resp.Likes, nil
	case http.StatusConflict:
		return false, 0, apperrors.NewDuplicateConflictError(key)
	default:
		return false, 0, fmt.Errorf("toggle returned status %d", status)
	}
}

// Feed fetches the community feed.
func (c *Client) Feed(ctx context.Context) ([]FeedItem, error) {
	endpoint, err := c.endpoint("/api/feed")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var items []FeedItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return items, nil
}

func (c *Client) post(ctx context.Context, apiPath string, payload, out any) (int, error) {
	endpoint, err := c.endpoint(apiPath)
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) endpoint(apiPath string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, apiPath)
	return u.String(), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
}
