// Package googlebooks provides the primary bibliographic source adapter,
// backed by the Google Books volumes API. An API key is mandatory; a
// missing key is a configuration error, not a condition to degrade on.
package googlebooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lepinkainen/shelfmate/internal/book"
	"github.com/lepinkainen/shelfmate/internal/cache"
	apperrors "github.com/lepinkainen/shelfmate/internal/errors"
	"github.com/lepinkainen/shelfmate/internal/identity"
	"github.com/lepinkainen/shelfmate/internal/ratelimit"
)

const (
	defaultBaseURL       = "https://www.googleapis.com/books/v1"
	defaultRatePerSecond = 2
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a Google Books API client.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  HTTPDoer
	rateLimiter *ratelimit.Limiter
	cache       *cache.DB
}

// NewClient creates a Google Books client. The API key is required.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google books API key is required")
	}

	client := &Client{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		rateLimiter: ratelimit.New("GoogleBooks", defaultRatePerSecond),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithBaseURL sets a custom base URL for the volumes API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithCache sets the response cache database.
func WithCache(db *cache.DB) Option {
	return func(client *Client) {
		client.cache = db
	}
}

// WithRateLimiter sets a custom rate limiter for the client.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		if limiter != nil {
			client.rateLimiter = limiter
		}
	}
}

// SearchByText searches volumes by free text and returns normalized
// partial records, best match first.
func (c *Client) SearchByText(ctx context.Context, query string) ([]book.Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	cacheKey := "google:search:" + strings.ToLower(strings.TrimSpace(query))
	cached, _, err := cache.GetOrFetchWithTTL(c.cache, "search_cache", cacheKey, func() (*cachedVolumes, error) {
		resp, err := c.fetchVolumes(ctx, url.Values{"q": []string{query}})
		if err != nil {
			return nil, err
		}
		return &cachedVolumes{Items: resp.Items, NotFound: resp.TotalItems == 0}, nil
	}, cache.SelectFailureTTL(func(r *cachedVolumes) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, apperrors.NewSourceLookupError("googlebooks", err)
	}

	records := make([]book.Record, 0, len(cached.Items))
	for _, item := range cached.Items {
		records = append(records, item.toRecord())
	}
	return records, nil
}

// GetByID fetches a single volume by its Google volume id. Returns
// nil, nil when the volume does not exist.
func (c *Client) GetByID(ctx context.Context, volumeID string) (*book.Record, error) {
	if volumeID == "" {
		return nil, nil
	}

	cacheKey := "volume:" + volumeID
	cached, _, err := cache.GetOrFetchWithTTL(c.cache, "googlebooks_cache", cacheKey, func() (*cachedVolume, error) {
		return c.fetchVolume(ctx, volumeID)
	}, cache.SelectFailureTTL(func(r *cachedVolume) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, apperrors.NewSourceLookupError("googlebooks", err)
	}

	if cached.NotFound || cached.Item == nil {
		return nil, nil
	}
	rec := cached.Item.toRecord()
	return &rec, nil
}

type cachedVolumes struct {
	Items    []volume `json:"items"`
	NotFound bool     `json:"not_found"`
}

type cachedVolume struct {
	Item     *volume `json:"item"`
	NotFound bool    `json:"not_found"`
}

// volumesResponse matches the volumes list API response.
type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string               `json:"title"`
	Authors             []string             `json:"authors"`
	Description         string               `json:"description"`
	PageCount           int                  `json:"pageCount"`
	IndustryIdentifiers []industryIdentifier `json:"industryIdentifiers"`
	ImageLinks          struct {
		Thumbnail      string `json:"thumbnail"`
		SmallThumbnail string `json:"smallThumbnail"`
	} `json:"imageLinks"`
}

type industryIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

func (v volume) toRecord() book.Record {
	rec := book.Record{
		Title:          v.VolumeInfo.Title,
		Authors:        v.VolumeInfo.Authors,
		GoogleVolumeID: v.ID,
		Description:    v.VolumeInfo.Description,
		PageCount:      v.VolumeInfo.PageCount,
	}

	for _, ident := range v.VolumeInfo.IndustryIdentifiers {
		switch ident.Type {
		case "ISBN_13":
			rec.ISBN13 = identity.CleanISBN(ident.Identifier)
		case "ISBN_10":
			rec.ISBN10 = identity.CleanISBN(ident.Identifier)
		}
	}

	if v.VolumeInfo.ImageLinks.Thumbnail != "" {
		rec.CoverURL = v.VolumeInfo.ImageLinks.Thumbnail
	} else if v.VolumeInfo.ImageLinks.SmallThumbnail != "" {
		rec.CoverURL = v.VolumeInfo.ImageLinks.SmallThumbnail
	}

	return rec
}

func (c *Client) fetchVolumes(ctx context.Context, params url.Values) (*volumesResponse, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("key", c.apiKey)
	reqURL := fmt.Sprintf("%s/volumes?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google books API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books API returned status %d", resp.StatusCode)
	}

	var result volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding google books response: %w", err)
	}

	return &result, nil
}

func (c *Client) fetchVolume(ctx context.Context, volumeID string) (*cachedVolume, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/volumes/%s?key=%s", c.baseURL, url.PathEscape(volumeID), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google books API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return &cachedVolume{NotFound: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books API returned status %d", resp.StatusCode)
	}

	var item volume
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return nil, fmt.Errorf("decoding google books volume: %w", err)
	}

	return &cachedVolume{Item: &item}, nil
}
