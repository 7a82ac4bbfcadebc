// Package openlibrary provides the secondary bibliographic source adapter,
// backed by the OpenLibrary editions, works, search and covers APIs.
package openlibrary

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
	defaultBaseURL       = "https://openlibrary.org"
	defaultRatePerSecond = 1
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Edition holds the identifying and sizing fields the hydration pipeline
// wants from an edition lookup.
type Edition struct {
	Pages      int    `json:"pages,omitempty"`
	CoverID    int    `json:"cover_id,omitempty"`
	WorkKey    string `json:"work_key,omitempty"`
	EditionKey string `json:"edition_key,omitempty"`
}

// Cover is a resolved cover URL plus the source that produced it.
type Cover struct {
	URL       string
	SourceTag string
}

// Client is an OpenLibrary API client.
type Client struct {
	baseURL     string
	httpClient  HTTPDoer
	rateLimiter *ratelimit.Limiter
	cache       *cache.DB
}

// NewClient creates an OpenLibrary client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		rateLimiter: ratelimit.New("OpenLibrary", defaultRatePerSecond),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
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

// WithBaseURL sets a custom base URL for the OpenLibrary API.
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

// SearchByText searches OpenLibrary by free text and returns normalized
// partial records for the given result page (1-based).
func (c *Client) SearchByText(ctx context.Context, query string, page int) ([]book.Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if page < 1 {
		page = 1
	}

	cacheKey := fmt.Sprintf("ol:search:%s:%d", strings.ToLower(strings.TrimSpace(query)), page)
	cached, _, err := cache.GetOrFetchWithTTL(c.cache, "search_cache", cacheKey, func() (*searchResponse, error) {
		return c.fetchSearch(ctx, query, page)
	}, cache.SelectFailureTTL(func(r *searchResponse) bool {
		return r.NumFound == 0
	}))
	if err != nil {
		return nil, apperrors.NewSourceLookupError("openlibrary", err)
	}

	records := make([]book.Record, 0, len(cached.Docs))
	for _, doc := range cached.Docs {
		records = append(records, doc.toRecord())
	}
	return records, nil
}

// GetEditionByISBN looks up an edition by ISBN and returns page count,
// cover id and the work/edition keys it references. Returns nil, nil when
// OpenLibrary has no edition for the ISBN.
func (c *Client) GetEditionByISBN(ctx context.Context, isbn string) (*Edition, error) {
	cleaned := identity.CleanISBN(isbn)
	if cleaned == "" {
		return nil, nil
	}

	cacheKey := "edition:" + cleaned
	cached, _, err := cache.GetOrFetchWithTTL(c.cache, "openlibrary_cache", cacheKey, func() (*cachedEdition, error) {
		return c.fetchEdition(ctx, cleaned)
	}, cache.SelectFailureTTL(func(r *cachedEdition) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, apperrors.NewSourceLookupError("openlibrary", err)
	}

	if cached.NotFound {
		return nil, nil
	}
	return cached.Edition, nil
}

// GetPagesByBibkey fetches a page count through the bibkeys data API, the
// fallback pages source when the edition endpoint has none.
func (c *Client) GetPagesByBibkey(ctx context.Context, isbn string) (int, error) {
	cleaned := identity.CleanISBN(isbn)
	if cleaned == "" {
		return 0, nil
	}

	cacheKey := "bibkey:" + cleaned
	cached, _, err := cache.GetOrFetchWithTTL(c.cache, "openlibrary_cache", cacheKey, func() (*cachedPages, error) {
		return c.fetchBibkeyPages(ctx, cleaned)
	}, cache.SelectFailureTTL(func(r *cachedPages) bool {
		return r.Pages == 0
	}))
	if err != nil {
		return 0, apperrors.NewSourceLookupError("openlibrary", err)
	}
	return cached.Pages, nil
}

// GetCoverURL resolves a cover URL, preferring a known cover id over an
// ISBN lookup. Pure string construction, no network.
func (c *Client) GetCoverURL(coverID int, isbn string) *Cover {
	if coverID > 0 {
		return &Cover{URL: identity.OpenLibraryCoverByID(coverID), SourceTag: "openlibrary-id"}
	}
	if cleaned := identity.CleanISBN(isbn); cleaned != "" {
		return &Cover{URL: identity.OpenLibraryCoverByISBN(cleaned), SourceTag: "openlibrary-isbn"}
	}
	return nil
}

// GetWorkDescription fetches the work-level description. Returns "" when
// the work has none.
func (c *Client) GetWorkDescription(ctx context.Context, workKey string) (string, error) {
	desc, err := c.fetchDescription(ctx, workKeyPath(workKey))
	if err != nil {
		return "", apperrors.NewSourceLookupError("openlibrary", err)
	}
	return desc, nil
}

// GetEditionDescription fetches the edition-level description. Returns ""
// when the edition has none.
func (c *Client) GetEditionDescription(ctx context.Context, editionKey string) (string, error) {
	desc, err := c.fetchDescription(ctx, editionKeyPath(editionKey))
	if err != nil {
		return "", apperrors.NewSourceLookupError("openlibrary", err)
	}
	return desc, nil
}

func workKeyPath(key string) string {
	normalized := identity.NormalizeOLKey(key)
	if normalized == "" {
		return ""
	}
	return "/works/" + strings.ToUpper(normalized)
}

func editionKeyPath(key string) string {
	normalized := identity.NormalizeOLKey(key)
	if normalized == "" {
		return ""
	}
	return "/books/" + strings.ToUpper(normalized)
}

type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	AuthorNames []string `json:"author_name"`
	ISBNs       []string `json:"isbn"`
	CoverID     int      `json:"cover_i"`
	EditionKeys []string `json:"edition_key"`
	Pages       int      `json:"number_of_pages_median"`
}

func (d searchDoc) toRecord() book.Record {
	rec := book.Record{
		Title:     d.Title,
		Authors:   d.AuthorNames,
		OLWorkKey: d.Key,
		OLCoverID: d.CoverID,
		PageCount: d.Pages,
	}

	for _, isbn := range d.ISBNs {
		cleaned := identity.CleanISBN(isbn)
		switch {
		case rec.ISBN13 == "" && identity.ValidISBN13(cleaned):
			rec.ISBN13 = cleaned
		case rec.ISBN10 == "" && identity.ValidISBN10(cleaned):
			rec.ISBN10 = cleaned
		}
	}

	if len(d.EditionKeys) > 0 {
		rec.OLEditionKey = "/books/" + d.EditionKeys[0]
	}
	if d.CoverID > 0 {
		rec.CoverURL = identity.OpenLibraryCoverByID(d.CoverID)
	}

	return rec
}

type cachedEdition struct {
	Edition  *Edition `json:"edition"`
	NotFound bool     `json:"not_found"`
}

type cachedPages struct {
	Pages int `json:"pages"`
}

// editionResponse matches /isbn/{isbn}.json.
type editionResponse struct {
	Key           string `json:"key"`
	NumberOfPages int    `json:"number_of_pages"`
	Covers        []int  `json:"covers"`
	Works         []struct {
		Key string `json:"key"`
	} `json:"works"`
}

func (c *Client) fetchSearch(ctx context.Context, query string, page int) (*searchResponse, error) {
	params := url.Values{
		"q":    []string{query},
		"page": []string{fmt.Sprintf("%d", page)},
	}

	var result searchResponse
	if err := c.getJSON(ctx, "/search.json?"+params.Encode(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) fetchEdition(ctx context.Context, isbn string) (*cachedEdition, error) {
	var result editionResponse
	err := c.getJSON(ctx, "/isbn/"+isbn+".json", &result)
	if err != nil {
		if isNotFound(err) {
			return &cachedEdition{NotFound: true}, nil
		}
		return nil, err
	}

	edition := &Edition{
		Pages:      result.NumberOfPages,
		EditionKey: result.Key,
	}
	if len(result.Covers) > 0 {
		edition.CoverID = result.Covers[0]
	}
	if len(result.Works) > 0 {
		edition.WorkKey = result.Works[0].Key
	}

	return &cachedEdition{Edition: edition}, nil
}

func (c *Client) fetchBibkeyPages(ctx context.Context, isbn string) (*cachedPages, error) {
	path := fmt.Sprintf("/api/books?bibkeys=ISBN:%s&format=json&jscmd=data", isbn)

	var result map[string]struct {
		NumberOfPages int `json:"number_of_pages"`
	}
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}

	entry, ok := result["ISBN:"+isbn]
	if !ok {
		return &cachedPages{}, nil
	}
	return &cachedPages{Pages: entry.NumberOfPages}, nil
}

// descriptionPayload handles the two shapes OpenLibrary uses for
// descriptions: a bare string or {"type": ..., "value": ...}.
type descriptionPayload struct {
	Description any `json:"description"`
}

func (c *Client) fetchDescription(ctx context.Context, path string) (string, error) {
	if path == "" {
		return "", nil
	}

	var result descriptionPayload
	err := c.getJSON(ctx, path+".json", &result)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}

	return extractDescription(result.Description), nil
}

func extractDescription(desc any) string {
	switch v := desc.(type) {
	case string:
		return v
	case map[string]any:
		if value, ok := v["value"].(string); ok {
			return value
		}
	}
	return ""
}

// statusError marks an HTTP error status so not-found responses can be
// distinguished from transport failures.
type statusError struct {
	code int
	path string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("openlibrary %s returned status %d", e.path, e.code)
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusNotFound
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openlibrary API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, path: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding openlibrary response: %w", err)
	}

	return nil
}
