package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/shelfmate/internal/book"
	"github.com/lepinkainen/shelfmate/internal/catalog"
	"github.com/lepinkainen/shelfmate/internal/hydrate"
	"github.com/lepinkainen/shelfmate/internal/identity"
	"github.com/lepinkainen/shelfmate/internal/remote"
)

type stubPrimary struct{}

func (stubPrimary) VolumeByID(context.Context, string) (*book.Record, error) {
	return nil, nil
}

type stubSecondary struct {
	editions map[string]*hydrate.EditionInfo
}

func (s stubSecondary) EditionByISBN(_ context.Context, isbn string) (*hydrate.EditionInfo, error) {
	return s.editions[isbn], nil
}

func (stubSecondary) PagesByBibkey(context.Context, string) (int, error) { return 0, nil }

func (stubSecondary) CoverURL(coverID int, isbn string) string {
	if coverID > 0 {
		return identity.OpenLibraryCoverByID(coverID)
	}
	if isbn != "" {
		return identity.OpenLibraryCoverByISBN(isbn)
	}
	return ""
}

func (stubSecondary) WorkDescription(context.Context, string) (string, error) { return "", nil }

func (stubSecondary) EditionDescription(context.Context, string) (string, error) { return "", nil }

func setupServer(t *testing.T) (*httptest.Server, *catalog.Store) {
	t.Helper()

	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	secondary := stubSecondary{
		editions: map[string]*hydrate.EditionInfo{
			"9780441013593": {Pages: 412, CoverID: 12399889},
		},
	}
	pipeline := hydrate.NewPipeline(store, stubPrimary{}, secondary, hydrate.NewState())

	srv := New(":0", store, pipeline, "local")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestHealthz(t *testing.T) {
	ts, _ := setupServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEnrichEndpoint(t *testing.T) {
	ts, store := setupServer(t)

	id, err := store.Insert(context.Background(), "local", &book.Record{
		Title:  "Dune",
		ISBN13: "9780441013593",
	})
	require.NoError(t, err)

	resp := postJSON(t, ts.URL+"/api/enrich", remote.EnrichRequest{BookID: id, ISBN: "9780441013593"})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var enriched remote.EnrichResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&enriched))
	assert.True(t, enriched.OK)
	require.NotNil(t, enriched.Metadata)
	assert.Equal(t, 412, enriched.Metadata.PageCount)
	assert.NotEmpty(t, enriched.Metadata.Description)

	// The fields are persisted server-side.
	rec, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 412, rec.PageCount)
}

func TestEnrichUnknownBook(t *testing.T) {
	ts, _ := setupServer(t)

	resp := postJSON(t, ts.URL+"/api/enrich", remote.EnrichRequest{BookID: "ghost"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEnrichRejectsEmptyBookID(t *testing.T) {
	ts, _ := setupServer(t)

	resp := postJSON(t, ts.URL+"/api/enrich", remote.EnrichRequest{})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestToggleEndpoint(t *testing.T) {
	ts, _ := setupServer(t)

	resp := postJSON(t, ts.URL+"/api/toggle", remote.ToggleRequest{Key: "isbn:9780441013593"})
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var toggled remote.ToggleResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&toggled))
	assert.True(t, toggled.Liked)
	assert.Equal(t, 1, toggled.Likes)

	// Toggling again unlikes.
	resp = postJSON(t, ts.URL+"/api/toggle", remote.ToggleRequest{Key: "isbn:9780441013593"})
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&toggled))
	assert.False(t, toggled.Liked)
	assert.Equal(t, 0, toggled.Likes)
}

func TestToggleRejectsUnknownKey(t *testing.T) {
	ts, _ := setupServer(t)

	for _, key := range []string{"", identity.UnknownKey} {
		resp := postJSON(t, ts.URL+"/api/toggle", remote.ToggleRequest{Key: key})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		_ = resp.Body.Close()
	}
}

func TestFeedEndpoint(t *testing.T) {
	ts, store := setupServer(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "alice", &book.Record{Title: "Dune", ISBN13: "9780441013593"})
	require.NoError(t, err)

	// alice likes it; the requesting default user has not.
	_, _, err = store.ToggleLike(ctx, "alice", "isbn:9780441013593")
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/feed")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var items []remote.FeedItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "isbn:9780441013593", items[0].Key)
	assert.Equal(t, "https://covers.openlibrary.org/b/isbn/9780441013593-L.jpg", items[0].Record.CoverURL)
	assert.Equal(t, 1, items[0].Counters.Likes)
	assert.False(t, items[0].Counters.IsLiked)
}

func TestFeedRespectsUserHeader(t *testing.T) {
	ts, store := setupServer(t)
	ctx := context.Background()

	_, err := store.Insert(ctx, "alice", &book.Record{Title: "Dune", ISBN13: "9780441013593"})
	require.NoError(t, err)
	_, _, err = store.ToggleLike(ctx, "alice", "isbn:9780441013593")
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/feed", nil)
	require.NoError(t, err)
	req.Header.Set(userHeader, "alice")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var items []remote.FeedItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.True(t, items[0].Counters.IsLiked)
}
