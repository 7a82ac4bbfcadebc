package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/shelfmate/internal/book"
	"github.com/lepinkainen/shelfmate/internal/enrich"
	apperrors "github.com/lepinkainen/shelfmate/internal/errors"
	"github.com/lepinkainen/shelfmate/internal/social"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

func TestEnrich(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/enrich", r.URL.Path)

		var req EnrichRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "rec-1", req.BookID)
		assert.Equal(t, "9780441013593", req.ISBN)

		_ = json.NewEncoder(w).Encode(EnrichResponse{
			OK:       true,
			Metadata: &book.Record{ID: "rec-1", Title: "Dune", PageCount: 412},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	rec, err := client.Enrich(context.Background(), enrich.Job{BookID: "rec-1", ISBN: "9780441013593"})
	require.NoError(t, err)
	assert.Equal(t, 412, rec.PageCount)
}

func TestEnrichServerErrorIsSystemic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.Enrich(context.Background(), enrich.Job{BookID: "rec-1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsSystemicFailure(err))
}

func TestEnrichNetworkErrorIsSystemic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // connection refused from here on

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, err = client.Enrich(context.Background(), enrich.Job{BookID: "rec-1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsSystemicFailure(err))
}

func TestToggle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/toggle", r.URL.Path)

		var req ToggleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "isbn:9780441013593", req.Key)

		_ = json.NewEncoder(w).Encode(ToggleResponse{Liked: true, Likes: 8})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	liked, likes, err := client.Toggle(context.Background(), "isbn:9780441013593")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 8, likes)
}

func TestToggleConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	_, _, err = client.Toggle(context.Background(), "isbn:1")
	require.Error(t, err)
	assert.True(t, apperrors.IsDuplicateConflict(err))
}

func TestFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/feed", r.URL.Path)

		_ = json.NewEncoder(w).Encode([]FeedItem{
			{
				Key:      "isbn:9780441013593",
				Record:   book.Record{Title: "Dune"},
				Counters: social.CounterState{Likes: 4, Comments: 1},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL)
	require.NoError(t, err)

	items, err := client.Feed(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Dune", items[0].Record.Title)
	assert.Equal(t, 4, items[0].Counters.Likes)
}

func TestAPITokenHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode([]FeedItem{})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, WithAPIToken("sekrit"))
	require.NoError(t, err)

	_, err = client.Feed(context.Background())
	require.NoError(t, err)
}
