package googlebooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lepinkainen/shelfmate/internal/errors"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)

	client, err := NewClient("test-key")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("test-key",
		WithBaseURL(server.URL),
		WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return client
}

func TestSearchByText(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dune herbert", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{
			"totalItems": 1,
			"items": [{
				"id": "B1hSG45JCX4C",
				"volumeInfo": {
					"title": "Dune",
					"authors": ["Frank Herbert"],
					"pageCount": 412,
					"description": "A desert planet.",
					"industryIdentifiers": [
						{"type": "ISBN_13", "identifier": "978-0-441-01359-3"},
						{"type": "ISBN_10", "identifier": "0441013597"}
					],
					"imageLinks": {"thumbnail": "https://books.google.com/books/content?id=B1hSG45JCX4C&zoom=1"}
				}
			}]
		}`))
	})

	client := newTestClient(t, mux)

	records, err := client.SearchByText(context.Background(), "dune herbert")
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Dune", rec.Title)
	assert.Equal(t, []string{"Frank Herbert"}, rec.Authors)
	assert.Equal(t, "B1hSG45JCX4C", rec.GoogleVolumeID)
	assert.Equal(t, "9780441013593", rec.ISBN13)
	assert.Equal(t, "0441013597", rec.ISBN10)
	assert.Equal(t, 412, rec.PageCount)
	assert.Contains(t, rec.CoverURL, "books.google.com")
}

func TestSearchByTextEmptyQuery(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	records, err := client.SearchByText(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, records)
}

func TestGetByID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/B1hSG45JCX4C", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id": "B1hSG45JCX4C",
			"volumeInfo": {"title": "Dune", "pageCount": 412}
		}`))
	})

	client := newTestClient(t, mux)

	rec, err := client.GetByID(context.Background(), "B1hSG45JCX4C")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Dune", rec.Title)
	assert.Equal(t, 412, rec.PageCount)
}

func TestGetByIDNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	client := newTestClient(t, mux)

	rec, err := client.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetByIDServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	})

	client := newTestClient(t, mux)

	_, err := client.GetByID(context.Background(), "boom")
	require.Error(t, err)
	assert.True(t, apperrors.IsSourceLookup(err))
}

func TestSearchCancelledContext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalItems":0}`))
	})

	client := newTestClient(t, mux)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SearchByText(ctx, "dune")
	require.Error(t, err)
}
