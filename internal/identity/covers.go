package identity

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/lepinkainen/shelfmate/internal/book"
)

// PlaceholderCoverURL is served when no source can supply a cover.
const PlaceholderCoverURL = "/assets/cover-placeholder.png"

const openLibraryCoversBase = "https://covers.openlibrary.org"

// CoverResolver picks the best display cover URL for a record and
// memoizes the string transform per cleaned ISBN so repeated renders of
// the same book do no work.
type CoverResolver struct {
	mu   sync.Mutex
	memo map[string]string
}

// NewCoverResolver creates an empty CoverResolver.
func NewCoverResolver() *CoverResolver {
	return &CoverResolver{memo: make(map[string]string)}
}

// Resolve returns the display cover URL for a record. Priority: the
// record's Google thumbnail upgraded to a higher zoom, then an
// OpenLibrary cover-by-ISBN URL (ISBN-13 preferred), then the placeholder.
func (r *CoverResolver) Resolve(rec *book.Record) string {
	if rec == nil {
		return PlaceholderCoverURL
	}

	isbn := CleanISBN(rec.BestISBN())
	if isbn != "" {
		r.mu.Lock()
		cached, ok := r.memo[isbn]
		r.mu.Unlock()
		if ok {
			return cached
		}
	}

	resolved := resolveCover(rec, isbn)

	if isbn != "" {
		r.mu.Lock()
		r.memo[isbn] = resolved
		r.mu.Unlock()
	}
	return resolved
}

func resolveCover(rec *book.Record, isbn string) string {
	if rec.CoverURL != "" {
		return UpgradeGoogleThumbnail(rec.CoverURL)
	}
	if isbn != "" {
		return OpenLibraryCoverByISBN(isbn)
	}
	return PlaceholderCoverURL
}

// UpgradeGoogleThumbnail rewrites a Google Books thumbnail URL to a higher
// zoom level and strips the curled-page edge effect. Non-Google URLs pass
// through unchanged.
func UpgradeGoogleThumbnail(raw string) string {
	if !strings.Contains(raw, "books.google") {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	query := parsed.Query()
	if query.Get("zoom") != "" {
		query.Set("zoom", "2")
	}
	query.Del("edge")
	parsed.RawQuery = query.Encode()

	return parsed.String()
}

// OpenLibraryCoverByISBN builds the large-size covers API URL for an ISBN.
func OpenLibraryCoverByISBN(isbn string) string {
	return fmt.Sprintf("%s/b/isbn/%s-L.jpg", openLibraryCoversBase, isbn)
}

// OpenLibraryCoverByID builds the large-size covers API URL for a cover id.
func OpenLibraryCoverByID(coverID int) string {
	return fmt.Sprintf("%s/b/id/%d-L.jpg", openLibraryCoversBase, coverID)
}
