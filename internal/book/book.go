// Package book defines the record type shared by the catalog store, the
// bibliographic source adapters and the reconciliation pipeline.
package book

import "strings"

// Record represents one bibliographic work/edition as known to one source
// or to the merged catalog. Only Title is required; every identifier and
// metadata field is optional and may be absent depending on which source
// produced the record.
type Record struct {
	// ID is the opaque catalog store id. Empty for transient records that
	// came straight from a source adapter.
	ID string `json:"id,omitempty"`

	Title   string   `json:"title"`
	Authors []string `json:"authors,omitempty"`

	ISBN10 string `json:"isbn10,omitempty"`
	ISBN13 string `json:"isbn13,omitempty"`

	// GoogleVolumeID is the Google Books volume id.
	GoogleVolumeID string `json:"google_volume_id,omitempty"`

	// OpenLibrary identifiers. WorkKey and EditionKey look like
	// "/works/OL123W" and "/books/OL456M"; CoverID indexes the covers API.
	OLWorkKey    string `json:"ol_work_key,omitempty"`
	OLEditionKey string `json:"ol_edition_key,omitempty"`
	OLCoverID    int    `json:"ol_cover_id,omitempty"`

	CoverURL    string `json:"cover_url,omitempty"`
	PageCount   int    `json:"page_count,omitempty"`
	Description string `json:"description,omitempty"`
}

// Usable reports whether the record carries enough data to be stored or
// matched at all. Title is the minimum.
func (r *Record) Usable() bool {
	return strings.TrimSpace(r.Title) != ""
}

// AuthorLine returns the authors joined for display, or "Unknown" when the
// record carries none.
func (r *Record) AuthorLine() string {
	if len(r.Authors) == 0 {
		return "Unknown"
	}
	return strings.Join(r.Authors, ", ")
}

// BestISBN returns the preferred ISBN for source lookups, favoring the
// 13-digit form.
func (r *Record) BestISBN() string {
	if r.ISBN13 != "" {
		return r.ISBN13
	}
	return r.ISBN10
}

// Complete reports whether all hydratable fields are already present, in
// which case the hydration pipeline has nothing to do.
func (r *Record) Complete() bool {
	return r.CoverURL != "" && r.PageCount > 0 && r.Description != ""
}
