// Package identity derives the canonical dedup key for a book record and
// the candidate key variants used to match previously stored state. The
// same work must map to the same canonical key no matter which source
// produced the record, as long as the identifying fields are present.
package identity

import (
	"strings"

	"github.com/lepinkainen/shelfmate/internal/book"
)

// UnknownKey is the sentinel returned when a record carries no usable
// identifying field. Callers must never use it for dedup or social lookups.
const UnknownKey = "unknown"

// CanonicalKey derives the single dedup/social join key for a record.
// Priority order, first usable field wins:
//
//  1. cleaned ISBN-13, prefixed "isbn:"
//  2. cleaned ISBN-10, prefixed "isbn:"
//  3. normalized OpenLibrary work key, prefixed "ol:"
//  4. Google volume id, prefixed "google:"
//  5. normalized title (best effort, collision-prone for identically
//     titled works)
//
// Returns UnknownKey when nothing is usable.
func CanonicalKey(rec *book.Record) string {
	if rec == nil {
		return UnknownKey
	}

	if isbn := CleanISBN(rec.ISBN13); ValidISBN13(isbn) {
		return "isbn:" + isbn
	}
	if isbn := CleanISBN(rec.ISBN10); ValidISBN10(isbn) {
		return "isbn:" + isbn
	}
	if work := NormalizeOLKey(rec.OLWorkKey); work != "" {
		return "ol:" + work
	}
	if rec.GoogleVolumeID != "" {
		return "google:" + rec.GoogleVolumeID
	}
	if title := NormalizeTitle(rec.Title); title != "" {
		return "title:" + title
	}

	return UnknownKey
}

// CandidateKeys returns every syntactic key variant that downstream
// systems may have stored historically for this record: raw and prefixed
// ISBN forms, raw and prefixed source ids, and both OpenLibrary keys in
// raw and normalized form. The result is for lookup only; writes always
// go through CanonicalKey.
func CandidateKeys(rec *book.Record) []string {
	if rec == nil {
		return nil
	}

	var keys []string
	seen := make(map[string]bool)
	add := func(k string) {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	if isbn := CleanISBN(rec.ISBN13); ValidISBN13(isbn) {
		add(isbn)
		add("isbn:" + isbn)
		if isbn10 := ISBN13To10(isbn); isbn10 != "" {
			add(isbn10)
			add("isbn:" + isbn10)
		}
	}
	if isbn := CleanISBN(rec.ISBN10); ValidISBN10(isbn) {
		add(isbn)
		add("isbn:" + isbn)
	}
	if rec.GoogleVolumeID != "" {
		add(rec.GoogleVolumeID)
		add("google:" + rec.GoogleVolumeID)
	}
	if rec.OLWorkKey != "" {
		add(rec.OLWorkKey)
		if work := NormalizeOLKey(rec.OLWorkKey); work != "" {
			add("ol:" + work)
		}
	}
	if rec.OLEditionKey != "" {
		add(rec.OLEditionKey)
		if edition := NormalizeOLKey(rec.OLEditionKey); edition != "" {
			add("ol:" + edition)
		}
	}

	return keys
}

// NormalizeOLKey normalizes an OpenLibrary work or edition key to its bare
// lowercased identifier: "/works/OL45883W" becomes "ol45883w".
func NormalizeOLKey(key string) string {
	trimmed := strings.Trim(strings.TrimSpace(key), "/")
	if trimmed == "" {
		return ""
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	return strings.ToLower(trimmed)
}

// NormalizeTitle lowercases a title and collapses runs of whitespace.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
