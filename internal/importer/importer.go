// Package importer loads Goodreads-style CSV library exports into the
// catalog, deduplicating against the user's existing books through their
// identifier variants.
package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/lepinkainen/shelfmate/internal/book"
	"github.com/lepinkainen/shelfmate/internal/catalog"
	"github.com/lepinkainen/shelfmate/internal/csvutil"
	"github.com/lepinkainen/shelfmate/internal/identity"
)

// Summary reports what one import run did.
type Summary struct {
	Imported int
	Skipped  int
	Invalid  int
}

// Importer writes parsed rows into the catalog.
type Importer struct {
	store *catalog.Store
}

// New creates an Importer over the catalog store.
func New(store *catalog.Store) *Importer {
	return &Importer{store: store}
}

// ImportFile imports a CSV export file for the user.
func (i *Importer) ImportFile(ctx context.Context, userID, filePath string) (Summary, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return i.Import(ctx, userID, file)
}

// Import reads CSV rows from r and inserts the books the user does not
// already have. Rows that fail to parse are logged and counted, never
// fatal.
func (i *Importer) Import(ctx context.Context, userID string, r io.Reader) (Summary, error) {
	var summary Summary
	invalid, err := csvutil.Each(r, parseRow, func(rec *book.Record) error {
		existing, err := i.store.FindByUserAndIdentifiers(ctx, userID, identity.CandidateKeys(rec))
		if err != nil {
			return fmt.Errorf("failed to check for existing book: %w", err)
		}
		if existing != nil {
			slog.Debug("Book already in library", "title", rec.Title)
			summary.Skipped++
			return nil
		}

		if _, err := i.store.Insert(ctx, userID, rec); err != nil {
			slog.Warn("Could not insert book", "title", rec.Title, "error", err)
			summary.Invalid++
			return nil
		}
		summary.Imported++
		logProgress(summary.Imported)
		return nil
	}, csvutil.Options{})
	summary.Invalid += invalid
	return summary, err
}

// parseRow maps one Goodreads export row onto a record. The export has
// 24 columns; only the bibliographic ones are kept.
func parseRow(row []string) (*book.Record, error) {
	const minColumns = 24
	if len(row) < minColumns {
		return nil, fmt.Errorf("row has %d columns, want at least %d", len(row), minColumns)
	}
	if strings.TrimSpace(row[1]) == "" {
		return nil, fmt.Errorf("row has no title")
	}

	rec := &book.Record{
		Title:     strings.TrimSpace(row[1]),
		Authors:   parseAuthors(row[2], row[4]),
		ISBN10:    identity.CleanISBN(unquoteISBN(row[5])),
		ISBN13:    identity.CleanISBN(unquoteISBN(row[6])),
		PageCount: parseIntField(row[11]),
	}
	return rec, nil
}

func parseAuthors(primary, additional string) []string {
	var authors []string
	if name := strings.TrimSpace(primary); name != "" {
		authors = append(authors, name)
	}
	for _, name := range strings.Split(additional, ",") {
		if name = strings.TrimSpace(name); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

// unquoteISBN strips the ="..." wrapper Goodreads uses to keep
// spreadsheets from mangling ISBNs.
func unquoteISBN(value string) string {
	value = strings.TrimPrefix(value, "=\"")
	return strings.TrimSuffix(value, "\"")
}

func parseIntField(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func logProgress(imported int) {
	if imported == 0 || imported%10 != 0 {
		return
	}
	slog.Info("Importing books", "imported", imported)
}
