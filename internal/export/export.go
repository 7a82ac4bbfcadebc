// Package export writes a user's library to YAML or JSON snapshots,
// optionally downloading cover images alongside.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/lepinkainen/shelfmate/internal/book"
	"github.com/lepinkainen/shelfmate/internal/catalog"
	"github.com/lepinkainen/shelfmate/internal/fileutil"
	"github.com/lepinkainen/shelfmate/internal/identity"
)

// Entry is one exported book with its derived canonical key, so
// re-imports and external tools can join on it.
type Entry struct {
	Key  string      `json:"key" yaml:"key"`
	Book book.Record `json:"book" yaml:"book"`
}

// Options controls one export run.
type Options struct {
	// Overwrite replaces an existing snapshot file.
	Overwrite bool
	// DownloadCovers fetches each book's cover next to the snapshot.
	DownloadCovers bool
}

// Exporter reads the library from the catalog store.
type Exporter struct {
	store *catalog.Store
}

// New creates an Exporter.
func New(store *catalog.Store) *Exporter {
	return &Exporter{store: store}
}

// Export writes the user's library to filePath. The format follows the
// file extension: .yaml/.yml or .json.
func (e *Exporter) Export(ctx context.Context, userID, filePath string, opts Options) error {
	records, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, Entry{
			Key:  identity.CanonicalKey(&rec),
			Book: rec,
		})
	}

	var written bool
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		written, err = fileutil.WriteYAMLFile(entries, filePath, opts.Overwrite)
	case ".json":
		written, err = fileutil.WriteJSONFile(entries, filePath, opts.Overwrite)
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(filePath))
	}
	if err != nil {
		return err
	}
	if !written {
		slog.Info("Export skipped, file exists", "path", filePath)
		return nil
	}

	if opts.DownloadCovers {
		e.downloadCovers(records, filepath.Dir(filePath))
	}

	slog.Info("Exported library", "user", userID, "books", len(entries), "path", filePath)
	return nil
}

func (e *Exporter) downloadCovers(records []book.Record, outputDir string) {
	for _, rec := range records {
		if rec.CoverURL == "" || rec.CoverURL == identity.PlaceholderCoverURL {
			continue
		}
		_, err := fileutil.DownloadCover(fileutil.CoverDownloadOptions{
			URL:       rec.CoverURL,
			OutputDir: outputDir,
			Filename:  fileutil.BuildCoverFilename(rec.Title),
		})
		if err != nil {
			slog.Warn("Cover download failed", "title", rec.Title, "error", err)
		}
	}
}
