package hydrate

import (
	"context"

	"github.com/lepinkainen/shelfmate/internal/book"
	"github.com/lepinkainen/shelfmate/internal/sources/googlebooks"
	"github.com/lepinkainen/shelfmate/internal/sources/openlibrary"
)

// Store is what the pipeline needs from the catalog.
type Store interface {
	Get(ctx context.Context, id string) (*book.Record, error)
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
}

// PrimarySource is the commercial bibliographic source (Google Books).
type PrimarySource interface {
	VolumeByID(ctx context.Context, volumeID string) (*book.Record, error)
}

// EditionInfo carries the identifying fields an edition lookup discovers.
type EditionInfo struct {
	Pages      int
	CoverID    int
	WorkKey    string
	EditionKey string
}

// SecondarySource is the community bibliographic source (OpenLibrary).
type SecondarySource interface {
	EditionByISBN(ctx context.Context, isbn string) (*EditionInfo, error)
	PagesByBibkey(ctx context.Context, isbn string) (int, error)
	CoverURL(coverID int, isbn string) string
	WorkDescription(ctx context.Context, workKey string) (string, error)
	EditionDescription(ctx context.Context, editionKey string) (string, error)
}

// GoogleSource adapts the Google Books client to PrimarySource.
type GoogleSource struct {
	Client *googlebooks.Client
}

func (g GoogleSource) VolumeByID(ctx context.Context, volumeID string) (*book.Record, error) {
	return g.Client.GetByID(ctx, volumeID)
}

// OpenLibrarySource adapts the OpenLibrary client to SecondarySource.
type OpenLibrarySource struct {
	Client *openlibrary.Client
}

func (o OpenLibrarySource) EditionByISBN(ctx context.Context, isbn string) (*EditionInfo, error) {
	edition, err := o.Client.GetEditionByISBN(ctx, isbn)
	if err != nil || edition == nil {
		return nil, err
	}
	return &EditionInfo{
		Pages:      edition.Pages,
		CoverID:    edition.CoverID,
		WorkKey:    edition.WorkKey,
		EditionKey: edition.EditionKey,
	}, nil
}

func (o OpenLibrarySource) PagesByBibkey(ctx context.Context, isbn string) (int, error) {
	return o.Client.GetPagesByBibkey(ctx, isbn)
}

func (o OpenLibrarySource) CoverURL(coverID int, isbn string) string {
	cover := o.Client.GetCoverURL(coverID, isbn)
	if cover == nil {
		return ""
	}
	return cover.URL
}

func (o OpenLibrarySource) WorkDescription(ctx context.Context, workKey string) (string, error) {
	return o.Client.GetWorkDescription(ctx, workKey)
}

func (o OpenLibrarySource) EditionDescription(ctx context.Context, editionKey string) (string, error) {
	return o.Client.GetEditionDescription(ctx, editionKey)
}
