// Package hydrate fills the missing bibliographic fields of catalog
// records (cover, page count, description) from the configured sources in
// a fixed priority order. Hydration is idempotent and non-destructive:
// populated fields are never overwritten without force, and individual
// source failures fall through silently to the next priority.
package hydrate

import (
	"context"
	"log/slog"
	"time"

	"github.com/lepinkainen/shelfmate/internal/book"
	"github.com/lepinkainen/shelfmate/internal/identity"
)

// Options controls a single hydration run.
type Options struct {
	// Force bypasses the recently-hydrated and already-complete
	// short-circuits and allows replacing populated fields with
	// materially different values.
	Force bool
	// DryRun computes the result without persisting anything.
	DryRun bool
}

// Result is the outcome of one hydration run.
type Result struct {
	// Record is the post-hydration view of the record.
	Record book.Record
	// Updated holds the columns that were (or would be, under DryRun)
	// persisted.
	Updated map[string]any
}

// Changed reports whether any field was filled.
func (r *Result) Changed() bool {
	return len(r.Updated) > 0
}

// Pipeline runs hydration against a catalog store and the two source
// adapters.
type Pipeline struct {
	store     Store
	primary   PrimarySource
	secondary SecondarySource
	state     *State

	now func() time.Time
}

// NewPipeline creates a Pipeline. All collaborators are required; state
// carries the shared hydration markers and description cache.
func NewPipeline(store Store, primary PrimarySource, secondary SecondarySource, state *State) *Pipeline {
	return &Pipeline{
		store:     store,
		primary:   primary,
		secondary: secondary,
		state:     state,
		now:       time.Now,
	}
}

// Hydrate loads the record, fills whatever is missing and persists only
// the fields that were previously empty. A missing base record is the
// only hard failure.
func (p *Pipeline) Hydrate(ctx context.Context, id string, opts Options) (*Result, error) {
	rec, err := p.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !opts.Force && (p.state.RecentlyHydrated(id) || rec.Complete()) {
		slog.Debug("Hydration short-circuit", "id", id, "complete", rec.Complete())
		return &Result{Record: *rec}, nil
	}

	working := *rec
	updates := make(map[string]any)

	isbn := rec.BestISBN()
	edition := p.lookupEdition(ctx, isbn, &working, opts, updates)

	// The Google volume is fetched at most once, lazily: pages, cover and
	// description may all want it.
	var volume *book.Record
	volumeFetched := false
	getVolume := func() *book.Record {
		if volumeFetched {
			return volume
		}
		volumeFetched = true
		if working.GoogleVolumeID == "" {
			return nil
		}
		v, err := p.primary.VolumeByID(ctx, working.GoogleVolumeID)
		if err != nil {
			slog.Debug("Primary volume lookup failed", "id", id, "volume", working.GoogleVolumeID, "error", err)
			return nil
		}
		volume = v
		return volume
	}

	p.hydratePages(ctx, &working, rec, edition, getVolume, isbn, opts, updates)
	p.hydrateCover(&working, rec, getVolume, isbn, opts, updates)
	p.hydrateDescription(ctx, &working, rec, getVolume, opts, updates)

	if !opts.DryRun {
		updates["hydrated_at"] = p.now().UTC()
		if err := p.store.UpdateFields(ctx, id, updates); err != nil {
			return nil, err
		}
		// Mark regardless of whether any field changed, to bound how
		// often the sources are asked about the same record.
		p.state.MarkHydrated(id)
		delete(updates, "hydrated_at")
	}

	return &Result{Record: working, Updated: updates}, nil
}

// lookupEdition fetches the OpenLibrary edition when an ISBN is available
// and something still needs it, and backfills newly discovered
// identifiers into the working record.
func (p *Pipeline) lookupEdition(ctx context.Context, isbn string, working *book.Record, opts Options, updates map[string]any) *EditionInfo {
	needsAnything := opts.Force ||
		working.PageCount == 0 || working.CoverURL == "" || working.Description == "" ||
		working.OLWorkKey == "" || working.OLEditionKey == "" || working.OLCoverID == 0

	if isbn == "" || !needsAnything {
		return nil
	}

	edition, err := p.secondary.EditionByISBN(ctx, isbn)
	if err != nil {
		slog.Debug("Edition lookup failed", "isbn", isbn, "error", err)
		return nil
	}
	if edition == nil {
		return nil
	}

	if working.OLWorkKey == "" && edition.WorkKey != "" {
		working.OLWorkKey = edition.WorkKey
		updates["ol_work_key"] = edition.WorkKey
	}
	if working.OLEditionKey == "" && edition.EditionKey != "" {
		working.OLEditionKey = edition.EditionKey
		updates["ol_edition_key"] = edition.EditionKey
	}
	if working.OLCoverID == 0 && edition.CoverID > 0 {
		working.OLCoverID = edition.CoverID
		updates["ol_cover_id"] = edition.CoverID
	}

	return edition
}

// hydratePages resolves the page count: OpenLibrary edition, then the
// Google volume, then the OpenLibrary bibkeys endpoint. First positive
// integer wins.
func (p *Pipeline) hydratePages(ctx context.Context, working, original *book.Record, edition *EditionInfo, getVolume func() *book.Record, isbn string, opts Options, updates map[string]any) {
	if original.PageCount > 0 && !opts.Force {
		return
	}

	pages := 0
	if edition != nil && edition.Pages > 0 {
		pages = edition.Pages
	}
	if pages == 0 {
		if v := getVolume(); v != nil && v.PageCount > 0 {
			pages = v.PageCount
		}
	}
	if pages == 0 && isbn != "" {
		alt, err := p.secondary.PagesByBibkey(ctx, isbn)
		if err != nil {
			slog.Debug("Alternate pages lookup failed", "isbn", isbn, "error", err)
		} else {
			pages = alt
		}
	}

	if pages > 0 && acceptValue(original.PageCount == 0, opts.Force, pages != original.PageCount) {
		working.PageCount = pages
		updates["page_count"] = pages
	}
}

// hydrateCover resolves the cover URL: OpenLibrary cover by id, then by
// ISBN, then the Google thumbnail.
func (p *Pipeline) hydrateCover(working, original *book.Record, getVolume func() *book.Record, isbn string, opts Options, updates map[string]any) {
	if original.CoverURL != "" && !opts.Force {
		return
	}

	cover := ""
	if working.OLCoverID > 0 {
		cover = p.secondary.CoverURL(working.OLCoverID, "")
	}
	if cover == "" && isbn != "" {
		cover = p.secondary.CoverURL(0, isbn)
	}
	if cover == "" {
		if v := getVolume(); v != nil && v.CoverURL != "" {
			cover = identity.UpgradeGoogleThumbnail(v.CoverURL)
		}
	}

	if cover != "" && cover != identity.PlaceholderCoverURL &&
		acceptValue(original.CoverURL == "", opts.Force, cover != original.CoverURL) {
		working.CoverURL = cover
		updates["cover_url"] = cover
	}
}

// hydrateDescription resolves the description: Google volume, then the
// OpenLibrary work (cached), then the OpenLibrary edition (cached), then
// the generated fallback. Never comes back empty.
func (p *Pipeline) hydrateDescription(ctx context.Context, working, original *book.Record, getVolume func() *book.Record, opts Options, updates map[string]any) {
	if original.Description != "" && !opts.Force {
		return
	}

	desc := ""
	if v := getVolume(); v != nil && v.Description != "" {
		desc = v.Description
	}
	if desc == "" && working.OLWorkKey != "" {
		desc = p.cachedDescription("work:"+identity.NormalizeOLKey(working.OLWorkKey), func() (string, error) {
			return p.secondary.WorkDescription(ctx, working.OLWorkKey)
		})
	}
	if desc == "" && working.OLEditionKey != "" {
		desc = p.cachedDescription("edition:"+identity.NormalizeOLKey(working.OLEditionKey), func() (string, error) {
			return p.secondary.EditionDescription(ctx, working.OLEditionKey)
		})
	}
	if desc == "" {
		desc = FallbackDescription(working)
	}

	if acceptValue(original.Description == "", opts.Force, desc != original.Description) {
		working.Description = desc
		updates["description"] = desc
	}
}

// cachedDescription consults the in-process description cache before
// hitting the source. Failures are cached too, with a shorter TTL.
func (p *Pipeline) cachedDescription(key string, fetch func() (string, error)) string {
	if cached, ok := p.state.CachedDescription(key); ok {
		return cached
	}

	value, err := fetch()
	if err != nil {
		slog.Debug("Description lookup failed", "key", key, "error", err)
		value = ""
	}
	p.state.StoreDescription(key, value)
	return value
}

// acceptValue is the write rule: empty fields always take a new value;
// populated fields only under force, and only when the new value is
// materially different.
func acceptValue(wasEmpty, force, different bool) bool {
	if wasEmpty {
		return true
	}
	return force && different
}
