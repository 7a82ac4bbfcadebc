package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lepinkainen/shelfmate/internal/book"
	"github.com/lepinkainen/shelfmate/internal/catalog"
	"github.com/lepinkainen/shelfmate/internal/config"
	"github.com/lepinkainen/shelfmate/internal/enrich"
	"github.com/lepinkainen/shelfmate/internal/export"
	"github.com/lepinkainen/shelfmate/internal/hydrate"
	"github.com/lepinkainen/shelfmate/internal/identity"
	"github.com/lepinkainen/shelfmate/internal/importer"
	"github.com/lepinkainen/shelfmate/internal/server"
	"github.com/lepinkainen/shelfmate/internal/social"
	"github.com/lepinkainen/shelfmate/internal/tui"
)

// ImportCmd represents the import command
type ImportCmd struct {
	Input string `short:"f" help:"Path to the CSV library export" required:""`
}

func (c *ImportCmd) Run() error {
	ctx := context.Background()
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	summary, err := importer.New(store).ImportFile(ctx, config.UserID, c.Input)
	if err != nil {
		return err
	}

	slog.Info("Import finished",
		"imported", summary.Imported,
		"skipped", summary.Skipped,
		"invalid", summary.Invalid)

	if summary.Imported == 0 {
		return nil
	}
	return enrichLibrary(ctx, store)
}

// enrichLibrary runs one scheduler pass over the user's library against
// the configured server. Shared by import and enrich.
func enrichLibrary(ctx context.Context, store *catalog.Store) error {
	records, err := store.ListByUser(ctx, config.UserID)
	if err != nil {
		return err
	}

	client, err := newRemoteClient()
	if err != nil {
		return err
	}

	batch := make([]*book.Record, len(records))
	for i := range records {
		batch[i] = &records[i]
	}

	scheduler := enrich.NewScheduler(client, enrich.WithDisabled(config.Debug))
	summary := scheduler.Scan(ctx, batch)
	slog.Info("Enrichment finished",
		"queued", summary.Queued,
		"enriched", summary.Enriched,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	return nil
}

// AddCmd represents the add command
type AddCmd struct {
	Query         []string `arg:"" help:"Search terms"`
	NoInteractive bool     `help:"Pick the first search result instead of showing the selection UI"`
}

func (c *AddCmd) Run() error {
	// Interrupt cancels any in-flight source search instead of leaving
	// the HTTP requests to run out their timeouts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	query := strings.Join(c.Query, " ")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	google, ol, err := newSources(openCache())
	if err != nil {
		return err
	}

	var results []book.Record
	if googleResults, err := google.SearchByText(ctx, query); err != nil {
		slog.Warn("Google Books search failed", "error", err)
	} else {
		results = append(results, googleResults...)
	}
	if olResults, err := ol.SearchByText(ctx, query, 1); err != nil {
		slog.Warn("OpenLibrary search failed", "error", err)
	} else {
		results = append(results, olResults...)
	}
	if len(results) == 0 {
		return fmt.Errorf("no results for %q", query)
	}

	selected, err := c.pick(query, results)
	if err != nil || selected == nil {
		return err
	}

	existing, err := store.FindByUserAndIdentifiers(ctx, config.UserID, identity.CandidateKeys(selected))
	if err != nil {
		return err
	}
	if existing != nil {
		slog.Info("Already in library", "title", existing.Title, "id", existing.ID)
		return nil
	}

	id, err := store.Insert(ctx, config.UserID, selected)
	if err != nil {
		return err
	}
	slog.Info("Added to library", "title", selected.Title, "id", id)

	pipeline := hydrate.NewPipeline(store,
		hydrate.GoogleSource{Client: google},
		hydrate.OpenLibrarySource{Client: ol},
		hydrate.NewState(),
	)
	if _, err := pipeline.Hydrate(ctx, id, hydrate.Options{}); err != nil {
		slog.Warn("Initial hydration failed", "id", id, "error", err)
	}
	return nil
}

func (c *AddCmd) pick(query string, results []book.Record) (*book.Record, error) {
	if c.NoInteractive {
		return &results[0], nil
	}

	selection, err := tui.Select(query, results)
	if err != nil {
		return nil, err
	}
	switch selection.Action {
	case tui.ActionSelected:
		return selection.Selection, nil
	case tui.ActionSkipped, tui.ActionStopped, tui.ActionNone:
		slog.Info("Nothing selected")
	}
	return nil, nil
}

// HydrateCmd represents the hydrate command
type HydrateCmd struct {
	ID     string `arg:"" optional:"" help:"Catalog id of the book to hydrate (omit with --all)"`
	All    bool   `help:"Hydrate every book in the library"`
	Force  bool   `help:"Re-fetch even for complete or recently hydrated books"`
	DryRun bool   `help:"Show what would change without persisting"`
}

func (c *HydrateCmd) Run() error {
	if c.ID == "" && !c.All {
		return fmt.Errorf("provide a book id or --all")
	}

	ctx := context.Background()
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cacheDB := openCache()
	if c.Force && !c.DryRun {
		invalidateSourceCaches(cacheDB)
	}

	pipeline, err := newPipeline(store, hydrate.NewState(), cacheDB)
	if err != nil {
		return err
	}
	opts := hydrate.Options{Force: c.Force, DryRun: c.DryRun}

	if c.ID != "" {
		result, err := pipeline.Hydrate(ctx, c.ID, opts)
		if err != nil {
			return err
		}
		slog.Info("Hydrated", "id", c.ID, "title", result.Record.Title, "changed", result.Changed())
		return nil
	}

	records, err := store.ListByUser(ctx, config.UserID)
	if err != nil {
		return err
	}

	changed := 0
	for _, rec := range records {
		result, err := pipeline.Hydrate(ctx, rec.ID, opts)
		if err != nil {
			slog.Warn("Hydration failed", "id", rec.ID, "title", rec.Title, "error", err)
			continue
		}
		if result.Changed() {
			changed++
		}
	}
	slog.Info("Hydration finished", "books", len(records), "changed", changed)
	return nil
}

// EnrichCmd represents the enrich command
type EnrichCmd struct{}

func (c *EnrichCmd) Run() error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return enrichLibrary(context.Background(), store)
}

// LikeCmd represents the like command
type LikeCmd struct {
	Target string `arg:"" help:"Catalog id or canonical key of the book"`
}

func (c *LikeCmd) Run() error {
	ctx := context.Background()
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	key := c.Target
	if rec, err := store.Get(ctx, c.Target); err == nil {
		key = identity.CanonicalKey(rec)
	}
	if key == identity.UnknownKey {
		return fmt.Errorf("book has no usable identifier to like by")
	}

	client, err := newRemoteClient()
	if err != nil {
		return err
	}

	result, err := social.NewSynchronizer(client).ToggleLike(ctx, key)
	if err != nil {
		return err
	}
	if result == nil {
		slog.Info("Toggle rejected", "key", key)
		return nil
	}

	slog.Info("Like toggled", "key", key, "liked", result.IsLiked, "likes", result.Likes)
	return nil
}

// FeedCmd represents the feed command
type FeedCmd struct{}

func (c *FeedCmd) Run() error {
	client, err := newRemoteClient()
	if err != nil {
		return err
	}

	items, err := client.Feed(context.Background())
	if err != nil {
		return err
	}

	// Seed the synchronizer so the rendered counts come from the same
	// state the toggle path reconciles against.
	counters := social.NewSynchronizer(client)
	for _, item := range items {
		counters.Seed(item.Key, item.Counters)
	}

	for _, item := range items {
		state := counters.Counters(item.Key)
		liked := " "
		if state.IsLiked {
			liked = "*"
		}
		fmt.Printf("%s %-40s %-24s %3d likes %3d comments\n",
			liked, item.Record.Title, item.Record.AuthorLine(),
			state.Likes, state.Comments)
	}
	return nil
}

// ExportCmd represents the export command
type ExportCmd struct {
	Output    string `short:"o" help:"Path to the snapshot file (.yaml, .yml or .json)" default:"./library.yaml"`
	Covers    bool   `help:"Download cover images next to the snapshot"`
	Overwrite bool   `help:"Replace an existing snapshot file"`
}

func (c *ExportCmd) Run() error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return export.New(store).Export(context.Background(), config.UserID, c.Output, export.Options{
		Overwrite:      c.Overwrite,
		DownloadCovers: c.Covers,
	})
}

// ServeCmd represents the serve command
type ServeCmd struct {
	Addr string `help:"Listen address" default:":8372"`
}

func (c *ServeCmd) Run() error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	pipeline, err := newPipeline(store, hydrate.NewState(), openCache())
	if err != nil {
		return err
	}

	srv := server.New(c.Addr, store, pipeline, config.UserID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
