package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/lepinkainen/shelfmate/internal/cache"
	"github.com/lepinkainen/shelfmate/internal/catalog"
	"github.com/lepinkainen/shelfmate/internal/config"
	"github.com/lepinkainen/shelfmate/internal/hydrate"
	"github.com/lepinkainen/shelfmate/internal/ratelimit"
	"github.com/lepinkainen/shelfmate/internal/remote"
	"github.com/lepinkainen/shelfmate/internal/sources/googlebooks"
	"github.com/lepinkainen/shelfmate/internal/sources/openlibrary"
)

// openCatalog opens the catalog database configured for this run.
func openCatalog() (*catalog.Store, error) {
	store, err := catalog.Open(viper.GetString("catalog.dbfile"))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return store, nil
}

// openCache opens the HTTP response cache. A broken cache is not fatal;
// the source clients fall through to direct fetches on a nil cache.
func openCache() *cache.DB {
	db, err := cache.Open(viper.GetString("cache.dbfile"))
	if err != nil {
		slog.Warn("Cache unavailable, fetching without it", "error", err)
		return nil
	}
	return db
}

// newSources builds the two bibliographic source clients sharing the
// response cache. The Google Books key is required.
func newSources(cacheDB *cache.DB) (*googlebooks.Client, *openlibrary.Client, error) {
	apiKey, err := config.RequireGoogleBooksAPIKey()
	if err != nil {
		return nil, nil, err
	}

	google, err := googlebooks.NewClient(apiKey,
		googlebooks.WithCache(cacheDB),
		googlebooks.WithRateLimiter(ratelimit.New("googlebooks", 5)),
	)
	if err != nil {
		return nil, nil, err
	}

	ol := openlibrary.NewClient(
		openlibrary.WithCache(cacheDB),
		openlibrary.WithRateLimiter(ratelimit.New("openlibrary", 3)),
	)
	return google, ol, nil
}

// newPipeline wires a hydration pipeline over the store and the real
// source clients.
func newPipeline(store *catalog.Store, state *hydrate.State, cacheDB *cache.DB) (*hydrate.Pipeline, error) {
	google, ol, err := newSources(cacheDB)
	if err != nil {
		return nil, err
	}

	return hydrate.NewPipeline(store,
		hydrate.GoogleSource{Client: google},
		hydrate.OpenLibrarySource{Client: ol},
		state,
	), nil
}

// sourceCacheTables are the response cache tables the source clients
// write through.
var sourceCacheTables = []string{"search_cache", "googlebooks_cache", "openlibrary_cache"}

// invalidateSourceCaches drops cached source responses so a forced
// hydration sees fresh data instead of replaying the cache.
func invalidateSourceCaches(cacheDB *cache.DB) {
	if cacheDB == nil {
		return
	}
	for _, table := range sourceCacheTables {
		if removed, err := cacheDB.Invalidate(table); err != nil {
			slog.Warn("Cache invalidation failed", "table", table, "error", err)
		} else if removed > 0 {
			slog.Debug("Cache invalidated", "table", table, "entries", removed)
		}
	}
}

// newRemoteClient builds the client for the configured server.
func newRemoteClient() (*remote.Client, error) {
	return remote.NewClient(viper.GetString("server.url"))
}
