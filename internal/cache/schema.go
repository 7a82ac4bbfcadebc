package cache

// SQL schemas for the response cache tables. All tables share the same
// shape: cache_key primary key, JSON payload, the TTL the entry was
// stored with, and the storage timestamp.

// GoogleBooksSchema holds Google Books volume lookups.
const GoogleBooksSchema = `
CREATE TABLE IF NOT EXISTS googlebooks_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	ttl_seconds INTEGER NOT NULL DEFAULT 86400,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_googlebooks_cached_at ON googlebooks_cache(cached_at);
`

// OpenLibrarySchema holds OpenLibrary edition/work lookups.
const OpenLibrarySchema = `
CREATE TABLE IF NOT EXISTS openlibrary_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	ttl_seconds INTEGER NOT NULL DEFAULT 86400,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_openlibrary_cached_at ON openlibrary_cache(cached_at);
`

// SearchSchema holds free-text search results from either source.
const SearchSchema = `
CREATE TABLE IF NOT EXISTS search_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	ttl_seconds INTEGER NOT NULL DEFAULT 86400,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_search_cached_at ON search_cache(cached_at);
`

var allSchemas = []string{
	GoogleBooksSchema,
	OpenLibrarySchema,
	SearchSchema,
}

// validTableNames is the whitelist of allowed cache table names, used to
// prevent SQL injection when interpolating table names.
var validTableNames = map[string]bool{
	"googlebooks_cache": true,
	"openlibrary_cache": true,
	"search_cache":      true,
}

// RegisterTestTable adds a table name to the whitelist. Tests use this to
// exercise the cache with their own schema.
func RegisterTestTable(name string) func() {
	validTableNames[name] = true
	return func() { delete(validTableNames, name) }
}
