// Package cache provides a SQLite-backed response cache for bibliographic
// source lookups, with per-entry TTLs and negative caching for not-found
// results. A DB is created once at process start and passed to whoever
// needs it; there is no global instance.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	// DefaultTTL is the time-to-live for successful lookups (24h).
	DefaultTTL = 24 * time.Hour
	// FailureTTL is the shorter TTL for not-found and failed lookups,
	// so transient source errors retry sooner without hammering anyone.
	FailureTTL = time.Hour
)

// FetchFunc fetches data from an external source on cache miss.
type FetchFunc[T any] func() (T, error)

// DB manages the SQLite connection backing the response cache.
type DB struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// Open opens (or creates) the cache database at path and initializes all
// cache tables.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to cache database: %w", err), closeErr)
	}

	c := &DB{db: db, path: path}
	for _, schema := range allSchemas {
		if err := c.createTable(schema); err != nil {
			closeErr := db.Close()
			return nil, errors.Join(err, closeErr)
		}
	}
	return c, nil
}

func (c *DB) createTable(schema string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (c *DB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get retrieves a cached value from the specified table. Returns the raw
// JSON, whether a fresh entry was found, and any error. An entry older
// than the TTL it was stored with is a miss.
func (c *DB) Get(tableName, key string) (string, bool, error) {
	if err := validateTableName(tableName); err != nil {
		return "", false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	query := fmt.Sprintf(`SELECT data, ttl_seconds, cached_at FROM %s WHERE cache_key = ?`, tableName)

	var data string
	var ttlSeconds int64
	var cachedAt time.Time
	err := c.db.QueryRow(query, key).Scan(&data, &ttlSeconds, &cachedAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query cache: %w", err)
	}

	age := time.Now().UTC().Sub(cachedAt)
	if age > time.Duration(ttlSeconds)*time.Second {
		slog.Debug("Cache expired", "table", tableName, "key", key, "age", age)
		return "", false, nil
	}

	return data, true, nil
}

// Set stores a value in the cache with the given TTL recorded alongside
// it, replacing any previous entry for the key.
func (c *DB) Set(tableName, key, data string, ttl time.Duration) error {
	if err := validateTableName(tableName); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (cache_key, data, ttl_seconds, cached_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`, tableName)

	if _, err := c.db.Exec(query, key, data, int64(ttl.Seconds())); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Invalidate deletes all entries from the specified cache table and
// returns the number of rows removed.
func (c *DB) Invalidate(tableName string) (int64, error) {
	if err := validateTableName(tableName); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result, err := c.db.Exec(fmt.Sprintf("DELETE FROM %s", tableName))
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	slog.Debug("Cache table cleared", "table", tableName, "rows_deleted", rows)
	return rows, nil
}

// validateTableName checks the table name against the whitelist so table
// names can be safely interpolated into queries.
func validateTableName(tableName string) error {
	if !validTableNames[tableName] {
		return fmt.Errorf("invalid cache table name: %s", tableName)
	}
	return nil
}

// GetOrFetch retrieves data from the cache or fetches it with fetchFunc,
// caching the result with DefaultTTL. Returns the value, whether it came
// from cache, and any fetch error. Cache write failures are logged, never
// raised.
func GetOrFetch[T any](db *DB, tableName, cacheKey string, fetchFunc FetchFunc[T]) (T, bool, error) {
	return GetOrFetchWithTTL(db, tableName, cacheKey, fetchFunc, nil)
}

// GetOrFetchWithTTL is GetOrFetch with a per-result TTL: after a fetch,
// ttlSelector picks how long the value stays fresh. Use this for negative
// caching where not-found responses should expire sooner.
func GetOrFetchWithTTL[T any](db *DB, tableName, cacheKey string, fetchFunc FetchFunc[T], ttlSelector func(T) time.Duration) (T, bool, error) {
	var zero T

	if db == nil {
		data, err := fetchFunc()
		return data, false, err
	}

	cached, fromCache, err := db.Get(tableName, cacheKey)
	if err == nil && fromCache {
		var result T
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			slog.Debug("Cache hit", "table", tableName, "key", cacheKey)
			return result, true, nil
		}
		slog.Warn("Failed to unmarshal cached data, will refetch", "table", tableName, "key", cacheKey, "error", err)
	}

	slog.Debug("Cache miss, fetching data", "table", tableName, "key", cacheKey)
	data, err := fetchFunc()
	if err != nil {
		return zero, false, fmt.Errorf("failed to fetch data: %w", err)
	}

	ttl := DefaultTTL
	if ttlSelector != nil {
		ttl = ttlSelector(data)
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		slog.Warn("Failed to marshal data for caching", "table", tableName, "key", cacheKey, "error", err)
		return data, false, nil
	}
	if err := db.Set(tableName, cacheKey, string(jsonData), ttl); err != nil {
		slog.Warn("Failed to cache data", "table", tableName, "key", cacheKey, "error", err)
	}

	return data, false, nil
}

// SelectFailureTTL returns a TTL selector that caches not-found results
// with FailureTTL and everything else with DefaultTTL.
func SelectFailureTTL[T any](isNotFound func(T) bool) func(T) time.Duration {
	return func(result T) time.Duration {
		if isNotFound(result) {
			return FailureTTL
		}
		return DefaultTTL
	}
}
