// Package catalog is the local SQLite store for the user's book library.
// It owns persistence only; identity and hydration decisions live with
// their own packages.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lepinkainen/shelfmate/internal/book"
	apperrors "github.com/lepinkainen/shelfmate/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id TEXT PRIMARY KEY NOT NULL,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	authors TEXT NOT NULL DEFAULT '[]',
	isbn10 TEXT NOT NULL DEFAULT '',
	isbn13 TEXT NOT NULL DEFAULT '',
	google_volume_id TEXT NOT NULL DEFAULT '',
	ol_work_key TEXT NOT NULL DEFAULT '',
	ol_edition_key TEXT NOT NULL DEFAULT '',
	ol_cover_id INTEGER NOT NULL DEFAULT 0,
	cover_url TEXT NOT NULL DEFAULT '',
	page_count INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	hydrated_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_books_user ON books(user_id);
CREATE INDEX IF NOT EXISTS idx_books_isbn13 ON books(isbn13);

CREATE TABLE IF NOT EXISTS likes (
	user_id TEXT NOT NULL,
	canonical_key TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, canonical_key)
);

CREATE INDEX IF NOT EXISTS idx_likes_key ON likes(canonical_key);
`

// updatableColumns whitelists the columns UpdateFields may touch, so
// column names can be safely interpolated into the UPDATE statement.
var updatableColumns = map[string]bool{
	"title":            true,
	"authors":          true,
	"isbn10":           true,
	"isbn13":           true,
	"google_volume_id": true,
	"ol_work_key":      true,
	"ol_edition_key":   true,
	"ol_cover_id":      true,
	"cover_url":        true,
	"page_count":       true,
	"description":      true,
	"hydrated_at":      true,
}

// Store wraps the catalog database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to catalog database: %w", err), closeErr)
	}

	if _, err := db.Exec(schema); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to create catalog schema: %w", err), closeErr)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `id, title, authors, isbn10, isbn13, google_volume_id,
	ol_work_key, ol_edition_key, ol_cover_id, cover_url, page_count, description`

// Get loads a record by its catalog id. Returns a NotFoundError when the
// row does not exist.
func (s *Store) Get(ctx context.Context, id string) (*book.Record, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM books WHERE id = ?", selectColumns), id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load book %s: %w", id, err)
	}
	return rec, nil
}

// Insert stores a new record for the user and returns the assigned
// catalog id. The record must at minimum carry a title.
func (s *Store) Insert(ctx context.Context, userID string, rec *book.Record) (string, error) {
	if rec == nil || !rec.Usable() {
		return "", apperrors.NewValidationError("title", "record needs a non-empty title")
	}

	id := uuid.NewString()
	authors, err := json.Marshal(rec.Authors)
	if err != nil {
		return "", fmt.Errorf("failed to encode authors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO books (id, user_id, title, authors, isbn10, isbn13,
			google_volume_id, ol_work_key, ol_edition_key, ol_cover_id,
			cover_url, page_count, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, rec.Title, string(authors), rec.ISBN10, rec.ISBN13,
		rec.GoogleVolumeID, rec.OLWorkKey, rec.OLEditionKey, rec.OLCoverID,
		rec.CoverURL, rec.PageCount, rec.Description)
	if err != nil {
		return "", fmt.Errorf("failed to insert book: %w", err)
	}

	return id, nil
}

// UpdateFields writes the given columns for a record. Column names are
// validated against the whitelist; unknown columns are an error.
func (s *Store) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	assignments := make([]string, 0, len(fields))
	values := make([]any, 0, len(fields)+1)
	for col, val := range fields {
		if !updatableColumns[col] {
			return fmt.Errorf("column %s is not updatable", col)
		}
		assignments = append(assignments, col+" = ?")
		values = append(values, val)
	}
	values = append(values, id)

	query := fmt.Sprintf("UPDATE books SET %s WHERE id = ?", strings.Join(assignments, ", "))
	result, err := s.db.ExecContext(ctx, query, values...)
	if err != nil {
		return fmt.Errorf("failed to update book %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFoundError(id)
	}
	return nil
}

// ListByUser returns all of a user's records, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]book.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM books WHERE user_id = ? ORDER BY created_at DESC", selectColumns),
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []book.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// FindByUserAndIdentifiers looks for an existing membership matching any
// of the given identifier variants against the raw id, cleaned ISBNs or
// the Google volume id. Returns nil when the user has no equivalent book.
func (s *Store) FindByUserAndIdentifiers(ctx context.Context, userID string, identifiers []string) (*book.Record, error) {
	if len(identifiers) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(identifiers)), ",")
	query := fmt.Sprintf(`
		SELECT %s FROM books
		WHERE user_id = ?
		  AND (id IN (%s) OR isbn10 IN (%s) OR isbn13 IN (%s) OR google_volume_id IN (%s))
		LIMIT 1`,
		selectColumns, placeholders, placeholders, placeholders, placeholders)

	args := make([]any, 0, len(identifiers)*4+1)
	args = append(args, userID)
	for i := 0; i < 4; i++ {
		for _, ident := range identifiers {
			args = append(args, ident)
		}
	}

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match identifiers: %w", err)
	}
	return rec, nil
}

// ListRecent returns the newest records across all users, for the
// community feed.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]book.Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM books ORDER BY created_at DESC LIMIT ?", selectColumns),
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent books: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []book.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*book.Record, error) {
	var rec book.Record
	var authorsJSON string

	err := row.Scan(&rec.ID, &rec.Title, &authorsJSON, &rec.ISBN10, &rec.ISBN13,
		&rec.GoogleVolumeID, &rec.OLWorkKey, &rec.OLEditionKey, &rec.OLCoverID,
		&rec.CoverURL, &rec.PageCount, &rec.Description)
	if err != nil {
		return nil, err
	}

	if authorsJSON != "" {
		if err := json.Unmarshal([]byte(authorsJSON), &rec.Authors); err != nil {
			return nil, fmt.Errorf("failed to decode authors: %w", err)
		}
	}
	return &rec, nil
}
