package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "github.com/lepinkainen/shelfmate/internal/errors"
)

// ToggleLike flips the like relation for a user and canonical key and
// returns the authoritative outcome. A duplicate-insert race surfaces as
// a DuplicateConflictError, which callers treat as "already liked".
func (s *Store) ToggleLike(ctx context.Context, userID, key string) (bool, int, error) {
	liked, err := s.HasLike(ctx, userID, key)
	if err != nil {
		return false, 0, err
	}

	if liked {
		if err := s.deleteLike(ctx, userID, key); err != nil {
			return false, 0, err
		}
	} else {
		if err := s.insertLike(ctx, userID, key); err != nil {
			return false, 0, err
		}
	}

	likes, err := s.CountLikes(ctx, key)
	if err != nil {
		return false, 0, err
	}
	return !liked, likes, nil
}

// HasLike reports whether the user already likes the key.
func (s *Store) HasLike(ctx context.Context, userID, key string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM likes WHERE user_id = ? AND canonical_key = ?",
		userID, key).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return count > 0, nil
}

// CountLikes returns the total likes for a canonical key across users.
func (s *Store) CountLikes(ctx context.Context, key string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM likes WHERE canonical_key = ?", key).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return count, nil
}

// FindLikedKey returns the first of the candidate keys the user has
// liked, or "" when none match. Lookup only; writes always use the
// canonical key.
func (s *Store) FindLikedKey(ctx context.Context, userID string, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(candidates)), ",")
	args := make([]any, 0, len(candidates)+1)
	args = append(args, userID)
	for _, key := range candidates {
		args = append(args, key)
	}

	var key string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT canonical_key FROM likes WHERE user_id = ? AND canonical_key IN (%s) LIMIT 1", placeholders),
		args...).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to match liked keys: %w", err)
	}
	return key, nil
}

func (s *Store) insertLike(ctx context.Context, userID, key string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO likes (user_id, canonical_key) VALUES (?, ?)", userID, key)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperrors.NewDuplicateConflictError(key)
		}
		return fmt.Errorf("failed to insert like: %w", err)
	}
	return nil
}

func (s *Store) deleteLike(ctx context.Context, userID, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM likes WHERE user_id = ? AND canonical_key = ?", userID, key)
	if err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return nil
}
