package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lepinkainen/shelfmate/internal/errors"
)

func TestToggleLikeRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	liked, likes, err := store.ToggleLike(ctx, "alice", "isbn:9780441013593")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, 1, likes)

	// Another user liking the same key raises the count.
	_, likes, err = store.ToggleLike(ctx, "bob", "isbn:9780441013593")
	require.NoError(t, err)
	assert.Equal(t, 2, likes)

	// Toggling again unlikes.
	liked, likes, err = store.ToggleLike(ctx, "alice", "isbn:9780441013593")
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, 1, likes)
}

func TestInsertLikeDuplicateConflict(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.insertLike(ctx, "alice", "isbn:1"))

	err := store.insertLike(ctx, "alice", "isbn:1")
	require.Error(t, err)
	assert.True(t, apperrors.IsDuplicateConflict(err))
}

func TestHasLikeAndCount(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	has, err := store.HasLike(ctx, "alice", "isbn:1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, store.insertLike(ctx, "alice", "isbn:1"))
	require.NoError(t, store.insertLike(ctx, "bob", "isbn:1"))

	has, err = store.HasLike(ctx, "alice", "isbn:1")
	require.NoError(t, err)
	assert.True(t, has)

	count, err := store.CountLikes(ctx, "isbn:1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestFindLikedKey(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.insertLike(ctx, "alice", "isbn:9780441013593"))

	// Historical variants of the same book resolve to the stored key.
	key, err := store.FindLikedKey(ctx, "alice",
		[]string{"9780441013593", "isbn:9780441013593", "google:abc"})
	require.NoError(t, err)
	assert.Equal(t, "isbn:9780441013593", key)

	key, err = store.FindLikedKey(ctx, "bob", []string{"isbn:9780441013593"})
	require.NoError(t, err)
	assert.Empty(t, key)

	key, err = store.FindLikedKey(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Empty(t, key)
}
