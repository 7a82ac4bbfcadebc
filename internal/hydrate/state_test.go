package hydrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStateRecentlyHydrated(t *testing.T) {
	state := NewState()
	current := time.Now()
	state.now = func() time.Time { return current }

	assert.False(t, state.RecentlyHydrated("rec-1"))

	state.MarkHydrated("rec-1")
	assert.True(t, state.RecentlyHydrated("rec-1"))
	assert.False(t, state.RecentlyHydrated("rec-2"))

	current = current.Add(RehydrateInterval - time.Minute)
	assert.True(t, state.RecentlyHydrated("rec-1"))

	current = current.Add(2 * time.Minute)
	assert.False(t, state.RecentlyHydrated("rec-1"))
}

func TestStateDescriptionTTLs(t *testing.T) {
	state := NewState()
	current := time.Now()
	state.now = func() time.Time { return current }

	_, ok := state.CachedDescription("work:ol1w")
	assert.False(t, ok)

	state.StoreDescription("work:ol1w", "A fine book.")
	value, ok := state.CachedDescription("work:ol1w")
	assert.True(t, ok)
	assert.Equal(t, "A fine book.", value)

	// Success entries outlive the failure TTL.
	current = current.Add(DescriptionFailureTTL + time.Minute)
	_, ok = state.CachedDescription("work:ol1w")
	assert.True(t, ok)

	current = current.Add(DescriptionTTL)
	_, ok = state.CachedDescription("work:ol1w")
	assert.False(t, ok)
}

func TestStateFailureEntryExpiresSooner(t *testing.T) {
	state := NewState()
	current := time.Now()
	state.now = func() time.Time { return current }

	state.StoreDescription("work:ol2w", "")

	value, ok := state.CachedDescription("work:ol2w")
	assert.True(t, ok, "a fresh failure entry suppresses retries")
	assert.Empty(t, value)

	current = current.Add(DescriptionFailureTTL + time.Minute)
	_, ok = state.CachedDescription("work:ol2w")
	assert.False(t, ok)
}
