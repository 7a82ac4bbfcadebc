package hydrate

import (
	"sync"
	"time"
)

const (
	// RehydrateInterval bounds how often a record is re-hydrated without
	// force.
	RehydrateInterval = 24 * time.Hour
	// DescriptionTTL is how long a successfully fetched description stays
	// cached.
	DescriptionTTL = 24 * time.Hour
	// DescriptionFailureTTL is the shorter TTL for failed description
	// lookups, so transient source errors retry sooner.
	DescriptionFailureTTL = time.Hour
)

// State holds the pipeline's process-wide mutable bookkeeping: the
// recently-hydrated markers and the description cache. One State is
// created at startup and injected into every Pipeline instance; there
// are no package-level globals.
type State struct {
	mu           sync.Mutex
	hydratedAt   map[string]time.Time
	descriptions map[string]descriptionEntry

	now func() time.Time
}

type descriptionEntry struct {
	value   string
	expires time.Time
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		hydratedAt:   make(map[string]time.Time),
		descriptions: make(map[string]descriptionEntry),
		now:          time.Now,
	}
}

// RecentlyHydrated reports whether the record was hydrated within
// RehydrateInterval.
func (s *State) RecentlyHydrated(recordID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.hydratedAt[recordID]
	return ok && s.now().Sub(at) < RehydrateInterval
}

// MarkHydrated stamps the record's in-process hydration marker.
func (s *State) MarkHydrated(recordID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydratedAt[recordID] = s.now()
}

// CachedDescription returns the cached description for a key. The second
// return reports whether a live entry exists; a cached "" means the
// lookup failed recently and should not be retried yet.
func (s *State) CachedDescription(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.descriptions[key]
	if !ok || s.now().After(entry.expires) {
		return "", false
	}
	return entry.value, true
}

// StoreDescription caches a description lookup result. Empty values are
// kept with the shorter failure TTL so the next attempt comes sooner.
func (s *State) StoreDescription(key, value string) {
	ttl := DescriptionTTL
	if value == "" {
		ttl = DescriptionFailureTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptions[key] = descriptionEntry{
		value:   value,
		expires: s.now().Add(ttl),
	}
}
