// Package social keeps like and comment counters consistent across every
// view showing the same book. Toggling is optimistic: the local counter
// flips immediately, then reconciles against the server-authoritative
// response, rolling back on failure. All engagement writes go through
// ToggleLike; nothing else may touch the underlying like relation.
package social

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/lepinkainen/shelfmate/internal/errors"
	"github.com/lepinkainen/shelfmate/internal/identity"
)

// DebounceInterval rejects repeat taps on the same key, guarding against
// double-taps turning into two toggles.
const DebounceInterval = 350 * time.Millisecond

// CounterState is the engagement state for one canonical key.
type CounterState struct {
	Likes    int  `json:"likes"`
	Comments int  `json:"comments"`
	IsLiked  bool `json:"isLiked"`
}

// Update is what subscribers receive whenever a key's counters change.
type Update struct {
	Key   string
	State CounterState
}

// Toggler is the server-authoritative toggle endpoint. A duplicate-like
// race must come back as a DuplicateConflictError.
type Toggler interface {
	Toggle(ctx context.Context, key string) (liked bool, likes int, err error)
}

// Synchronizer owns the per-key in-flight locks, the debounce map, the
// counter cache and the subscriber registry. One per process.
type Synchronizer struct {
	toggler Toggler

	mu          sync.Mutex
	inFlight    map[string]struct{}
	lastTap     map[string]time.Time
	counters    map[string]CounterState
	subscribers map[string]map[int]chan Update
	nextSubID   int

	now func() time.Time
}

// NewSynchronizer creates a Synchronizer around the toggle endpoint.
func NewSynchronizer(toggler Toggler) *Synchronizer {
	return &Synchronizer{
		toggler:     toggler,
		inFlight:    make(map[string]struct{}),
		lastTap:     make(map[string]time.Time),
		counters:    make(map[string]CounterState),
		subscribers: make(map[string]map[int]chan Update),
		now:         time.Now,
	}
}

// Counters returns the current state for a key. Unknown keys report the
// zero state.
func (s *Synchronizer) Counters(key string) CounterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[key]
}

// Seed installs counters fetched out of band (feed payloads, initial
// page loads) without going through a toggle.
func (s *Synchronizer) Seed(key string, state CounterState) {
	if key == "" || key == identity.UnknownKey {
		return
	}
	s.mu.Lock()
	s.counters[key] = clampState(state)
	s.mu.Unlock()
	s.broadcast(key)
}

// ToggleLike flips the like for a key. A nil result with a nil error
// means the tap was rejected (unknown key, toggle already in flight, or
// within the debounce window) and nothing happened. On any real failure
// the optimistic flip is rolled back and the error returned.
func (s *Synchronizer) ToggleLike(ctx context.Context, key string) (*CounterState, error) {
	if key == "" || key == identity.UnknownKey {
		return nil, nil
	}

	previous, accepted := s.claim(key)
	if !accepted {
		return nil, nil
	}
	defer s.release(key)

	// Optimistic flip, visible immediately.
	optimistic := previous
	optimistic.IsLiked = !previous.IsLiked
	if optimistic.IsLiked {
		optimistic.Likes++
	} else {
		optimistic.Likes--
	}
	optimistic = clampState(optimistic)
	s.store(key, optimistic)

	liked, likes, err := s.toggler.Toggle(ctx, key)
	if err != nil {
		if apperrors.IsDuplicateConflict(err) {
			// The like already exists server-side. Keep the optimistic
			// count, just make sure liked reads true.
			reconciled := optimistic
			reconciled.IsLiked = true
			s.store(key, reconciled)
			return &reconciled, nil
		}
		slog.Warn("Toggle failed, rolling back", "key", key, "error", err)
		s.store(key, previous)
		return nil, err
	}

	// The server response is the source of truth.
	reconciled := optimistic
	reconciled.IsLiked = liked
	reconciled.Likes = likes
	reconciled = clampState(reconciled)
	s.store(key, reconciled)
	return &reconciled, nil
}

// Subscribe returns a channel of counter updates for a key and a cancel
// function. Slow consumers drop updates rather than blocking the
// synchronizer.
func (s *Synchronizer) Subscribe(key string) (<-chan Update, func()) {
	ch := make(chan Update, 8)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	if s.subscribers[key] == nil {
		s.subscribers[key] = make(map[int]chan Update)
	}
	s.subscribers[key][id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if subs, ok := s.subscribers[key]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(s.subscribers, key)
			}
		}
	}
	return ch, cancel
}

// claim atomically checks the in-flight lock and the debounce window and
// records the tap when it passes. Returns the pre-tap state for
// rollback.
func (s *Synchronizer) claim(key string) (CounterState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inFlight[key]; ok {
		return CounterState{}, false
	}
	if at, ok := s.lastTap[key]; ok && s.now().Sub(at) < DebounceInterval {
		return CounterState{}, false
	}
	s.inFlight[key] = struct{}{}
	s.lastTap[key] = s.now()
	return s.counters[key], true
}

func (s *Synchronizer) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

func (s *Synchronizer) store(key string, state CounterState) {
	s.mu.Lock()
	s.counters[key] = state
	s.mu.Unlock()
	s.broadcast(key)
}

func (s *Synchronizer) broadcast(key string) {
	s.mu.Lock()
	state := s.counters[key]
	channels := make([]chan Update, 0, len(s.subscribers[key]))
	for _, ch := range s.subscribers[key] {
		channels = append(channels, ch)
	}
	s.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- Update{Key: key, State: state}:
		default:
		}
	}
}

func clampState(state CounterState) CounterState {
	if state.Likes < 0 {
		state.Likes = 0
	}
	if state.Comments < 0 {
		state.Comments = 0
	}
	return state
}
