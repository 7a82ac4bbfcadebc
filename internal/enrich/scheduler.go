// Package enrich scans loaded records for missing or poor metadata and
// runs background enrichment over a bounded worker pool. It is
// best-effort: individual failures are logged, never surfaced, and a
// failing dependency trips a process-wide circuit breaker instead of
// being retried in a loop.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lepinkainen/shelfmate/internal/book"
	apperrors "github.com/lepinkainen/shelfmate/internal/errors"
)

const (
	// Workers bounds how many enrichment calls run at once.
	Workers = 3
	// Cooldown is the per-record minimum interval between enrichment
	// attempts. A record rescanned within it is skipped, not queued.
	Cooldown = 60 * time.Second
	// BreakerCooldown is how long enrichment stays disabled process-wide
	// after any enrichment call fails.
	BreakerCooldown = 120 * time.Second
)

// Job is one unit of enrichment work, re-derived on every scan and never
// persisted.
type Job struct {
	BookID         string
	ISBN           string
	GoogleVolumeID string
	OLWorkKey      string
	OLEditionKey   string
}

// Enricher runs the actual hydration for one job, typically through the
// remote enrichment endpoint.
type Enricher interface {
	Enrich(ctx context.Context, job Job) (*book.Record, error)
}

// ApplyFunc receives the enriched record on success, so callers can
// update whatever view state they hold.
type ApplyFunc func(rec *book.Record)

// Summary reports what one scan did.
type Summary struct {
	Queued   int
	Enriched int
	Skipped  int
	Failed   int
}

// Scheduler owns the in-flight set, the per-record cooldown map and the
// circuit breaker. One Scheduler per process; all state is internal, no
// package-level globals.
type Scheduler struct {
	enricher Enricher
	policy   DescriptionPolicy
	apply    ApplyFunc
	disabled bool

	sem *semaphore.Weighted

	mu           sync.Mutex
	inFlight     map[string]struct{}
	lastEnriched map[string]time.Time
	breakerUntil time.Time

	now func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDescriptionPolicy replaces the stock poor-description policy.
func WithDescriptionPolicy(policy DescriptionPolicy) Option {
	return func(s *Scheduler) { s.policy = policy }
}

// WithApply sets the callback invoked with each successfully enriched
// record.
func WithApply(apply ApplyFunc) Option {
	return func(s *Scheduler) { s.apply = apply }
}

// WithDisabled switches background enrichment off entirely. Used in
// debug builds to keep iteration quiet.
func WithDisabled(disabled bool) Option {
	return func(s *Scheduler) { s.disabled = disabled }
}

// NewScheduler creates a Scheduler around the given enricher.
func NewScheduler(enricher Enricher, opts ...Option) *Scheduler {
	s := &Scheduler{
		enricher:     enricher,
		policy:       DefaultDescriptionPolicy(),
		sem:          semaphore.NewWeighted(Workers),
		inFlight:     make(map[string]struct{}),
		lastEnriched: make(map[string]time.Time),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan filters the records through the quality policy, queues the ones
// that need work and blocks until the batch drains. Safe to call from a
// background goroutine after any bulk load.
func (s *Scheduler) Scan(ctx context.Context, records []*book.Record) Summary {
	var summary Summary
	if s.disabled {
		return summary
	}

	// Workers update the summary through count() while this loop is
	// still claiming, so every increment here goes through it too.
	var wg sync.WaitGroup
	for _, rec := range records {
		if !s.policy.NeedsEnrichment(rec) {
			continue
		}
		if rec.ID == "" {
			slog.Debug("Skipping unsaved record", "title", rec.Title)
			s.count(&summary.Skipped)
			continue
		}
		if !s.claim(rec.ID) {
			s.count(&summary.Skipped)
			continue
		}
		s.count(&summary.Queued)

		job := Job{
			BookID:         rec.ID,
			ISBN:           rec.BestISBN(),
			GoogleVolumeID: rec.GoogleVolumeID,
			OLWorkKey:      rec.OLWorkKey,
			OLEditionKey:   rec.OLEditionKey,
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.release(job.BookID)

			if err := s.sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer s.sem.Release(1)

			s.runJob(ctx, job, &summary)
		}()
	}
	wg.Wait()
	return summary
}

func (s *Scheduler) runJob(ctx context.Context, job Job, summary *Summary) {
	// Checked immediately before the call so a breaker tripped by an
	// earlier job in the same batch stops the rest.
	if s.breakerOpen() {
		s.count(&summary.Skipped)
		return
	}

	rec, err := s.enricher.Enrich(ctx, job)
	if err != nil {
		s.tripBreaker()
		s.count(&summary.Failed)
		var systemic *apperrors.SystemicFailureError
		if errors.As(err, &systemic) {
			slog.Warn("Enrichment hit a systemic failure, breaker tripped", "book", job.BookID, "error", err)
		} else {
			slog.Warn("Enrichment failed, breaker tripped", "book", job.BookID, "error", err)
		}
		return
	}

	s.markEnriched(job.BookID)
	s.count(&summary.Enriched)
	if s.apply != nil && rec != nil {
		s.apply(rec)
	}
}

// claim atomically checks the breaker, the in-flight set and the
// cooldown map, and marks the record in-flight when it passes all three.
func (s *Scheduler) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.now().Before(s.breakerUntil) {
		return false
	}
	if _, ok := s.inFlight[id]; ok {
		return false
	}
	if at, ok := s.lastEnriched[id]; ok && s.now().Sub(at) < Cooldown {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scheduler) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

func (s *Scheduler) markEnriched(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEnriched[id] = s.now()
}

func (s *Scheduler) tripBreaker() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakerUntil = s.now().Add(BreakerCooldown)
}

func (s *Scheduler) breakerOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Before(s.breakerUntil)
}

// BreakerOpen reports whether enrichment is currently disabled by the
// circuit breaker. The flag resets by itself once the cooldown passes.
func (s *Scheduler) BreakerOpen() bool {
	return s.breakerOpen()
}

func (s *Scheduler) count(field *int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*field++
}
