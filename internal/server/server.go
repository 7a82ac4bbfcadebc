// Package server is the shelfmate reference server: the server-side
// enrichment entry point, the authoritative like toggle and the
// community feed, backed by the catalog store.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lepinkainen/shelfmate/internal/catalog"
	apperrors "github.com/lepinkainen/shelfmate/internal/errors"
	"github.com/lepinkainen/shelfmate/internal/hydrate"
	"github.com/lepinkainen/shelfmate/internal/identity"
	"github.com/lepinkainen/shelfmate/internal/remote"
	"github.com/lepinkainen/shelfmate/internal/social"
)

// userHeader carries the acting user id. Absent a header the default
// user is assumed; real authentication is out of scope here.
const userHeader = "X-Shelfmate-User"

// Server wires the HTTP routes over the catalog store and the hydration
// pipeline.
type Server struct {
	http        *http.Server
	router      chi.Router
	store       *catalog.Store
	pipeline    *hydrate.Pipeline
	covers      *identity.CoverResolver
	defaultUser string
}

// New builds the server. The pipeline runs hydration for /api/enrich
// requests on the server side.
func New(addr string, store *catalog.Store, pipeline *hydrate.Pipeline, defaultUser string) *Server {
	s := &Server{
		store:       store,
		pipeline:    pipeline,
		covers:      identity.NewCoverResolver(),
		defaultUser: defaultUser,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(accessLog)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/api/enrich", s.handleEnrich)
	r.Post("/api/toggle", s.handleToggle)
	r.Get("/api/feed", s.handleFeed)

	s.router = r
	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until it errors or is stopped.
func (s *Server) Start() error {
	slog.Info("Server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Server shutting down")
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req remote.EnrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BookID == "" {
		writeJSON(w, http.StatusBadRequest, remote.EnrichResponse{OK: false})
		return
	}

	result, err := s.pipeline.Hydrate(r.Context(), req.BookID, hydrate.Options{})
	if err != nil {
		if apperrors.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, remote.EnrichResponse{OK: false})
			return
		}
		slog.Error("Enrichment failed", "book", req.BookID, "error", err)
		writeJSON(w, http.StatusInternalServerError, remote.EnrichResponse{OK: false})
		return
	}

	writeJSON(w, http.StatusOK, remote.EnrichResponse{OK: true, Metadata: &result.Record})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req remote.ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if req.Key == "" || req.Key == identity.UnknownKey {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unusable key"})
		return
	}

	liked, likes, err := s.store.ToggleLike(r.Context(), s.user(r), req.Key)
	if err != nil {
		if apperrors.IsDuplicateConflict(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "already liked"})
			return
		}
		slog.Error("Toggle failed", "key", req.Key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "toggle failed"})
		return
	}

	writeJSON(w, http.StatusOK, remote.ToggleResponse{Liked: liked, Likes: likes})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRecent(r.Context(), 50)
	if err != nil {
		slog.Error("Feed query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "feed failed"})
		return
	}

	user := s.user(r)
	items := make([]remote.FeedItem, 0, len(records))
	for _, rec := range records {
		key := identity.CanonicalKey(&rec)
		// Feed entries always carry a display cover, placeholder included.
		rec.CoverURL = s.covers.Resolve(&rec)
		item := remote.FeedItem{Key: key, Record: rec}
		if key != identity.UnknownKey {
			likes, err := s.store.CountLikes(r.Context(), key)
			if err != nil {
				slog.Error("Like count failed", "key", key, "error", err)
				continue
			}
			// The like may have been stored under any identifier form of
			// the record, not just today's canonical key.
			likedKey, err := s.store.FindLikedKey(r.Context(), user, identity.CandidateKeys(&rec))
			if err != nil {
				slog.Error("Like check failed", "key", key, "error", err)
				continue
			}
			item.Counters = social.CounterState{Likes: likes, IsLiked: likedKey != ""}
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, items)
}

func (s *Server) user(r *http.Request) string {
	if user := r.Header.Get(userHeader); user != "" {
		return user
	}
	return s.defaultUser
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Response encoding failed", "error", err)
	}
}

// accessLog writes one structured log line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
