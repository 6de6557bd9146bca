// Package server implements the folioserve HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/folioserve/folioserve/internal/auth"
	"github.com/folioserve/folioserve/internal/config"
	"github.com/folioserve/folioserve/internal/metrics"
	"github.com/folioserve/folioserve/internal/store"
)

// Server is the HTTP API server. It wires the token issuer, the file-backed
// stores, and the object repository behind the routing layer.
type Server struct {
	cfg    *config.Config
	mux    *http.ServeMux
	issuer *auth.TokenIssuer
	users  *store.UserStore
	tags   *store.TagStore
	pinned *store.PinnedStore
	repo   *store.Repository
	events *eventHub
	http   *http.Server
}

// New creates a server over the given configuration, constructing the stores
// rooted in its data directory.
func New(cfg *config.Config) (*Server, error) {
	users := store.NewUserStore(cfg.UsersFile())
	tags := store.NewTagStore(cfg.TagsFile())
	pinned := store.NewPinnedStore(cfg.PinnedFile(), cfg.ObjectsDir())

	repo, err := store.NewRepository(cfg.ObjectsDir(), users, tags)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		issuer: auth.NewTokenIssuer(cfg.JWTSecret),
		users:  users,
		tags:   tags,
		pinned: pinned,
		repo:   repo,
		events: newEventHub(),
	}

	repo.OnRepair = func(id string, created bool) {
		kind := "repaired"
		if created {
			kind = "created"
		}
		s.events.broadcast(event{Type: "reconcile", ObjectID: id, Detail: kind})
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", metrics.Handler())

	s.mux.HandleFunc("/api/login", s.handleLogin)
	s.mux.HandleFunc("/api/check-auth", s.withAuth(s.handleCheckAuth))

	s.mux.HandleFunc("/api/objects/list", s.withOptionalAuth(s.handleObjectList))
	s.mux.HandleFunc("/api/objects/create", s.withAuth(s.handleObjectCreate))
	s.mux.HandleFunc("/api/objects/update", s.withAuth(s.handleObjectUpdate))
	s.mux.HandleFunc("/api/objects/delete", s.withAuth(s.handleObjectDelete))
	s.mux.HandleFunc("/api/objects/", s.handleObjectSubtree)

	s.mux.HandleFunc("/api/tags/list", s.handleTagList)
	s.mux.HandleFunc("/api/tags/create", s.withAuth(s.handleTagCreate))
	s.mux.HandleFunc("/api/tags/modify", s.withAuth(s.handleTagModify))
	s.mux.HandleFunc("/api/tags/delete", s.withAuth(s.handleTagDelete))

	s.mux.HandleFunc("/api/users/search", s.withAuth(s.handleUserSearch))
	s.mux.HandleFunc("/api/users", s.requireAdmin(s.handleUsers))
	s.mux.HandleFunc("/api/users/", s.requireAdmin(s.handleUserByID))

	s.mux.HandleFunc("/api/pinned/list", s.handlePinnedList)
	s.mux.HandleFunc("/api/pinned/update", s.withAuth(s.handlePinnedUpdate))

	s.mux.HandleFunc("/api/events", s.requireAdmin(s.handleEvents))
	s.mux.HandleFunc("/api/export", s.requireAdmin(s.handleExport))

	s.mux.Handle("/api/static/", http.StripPrefix("/api/static/",
		http.FileServer(http.Dir(s.cfg.DataDir))))
}

// statusRecorder captures the response status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Websocket upgrades need the raw ResponseWriter (Hijacker).
	if r.URL.Path == "/api/events" {
		s.mux.ServeHTTP(w, r)
		return
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	metrics.HTTPRequests.WithLabelValues(metricPath(r.URL.Path), strconv.Itoa(rec.status)).Inc()
}

// metricPath collapses per-entity paths so the label set stays bounded.
func metricPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/static/"):
		return "/api/static"
	case strings.HasPrefix(path, "/api/objects/"):
		switch {
		case strings.HasSuffix(path, "/assets/delete"):
			return "/api/objects/{id}/assets/delete"
		case strings.HasSuffix(path, "/assets"):
			return "/api/objects/{id}/assets"
		case strings.HasSuffix(path, "/upload"):
			return "/api/objects/{id}/upload"
		case path == "/api/objects/list", path == "/api/objects/create",
			path == "/api/objects/update", path == "/api/objects/delete":
			return path
		default:
			return "/api/objects/{id}"
		}
	case strings.HasPrefix(path, "/api/users/") && path != "/api/users/search":
		return "/api/users/{id}"
	}
	return path
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.http = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Info().Str("listen", s.cfg.Listen).Str("data_dir", s.cfg.DataDir).Msg("starting folioserve")
	return s.http.ListenAndServe()
}

// bearerToken extracts the bearer token from a request, if present.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// withAuth requires a valid bearer token; the resolved identity is passed to
// the handler. Tokens whose backing user was deleted are rejected.
func (s *Server) withAuth(next func(http.ResponseWriter, *http.Request, auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.jsonError(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		id, err := s.issuer.Verify(token, s.users)
		if err != nil {
			if errors.Is(err, auth.ErrIdentityRevoked) {
				s.jsonError(w, "user no longer exists", http.StatusUnauthorized)
				return
			}
			s.jsonError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next(w, r, id)
	}
}

// withOptionalAuth resolves a bearer token when present; absence or failure
// yields an anonymous caller, never an error.
func (s *Server) withOptionalAuth(next func(http.ResponseWriter, *http.Request, *auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next(w, r, nil)
			return
		}

		id, err := s.issuer.Verify(token, s.users)
		if err != nil {
			next(w, r, nil)
			return
		}
		next(w, r, &id)
	}
}

// requireAdmin composes withAuth with an admin role check.
func (s *Server) requireAdmin(next func(http.ResponseWriter, *http.Request, auth.Identity)) http.HandlerFunc {
	return s.withAuth(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		if !id.IsAdmin() {
			s.jsonError(w, "admin role required", http.StatusForbidden)
			return
		}
		next(w, r, id)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Success: false, Message: message})
}

// storeError maps store sentinel errors to HTTP responses.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.jsonError(w, "not found", http.StatusNotFound)
	case errors.Is(err, store.ErrPermissionDenied):
		s.jsonError(w, "permission denied", http.StatusForbidden)
	case errors.Is(err, store.ErrDuplicateName),
		errors.Is(err, store.ErrDuplicateUsername),
		errors.Is(err, store.ErrInvalidVisibility):
		s.jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		s.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
