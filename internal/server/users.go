package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/folioserve/folioserve/internal/auth"
	"github.com/folioserve/folioserve/internal/store"
)

type userSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// handleUserSearch returns id/username pairs matching the query. Available to
// any authenticated user, for building permission maps in the UI.
func (s *Server) handleUserSearch(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeJSON(w, []userSummary{})
		return
	}

	users, err := s.users.List()
	if err != nil {
		s.storeError(w, err)
		return
	}

	matches := make([]userSummary, 0)
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Username), strings.ToLower(q)) {
			matches = append(matches, userSummary{ID: u.ID, Username: u.Username})
		}
	}
	s.writeJSON(w, matches)
}

// handleUsers handles GET (list) and POST (create) on the user collection.
// Admin only.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	switch r.Method {
	case http.MethodGet:
		users, err := s.users.List()
		if err != nil {
			s.storeError(w, err)
			return
		}
		s.writeJSON(w, users)

	case http.MethodPost:
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Password == "" || req.Role == "" {
			s.jsonError(w, "username, password and role are required", http.StatusBadRequest)
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			s.jsonError(w, "failed to hash password", http.StatusInternalServerError)
			return
		}

		role := auth.RoleUser
		if req.Role == auth.RoleAdmin {
			role = auth.RoleAdmin
		}
		user := store.User{
			ID:       store.GenerateID(),
			Username: req.Username,
			Password: hash,
			Role:     role,
		}
		if err := s.users.Create(user); err != nil {
			s.storeError(w, err)
			return
		}

		log.Info().Str("username", user.Username).Str("role", user.Role).Str("by", id.Username).Msg("user created")
		s.writeJSON(w, map[string]any{"success": true, "user": user})

	default:
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUserByID handles PUT (update) and DELETE on a single user. Admin only.
// Deleting your own account is rejected.
func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	userID := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if userID == "" || strings.Contains(userID, "/") {
		s.jsonError(w, "user id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}

		patch := store.UserPatch{}
		if req.Username != "" {
			patch.Username = &req.Username
		}
		if req.Password != "" {
			hash, err := auth.HashPassword(req.Password)
			if err != nil {
				s.jsonError(w, "failed to hash password", http.StatusInternalServerError)
				return
			}
			patch.Password = &hash
		}
		if req.Role != "" {
			patch.Role = &req.Role
		}

		user, err := s.users.Update(userID, patch)
		if err != nil {
			s.storeError(w, err)
			return
		}
		s.writeJSON(w, map[string]any{"success": true, "user": user})

	case http.MethodDelete:
		if userID == id.ID {
			s.jsonError(w, "cannot delete yourself", http.StatusBadRequest)
			return
		}
		if err := s.users.Delete(userID); err != nil {
			s.storeError(w, err)
			return
		}
		// Dangling permission-map entries and any outstanding tokens for
		// this user die on their own: reconciliation prunes the former,
		// token revalidation rejects the latter.
		log.Info().Str("user_id", userID).Str("by", id.Username).Msg("user deleted")
		s.writeJSON(w, map[string]any{"success": true})

	default:
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
