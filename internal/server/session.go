package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/folioserve/folioserve/internal/auth"
	"github.com/folioserve/folioserve/internal/metrics"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool          `json:"success"`
	Token   string        `json:"token"`
	User    auth.Identity `json:"user"`
}

// handleLogin checks credentials and issues a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.users.FindByUsername(req.Username)
	if err != nil || !auth.VerifyPassword(req.Password, user.Password) {
		metrics.Logins.WithLabelValues("failure").Inc()
		log.Warn().Str("username", req.Username).Msg("login failed")
		s.jsonError(w, "wrong username or password", http.StatusUnauthorized)
		return
	}

	identity := auth.Identity{ID: user.ID, Username: user.Username, Role: user.Role}
	token, err := s.issuer.Issue(identity)
	if err != nil {
		s.jsonError(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	metrics.Logins.WithLabelValues("success").Inc()
	log.Info().Str("username", user.Username).Msg("login succeeded")
	s.events.broadcast(event{Type: "login", Detail: user.Username})
	s.writeJSON(w, loginResponse{Success: true, Token: token, User: identity})
}

// handleCheckAuth confirms that the presented token is still valid and that
// its backing user still exists.
func (s *Server) handleCheckAuth(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, map[string]any{"success": true, "user": id})
}
