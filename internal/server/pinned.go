package server

import (
	"encoding/json"
	"net/http"

	"github.com/folioserve/folioserve/internal/auth"
)

// handlePinnedList returns the pinned ids, pruned of entries whose object no
// longer exists.
func (s *Server) handlePinnedList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ids, err := s.pinned.List()
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, ids)
}

// handlePinnedUpdate overwrites the pinned list verbatim.
func (s *Server) handlePinnedUpdate(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ids []string
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.pinned.Replace(ids); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"success": true})
}
