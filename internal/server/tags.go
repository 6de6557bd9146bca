package server

import (
	"encoding/json"
	"net/http"

	"github.com/folioserve/folioserve/internal/auth"
)

// handleTagList returns every registered tag with its usage count, lazily
// garbage-collecting tags no object references anymore.
func (s *Server) handleTagList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	objects, err := s.repo.ScanAll()
	if err != nil {
		s.storeError(w, err)
		return
	}

	counts, err := s.tags.ListWithUsage(objects)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, counts)
}

func (s *Server) handleTagCreate(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.jsonError(w, "name is required", http.StatusBadRequest)
		return
	}

	tag, err := s.tags.Create(req.Name)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"success": true, "data": tag})
}

func (s *Server) handleTagModify(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID      string `json:"id"`
		NewName string `json:"newName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" || req.NewName == "" {
		s.jsonError(w, "id and newName are required", http.StatusBadRequest)
		return
	}

	if err := s.tags.Rename(req.ID, req.NewName); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"success": true})
}

func (s *Server) handleTagDelete(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		s.jsonError(w, "id is required", http.StatusBadRequest)
		return
	}

	if err := s.tags.Delete(req.ID); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"success": true})
}
