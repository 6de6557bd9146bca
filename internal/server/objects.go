package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/folioserve/folioserve/internal/auth"
	"github.com/folioserve/folioserve/internal/store"
)

// maxUploadBytes caps a single multipart upload request.
const maxUploadBytes = 256 << 20 // 256 MB

// handleObjectList returns all objects the caller may see.
func (s *Server) handleObjectList(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	objects, err := s.repo.ScanAll()
	if err != nil {
		s.storeError(w, err)
		return
	}

	userID, admin := callerInfo(id)
	visible := make([]store.Object, 0, len(objects))
	for _, obj := range objects {
		if obj.CanView(userID, admin) {
			visible = append(visible, obj)
		}
	}
	s.writeJSON(w, visible)
}

type objectDetail struct {
	store.Object
	Markdown  string `json:"markdown"`
	AssetBase string `json:"assetBase"`
}

// handleObjectGet returns one object with its document body.
func (s *Server) handleObjectGet(w http.ResponseWriter, r *http.Request, objectID string, id *auth.Identity) {
	obj, markdown, err := s.repo.Get(objectID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	userID, admin := callerInfo(id)
	if !obj.CanView(userID, admin) {
		s.jsonError(w, "permission denied", http.StatusForbidden)
		return
	}

	s.writeJSON(w, objectDetail{
		Object:    *obj,
		Markdown:  markdown,
		AssetBase: obj.BasePath,
	})
}

// handleObjectCreate creates a new object owned by the caller.
func (s *Server) handleObjectCreate(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req store.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	obj, err := s.repo.Create(id.ID, req)
	if err != nil {
		s.storeError(w, err)
		return
	}

	s.events.broadcast(event{Type: "object-created", ObjectID: obj.ID, Detail: id.Username})
	s.writeJSON(w, map[string]any{"success": true, "data": obj})
}

// handleObjectUpdate replaces an object's record. Owner or admin only; the
// repository re-asserts the owner invariant whatever the payload says.
func (s *Server) handleObjectUpdate(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var incoming store.Object
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.repo.Update(id.ID, id.IsAdmin(), incoming); err != nil {
		s.storeError(w, err)
		return
	}

	s.events.broadcast(event{Type: "object-updated", ObjectID: incoming.ID, Detail: id.Username})
	s.writeJSON(w, map[string]any{"success": true})
}

// handleObjectDelete removes an object's directory subtree. Owner or admin only.
func (s *Server) handleObjectDelete(w http.ResponseWriter, r *http.Request, id auth.Identity) {
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

	if err := s.repo.Delete(id.ID, id.IsAdmin(), req.ID); err != nil {
		s.storeError(w, err)
		return
	}

	s.events.broadcast(event{Type: "object-deleted", ObjectID: req.ID, Detail: id.Username})
	s.writeJSON(w, map[string]any{"success": true})
}

// handleObjectSubtree dispatches /api/objects/{id}, /api/objects/{id}/assets,
// /api/objects/{id}/upload and /api/objects/{id}/assets/delete.
func (s *Server) handleObjectSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/objects/")
	if path == "" {
		s.jsonError(w, "object id required", http.StatusBadRequest)
		return
	}

	switch {
	case strings.HasSuffix(path, "/assets/delete"):
		objectID := strings.TrimSuffix(path, "/assets/delete")
		s.withAuth(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
			s.handleAssetDelete(w, r, objectID)
		})(w, r)

	case strings.HasSuffix(path, "/assets"):
		objectID := strings.TrimSuffix(path, "/assets")
		s.handleAssetList(w, r, objectID)

	case strings.HasSuffix(path, "/upload"):
		objectID := strings.TrimSuffix(path, "/upload")
		s.withAuth(func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
			s.handleAssetUpload(w, r, objectID)
		})(w, r)

	case !strings.Contains(path, "/"):
		s.withOptionalAuth(func(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
			s.handleObjectGet(w, r, path, id)
		})(w, r)

	default:
		s.jsonError(w, "not found", http.StatusNotFound)
	}
}

// handleAssetList returns an object's media asset paths.
func (s *Server) handleAssetList(w http.ResponseWriter, r *http.Request, objectID string) {
	if r.Method != http.MethodGet {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	files, err := s.repo.Assets(objectID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, files)
}

// handleAssetUpload stores uploaded files in the object's media directory,
// keeping original file names. Files are written to a temporary name first so
// a failed upload never leaves a truncated asset behind.
func (s *Server) handleAssetUpload(w http.ResponseWriter, r *http.Request, objectID string) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dir, err := s.repo.AssetDir(objectID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.jsonError(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	for _, header := range r.MultipartForm.File["files"] {
		if err := saveUpload(dir, header); err != nil {
			log.Error().Err(err).Str("id", objectID).Str("file", header.Filename).Msg("asset upload failed")
			s.jsonError(w, "failed to store "+header.Filename, http.StatusInternalServerError)
			return
		}
		log.Info().Str("id", objectID).Str("file", header.Filename).Msg("asset uploaded")
	}

	s.writeJSON(w, map[string]any{"success": true, "message": "Upload complete"})
}

func saveUpload(dir string, header *multipart.FileHeader) error {
	src, err := header.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	name := filepath.Base(header.Filename)
	tmp := filepath.Join(dir, ".upload-"+uuid.NewString())
	dst, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, name))
}

// handleAssetDelete removes one media asset by name.
func (s *Server) handleAssetDelete(w http.ResponseWriter, r *http.Request, objectID string) {
	if r.Method != http.MethodPost {
		s.jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		s.jsonError(w, "filename is required", http.StatusBadRequest)
		return
	}

	if err := s.repo.DeleteAsset(objectID, req.Filename); err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, map[string]any{"success": true})
}

// callerInfo flattens an optional identity for permission checks.
func callerInfo(id *auth.Identity) (userID string, admin bool) {
	if id == nil {
		return "", false
	}
	return id.ID, id.IsAdmin()
}
