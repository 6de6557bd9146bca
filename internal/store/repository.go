package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/folioserve/folioserve/internal/metrics"
)

const (
	configFile   = "config.yaml"
	documentFile = "content.md"
)

// assetSubdirs are the directories every object must have after a repository pass.
var assetSubdirs = []string{
	filepath.Join("assets", "media"),
	filepath.Join("assets", "file"),
}

// CreateRequest holds the caller-supplied fields for a new object.
type CreateRequest struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Visibility  string   `json:"visibility"`
	Description string   `json:"description"`
	CoverImage  string   `json:"coverImage"`
	CardImages  []string `json:"cardImages"`
	Tags        []string `json:"tags"`
}

// Repository is the directory-per-object store. Every listing or read runs
// the reconciliation pass, which repairs structural drift in place.
//
// Layout under the objects root:
//
//	{root}/
//	  {id}/
//	    config.yaml    # canonical record
//	    content.md     # optional document body
//	    assets/media/
//	    assets/file/
type Repository struct {
	root  string
	users *UserStore
	tags  *TagStore

	// OnRepair, when set, is called after a record is repaired or created
	// by the reconciliation pass.
	OnRepair func(id string, created bool)
}

// NewRepository creates a repository rooted at the given objects directory,
// creating it if missing.
func NewRepository(root string, users *UserStore, tags *TagStore) (*Repository, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create objects dir: %w", err)
	}
	return &Repository{root: root, users: users, tags: tags}, nil
}

// Root returns the objects root directory.
func (r *Repository) Root() string {
	return r.root
}

// ScanAll reconciles and returns every object, in directory-listing order.
// One unreadable record never aborts the scan of the others.
func (r *Repository) ScanAll() ([]Object, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("read objects dir: %w", err)
	}

	userIDs, usernames := r.userSnapshot()
	tagIDs := r.tags.IDs()

	objects := make([]Object, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		obj := r.reconcileDir(entry.Name(), userIDs, usernames, tagIDs)
		objects = append(objects, obj)
	}
	return objects, nil
}

// Get reconciles and returns a single object along with its document body
// (empty string if absent). Fails with ErrNotFound if the directory is missing.
func (r *Repository) Get(id string) (*Object, string, error) {
	dir := filepath.Join(r.root, id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, "", ErrNotFound
	}

	userIDs, usernames := r.userSnapshot()
	obj := r.reconcileDir(id, userIDs, usernames, r.tags.IDs())

	document := ""
	if data, err := os.ReadFile(filepath.Join(dir, documentFile)); err == nil {
		document = string(data)
	}
	return &obj, document, nil
}

// Create allocates a fresh id, establishes the directory structure, and
// writes the canonical record with the creator as owner. The record is
// constructed canonical, so the repair pass is bypassed.
func (r *Repository) Create(ownerID string, req CreateRequest) (*Object, error) {
	if req.Visibility != "" && !ValidVisibility(req.Visibility) {
		return nil, ErrInvalidVisibility
	}

	id := GenerateID()
	for r.exists(id) {
		id = GenerateID()
	}

	now := time.Now().UTC().Format(time.RFC3339)
	obj := Object{
		ID:           id,
		Name:         req.Name,
		DateCreated:  now,
		DateModified: now,
		Type:         req.Type,
		Visibility:   req.Visibility,
		User:         map[string]string{ownerID: LevelOwner},
		Description:  req.Description,
		BasePath:     "/api/static/objects/" + id + "/",
		CoverImage:   req.CoverImage,
		CardImages:   req.CardImages,
		Tags:         r.pruneTags(req.Tags),
	}
	if obj.Name == "" {
		obj.Name = DefaultName
	}
	if obj.Type == "" {
		obj.Type = DefaultType
	}
	if obj.Visibility == "" {
		obj.Visibility = DefaultVisibility
	}
	if obj.CardImages == nil {
		obj.CardImages = []string{}
	}

	dir := filepath.Join(r.root, id)
	if err := r.ensureLayout(dir); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, documentFile), nil, 0644); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	if err := r.writeConfig(dir, &obj); err != nil {
		return nil, err
	}

	if owner, err := r.users.FindByID(ownerID); err == nil {
		obj.Author = owner.Username
	} else {
		obj.Author = DefaultAuthor
	}

	log.Info().Str("id", id).Str("owner", ownerID).Msg("object created")
	return &obj, nil
}

// Update replaces an object's record with the incoming one, re-asserting the
// owner invariant against the stored record and stamping dateModified. The
// actor must be the object's owner or an admin.
func (r *Repository) Update(actorID string, admin bool, incoming Object) error {
	if incoming.ID == "" {
		return ErrNotFound
	}
	if incoming.Visibility != "" && !ValidVisibility(incoming.Visibility) {
		return ErrInvalidVisibility
	}

	userIDs, usernames := r.userSnapshot()
	tagIDs := r.tags.IDs()

	dir := filepath.Join(r.root, incoming.ID)
	if !r.exists(incoming.ID) {
		return ErrNotFound
	}
	existing := r.reconcileDir(incoming.ID, userIDs, usernames, tagIDs)

	if !existing.CanMutate(actorID, admin) {
		return ErrPermissionDenied
	}

	obj := incoming
	obj.BasePath = existing.BasePath
	obj.DateCreated = existing.DateCreated
	obj.DateModified = time.Now().UTC().Format(time.RFC3339)
	if obj.Name == "" {
		obj.Name = DefaultName
	}
	if obj.Type == "" {
		obj.Type = existing.Type
	}
	if obj.Visibility == "" {
		obj.Visibility = existing.Visibility
	}
	if obj.User == nil {
		obj.User = existing.User
	} else {
		obj.User = EnforceOwnerInvariant(existing.User, obj.User)
	}
	obj.Tags = r.pruneTags(obj.Tags)
	if obj.CardImages == nil {
		obj.CardImages = []string{}
	}

	if err := r.writeConfig(dir, &obj); err != nil {
		return err
	}
	log.Info().Str("id", obj.ID).Str("actor", actorID).Msg("object updated")
	return nil
}

// Delete removes an object's entire directory subtree. The actor must be the
// object's owner or an admin.
func (r *Repository) Delete(actorID string, admin bool, id string) error {
	if !r.exists(id) {
		return ErrNotFound
	}

	userIDs, usernames := r.userSnapshot()
	existing := r.reconcileDir(id, userIDs, usernames, r.tags.IDs())
	if !existing.CanMutate(actorID, admin) {
		return ErrPermissionDenied
	}

	if err := os.RemoveAll(filepath.Join(r.root, id)); err != nil {
		return fmt.Errorf("remove object dir: %w", err)
	}
	log.Info().Str("id", id).Str("actor", actorID).Msg("object deleted")
	return nil
}

// Assets lists an object's media asset paths relative to the object directory.
func (r *Repository) Assets(id string) ([]string, error) {
	mediaDir := filepath.Join(r.root, id, "assets", "media")
	entries, err := os.ReadDir(mediaDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read media dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, "assets/media/"+entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// AssetDir returns the media asset directory for an object, creating it if needed.
func (r *Repository) AssetDir(id string) (string, error) {
	if !r.exists(id) {
		return "", ErrNotFound
	}
	dir := filepath.Join(r.root, id, "assets", "media")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	return dir, nil
}

// DeleteAsset removes a single media asset by file name.
func (r *Repository) DeleteAsset(id, filename string) error {
	// Only the base name is honored, so a crafted path cannot escape the
	// media directory.
	path := filepath.Join(r.root, id, "assets", "media", filepath.Base(filename))
	if _, err := os.Stat(path); err != nil {
		return ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}

// reconcileDir runs the reconciliation pass for one directory: load, repair,
// persist when drifted, and ensure the asset subfolders exist.
func (r *Repository) reconcileDir(id string, userIDs map[string]bool, usernames map[string]string, tagIDs map[string]bool) Object {
	dir := filepath.Join(r.root, id)
	configPath := filepath.Join(dir, configFile)

	var raw rawConfig
	missing := false
	data, err := os.ReadFile(configPath)
	if err != nil {
		missing = true
	} else if err := yaml.Unmarshal(data, &raw); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("broken object config, resetting to defaults")
		raw = rawConfig{}
	}

	obj, changed := reconcile(id, raw, userIDs, tagIDs, usernames, time.Now())

	if missing || changed {
		if err := r.writeConfig(dir, &obj); err != nil {
			log.Error().Err(err).Str("id", id).Msg("failed to persist repaired config")
		} else {
			if missing {
				log.Info().Str("id", id).Msg("created missing object config")
			} else {
				log.Info().Str("id", id).Msg("repaired object config")
			}
			metrics.ReconcileRepairs.Inc()
			if r.OnRepair != nil {
				r.OnRepair(id, missing)
			}
		}
	}

	if err := r.ensureLayout(dir); err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to ensure asset folders")
	}

	return obj
}

func (r *Repository) ensureLayout(dir string) error {
	for _, sub := range assetSubdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return fmt.Errorf("create %s: %w", sub, err)
		}
	}
	return nil
}

func (r *Repository) writeConfig(dir string, obj *Object) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	data, err := yaml.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, configFile), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (r *Repository) exists(id string) bool {
	info, err := os.Stat(filepath.Join(r.root, id))
	return err == nil && info.IsDir()
}

func (r *Repository) pruneTags(tags []string) []string {
	ids := r.tags.IDs()
	out := make([]string, 0, len(tags))
	for _, tid := range tags {
		if ids[tid] {
			out = append(out, tid)
		}
	}
	return out
}

// userSnapshot returns the live user-id set and an id→username map for one
// reconciliation pass.
func (r *Repository) userSnapshot() (map[string]bool, map[string]string) {
	users, _ := r.users.List()
	ids := make(map[string]bool, len(users))
	names := make(map[string]string, len(users))
	for _, u := range users {
		ids[u.ID] = true
		names[u.ID] = u.Username
	}
	return ids, names
}
