package store

import "time"

// migration is one step of the legacy-shape migration chain. Each step is a
// pure transform on the raw config; steps report whether they changed it.
type migration func(raw *rawConfig) bool

// migrations run in order before defaulting and pruning. Append new steps
// here; never reorder existing ones.
var migrations = []migration{
	migrateLegacyPermissions,
}

// migrateLegacyPermissions synthesizes the user permission map from the
// legacy owner_id / shared_with fields when no map exists.
func migrateLegacyPermissions(raw *rawConfig) bool {
	if raw.User != nil {
		return false
	}
	if raw.OwnerID == "" && len(raw.SharedWith) == 0 {
		return false
	}

	raw.User = make(map[string]string)
	if raw.OwnerID != "" {
		raw.User[raw.OwnerID] = LevelOwner
	}
	for _, uid := range raw.SharedWith {
		if _, ok := raw.User[uid]; !ok {
			raw.User[uid] = LevelRead
		}
	}
	return true
}

// reconcile builds the canonical record for one object id from whatever was
// loaded off disk. It defaults absent fields, runs the migration chain,
// prunes the permission map against live user ids and the tag set against
// live tag ids, and derives the display author. The second return reports
// whether the canonical record differs from what was loaded, i.e. whether it
// needs to be persisted back. Pure: no I/O.
func reconcile(id string, raw rawConfig, userIDs, tagIDs map[string]bool, users map[string]string, now time.Time) (Object, bool) {
	changed := false

	for _, step := range migrations {
		if step(&raw) {
			changed = true
		}
	}

	// Legacy fields are never written back, so their presence alone means
	// the persisted record must be rewritten.
	if raw.OwnerID != "" || len(raw.SharedWith) > 0 {
		changed = true
	}

	obj := Object{
		ID:          id,
		Name:        raw.Name,
		DateCreated: raw.DateCreated,
		Type:        raw.Type,
		Visibility:  raw.Visibility,
		Description: raw.Description,
		CoverImage:  raw.CoverImage,
		BasePath:    "/api/static/objects/" + id + "/",
	}

	if raw.ID != id {
		changed = true
	}
	if raw.BasePath != obj.BasePath {
		changed = true
	}
	if obj.Name == "" {
		obj.Name = DefaultName
		changed = true
	}
	if obj.Type == "" {
		obj.Type = DefaultType
		changed = true
	}
	if !ValidVisibility(obj.Visibility) {
		obj.Visibility = DefaultVisibility
		changed = true
	}
	if obj.DateCreated == "" {
		obj.DateCreated = now.UTC().Format(time.RFC3339)
		changed = true
	}
	obj.DateModified = raw.DateModified
	if obj.DateModified == "" {
		obj.DateModified = obj.DateCreated
		changed = true
	}

	obj.CardImages = raw.CardImages
	if obj.CardImages == nil {
		obj.CardImages = []string{}
		changed = true
	}

	// Prune permission-map entries for users that no longer exist.
	obj.User = make(map[string]string, len(raw.User))
	for uid, level := range raw.User {
		if userIDs[uid] {
			obj.User[uid] = level
		} else {
			changed = true
		}
	}
	if raw.User == nil {
		changed = true
	}

	// Prune tag references absent from the registry, preserving order.
	obj.Tags = make([]string, 0, len(raw.Tags))
	for _, tid := range raw.Tags {
		if tagIDs[tid] {
			obj.Tags = append(obj.Tags, tid)
		} else {
			changed = true
		}
	}
	if raw.Tags == nil {
		changed = true
	}

	// Derive the display author from the owner entry, falling back to the
	// legacy author field, then the fixed placeholder.
	if owner := obj.OwnerID(); owner != "" && users[owner] != "" {
		obj.Author = users[owner]
	} else if raw.Author != "" {
		obj.Author = raw.Author
		changed = true // legacy author field is dropped from the persisted record
	} else {
		obj.Author = DefaultAuthor
	}

	return obj, changed
}

// EnforceOwnerInvariant restores the original owner's level in an incoming
// permission map. Whatever the caller supplied, the owner recorded in the
// original map keeps the owner level and no other entry may hold it; foreign
// owner entries are demoted to edit. The incoming map is returned unchanged
// when the original had no owner. Neither input map is mutated.
func EnforceOwnerInvariant(original, incoming map[string]string) map[string]string {
	var ownerID string
	for uid, level := range original {
		if level == LevelOwner {
			ownerID = uid
			break
		}
	}
	if ownerID == "" {
		return incoming
	}

	out := make(map[string]string, len(incoming)+1)
	for uid, level := range incoming {
		if level == LevelOwner && uid != ownerID {
			level = LevelEdit
		}
		out[uid] = level
	}
	out[ownerID] = LevelOwner
	return out
}
