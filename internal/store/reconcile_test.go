package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestReconcileDefaultsEmptyConfig(t *testing.T) {
	obj, changed := reconcile("abcd1234", rawConfig{}, nil, nil, nil, testNow)

	assert.True(t, changed)
	assert.Equal(t, "abcd1234", obj.ID)
	assert.Equal(t, DefaultName, obj.Name)
	assert.Equal(t, DefaultType, obj.Type)
	assert.Equal(t, DefaultVisibility, obj.Visibility)
	assert.Equal(t, testNow.Format(time.RFC3339), obj.DateCreated)
	assert.Equal(t, obj.DateCreated, obj.DateModified)
	assert.Equal(t, "/api/static/objects/abcd1234/", obj.BasePath)
	assert.Empty(t, obj.Tags)
	assert.Empty(t, obj.User)
	assert.Equal(t, []string{}, obj.CardImages)
	assert.Equal(t, DefaultAuthor, obj.Author)
}

func TestReconcileDateModifiedFallsBackToDateCreated(t *testing.T) {
	raw := rawConfig{DateCreated: "2024-01-01T00:00:00Z"}
	obj, _ := reconcile("abcd1234", raw, nil, nil, nil, testNow)

	assert.Equal(t, "2024-01-01T00:00:00Z", obj.DateCreated)
	assert.Equal(t, "2024-01-01T00:00:00Z", obj.DateModified)
}

func TestReconcileIdempotent(t *testing.T) {
	users := map[string]bool{"u1": true}
	names := map[string]string{"u1": "alice"}
	tags := map[string]bool{"t1": true}

	raw := rawConfig{
		Name:       "My Project",
		Tags:       []string{"t1", "deleted"},
		User:       map[string]string{"u1": LevelOwner, "ghost": LevelRead},
		Visibility: "weird",
	}

	first, changed := reconcile("abcd1234", raw, users, tags, names, testNow)
	assert.True(t, changed)

	// Feed the canonical record back in: nothing should change.
	second, changed := reconcile("abcd1234", objectToRaw(first), users, tags, names, testNow.Add(time.Hour))
	assert.False(t, changed)
	assert.Equal(t, first, second)
}

// objectToRaw mirrors what a canonical record looks like after a YAML
// round-trip off disk.
func objectToRaw(obj Object) rawConfig {
	return rawConfig{
		ID:           obj.ID,
		Name:         obj.Name,
		DateCreated:  obj.DateCreated,
		DateModified: obj.DateModified,
		Type:         obj.Type,
		Visibility:   obj.Visibility,
		User:         obj.User,
		Description:  obj.Description,
		BasePath:     obj.BasePath,
		CoverImage:   obj.CoverImage,
		CardImages:   obj.CardImages,
		Tags:         obj.Tags,
	}
}

func TestReconcileMigratesLegacyPermissions(t *testing.T) {
	users := map[string]bool{"u1": true, "u2": true, "u3": true}
	names := map[string]string{"u1": "alice", "u2": "bob", "u3": "carol"}

	raw := rawConfig{
		Name:        "Legacy",
		DateCreated: "2024-01-01T00:00:00Z",
		OwnerID:     "u1",
		SharedWith:  []string{"u2", "u3"},
	}

	obj, changed := reconcile("abcd1234", raw, users, map[string]bool{}, names, testNow)
	assert.True(t, changed)
	assert.Equal(t, map[string]string{
		"u1": LevelOwner,
		"u2": LevelRead,
		"u3": LevelRead,
	}, obj.User)
	assert.Equal(t, "alice", obj.Author)
}

func TestReconcileLegacyMigrationSkippedWhenMapExists(t *testing.T) {
	users := map[string]bool{"u1": true, "u2": true}
	names := map[string]string{"u1": "alice", "u2": "bob"}

	raw := rawConfig{
		DateCreated: "2024-01-01T00:00:00Z",
		User:        map[string]string{"u2": LevelOwner},
		OwnerID:     "u1", // stale legacy field, must not win
	}

	obj, changed := reconcile("abcd1234", raw, users, map[string]bool{}, names, testNow)
	assert.True(t, changed) // legacy field dropped from the persisted record
	assert.Equal(t, map[string]string{"u2": LevelOwner}, obj.User)
	assert.Equal(t, "bob", obj.Author)
}

func TestReconcilePrunesDanglingUsersAndTags(t *testing.T) {
	users := map[string]bool{"u1": true}
	names := map[string]string{"u1": "alice"}
	tags := map[string]bool{"t1": true}

	raw := rawConfig{
		DateCreated: "2024-01-01T00:00:00Z",
		User:        map[string]string{"u1": LevelOwner, "gone": LevelEdit},
		Tags:        []string{"t1", "t2", "t3"},
	}

	obj, changed := reconcile("abcd1234", raw, users, tags, names, testNow)
	assert.True(t, changed)
	assert.Equal(t, map[string]string{"u1": LevelOwner}, obj.User)
	assert.Equal(t, []string{"t1"}, obj.Tags)
}

func TestReconcileAuthorFallback(t *testing.T) {
	// Owner pruned away, legacy author present.
	raw := rawConfig{
		DateCreated: "2024-01-01T00:00:00Z",
		User:        map[string]string{"gone": LevelOwner},
		Author:      "someone",
	}
	obj, _ := reconcile("abcd1234", raw, map[string]bool{}, map[string]bool{}, map[string]string{}, testNow)
	assert.Equal(t, "someone", obj.Author)

	// No owner, no legacy author: fixed placeholder.
	obj, _ = reconcile("abcd1234", rawConfig{DateCreated: "2024-01-01T00:00:00Z"}, nil, nil, nil, testNow)
	assert.Equal(t, DefaultAuthor, obj.Author)
}

func TestReconcileCoercesInvalidVisibility(t *testing.T) {
	raw := rawConfig{DateCreated: "2024-01-01T00:00:00Z", Visibility: "everyone"}
	obj, changed := reconcile("abcd1234", raw, nil, nil, nil, testNow)
	assert.True(t, changed)
	assert.Equal(t, VisibilityPublic, obj.Visibility)
}

func TestEnforceOwnerInvariant(t *testing.T) {
	original := map[string]string{"u1": LevelOwner, "u2": LevelRead}

	t.Run("owner removed", func(t *testing.T) {
		out := EnforceOwnerInvariant(original, map[string]string{"u2": LevelEdit})
		assert.Equal(t, LevelOwner, out["u1"])
	})

	t.Run("owner demoted", func(t *testing.T) {
		out := EnforceOwnerInvariant(original, map[string]string{"u1": LevelRead})
		assert.Equal(t, LevelOwner, out["u1"])
	})

	t.Run("second owner demoted", func(t *testing.T) {
		out := EnforceOwnerInvariant(original, map[string]string{"u1": LevelOwner, "u3": LevelOwner})
		assert.Equal(t, LevelOwner, out["u1"])
		assert.Equal(t, LevelEdit, out["u3"])

		owners := 0
		for _, level := range out {
			if level == LevelOwner {
				owners++
			}
		}
		assert.Equal(t, 1, owners)
	})

	t.Run("no original owner passes through", func(t *testing.T) {
		incoming := map[string]string{"u5": LevelOwner}
		out := EnforceOwnerInvariant(map[string]string{}, incoming)
		assert.Equal(t, incoming, out)
	})

	t.Run("inputs not mutated", func(t *testing.T) {
		incoming := map[string]string{"u1": LevelRead}
		_ = EnforceOwnerInvariant(original, incoming)
		assert.Equal(t, LevelRead, incoming["u1"])
	})
}

func TestReconcileKeepsValidRecordUnchanged(t *testing.T) {
	users := map[string]bool{"u1": true}
	names := map[string]string{"u1": "alice"}
	tags := map[string]bool{"t1": true}

	raw := rawConfig{
		ID:           "abcd1234",
		Name:         "Stable",
		DateCreated:  "2024-01-01T00:00:00Z",
		DateModified: "2024-02-01T00:00:00Z",
		Type:         "post",
		Visibility:   VisibilityPrivate,
		User:         map[string]string{"u1": LevelOwner},
		Description:  "desc",
		BasePath:     "/api/static/objects/abcd1234/",
		CardImages:   []string{},
		Tags:         []string{"t1"},
	}

	obj, changed := reconcile("abcd1234", raw, users, tags, names, testNow)
	require.False(t, changed)
	assert.Equal(t, "Stable", obj.Name)
	assert.Equal(t, "alice", obj.Author)
}
