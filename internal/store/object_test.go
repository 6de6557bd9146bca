package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectCanView(t *testing.T) {
	obj := Object{
		Visibility: VisibilityPrivate,
		User:       map[string]string{"owner1": LevelOwner, "reader1": LevelRead},
	}

	assert.False(t, obj.CanView("", false), "anonymous")
	assert.False(t, obj.CanView("stranger", false), "unlisted user")
	assert.True(t, obj.CanView("reader1", false), "read grant")
	assert.True(t, obj.CanView("owner1", false), "owner")
	assert.True(t, obj.CanView("", true), "admin")

	obj.Visibility = VisibilityPublic
	assert.True(t, obj.CanView("", false), "public is visible to anyone")

	obj.Visibility = VisibilityRestricted
	assert.False(t, obj.CanView("stranger", false))
	assert.True(t, obj.CanView("reader1", false))
}

func TestObjectCanMutate(t *testing.T) {
	obj := Object{
		User: map[string]string{"owner1": LevelOwner, "editor1": LevelEdit},
	}

	assert.True(t, obj.CanMutate("owner1", false))
	assert.False(t, obj.CanMutate("editor1", false), "edit level does not grant mutation")
	assert.False(t, obj.CanMutate("stranger", false))
	assert.False(t, obj.CanMutate("", false))
	assert.True(t, obj.CanMutate("stranger", true), "admin")
}

func TestOwnerID(t *testing.T) {
	obj := Object{User: map[string]string{"a": LevelRead, "b": LevelOwner}}
	assert.Equal(t, "b", obj.OwnerID())

	assert.Empty(t, (&Object{}).OwnerID())
}
