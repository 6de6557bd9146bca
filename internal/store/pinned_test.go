package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPinnedStoreReplaceAndList(t *testing.T) {
	tmpDir := t.TempDir()
	objectsDir := filepath.Join(tmpDir, "objects")
	require.NoError(t, os.MkdirAll(filepath.Join(objectsDir, "aaaa1111"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(objectsDir, "bbbb2222"), 0755))

	s := NewPinnedStore(filepath.Join(tmpDir, "pinned.yaml"), objectsDir)

	require.NoError(t, s.Replace([]string{"aaaa1111", "bbbb2222"}))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa1111", "bbbb2222"}, ids)
}

func TestPinnedStorePrunesStaleIDs(t *testing.T) {
	tmpDir := t.TempDir()
	objectsDir := filepath.Join(tmpDir, "objects")
	require.NoError(t, os.MkdirAll(filepath.Join(objectsDir, "aaaa1111"), 0755))

	path := filepath.Join(tmpDir, "pinned.yaml")
	s := NewPinnedStore(path, objectsDir)
	require.NoError(t, s.Replace([]string{"aaaa1111", "gone0000"}))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa1111"}, ids)

	// The pruned list was persisted.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored []string
	require.NoError(t, yaml.Unmarshal(data, &stored))
	assert.Equal(t, []string{"aaaa1111"}, stored)
}

func TestPinnedStoreEmptyAndMalformed(t *testing.T) {
	tmpDir := t.TempDir()
	objectsDir := filepath.Join(tmpDir, "objects")
	require.NoError(t, os.MkdirAll(objectsDir, 0755))

	path := filepath.Join(tmpDir, "pinned.yaml")
	s := NewPinnedStore(path, objectsDir)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))
	ids, err = s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPinnedStoreReplaceNil(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewPinnedStore(filepath.Join(tmpDir, "pinned.yaml"), filepath.Join(tmpDir, "objects"))

	require.NoError(t, s.Replace(nil))
	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}
