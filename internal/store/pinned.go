package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// PinnedStore persists an ordered list of pinned object ids. Entries whose
// backing object directory no longer exists are pruned on read.
type PinnedStore struct {
	path       string
	objectsDir string
	mu         sync.Mutex
}

// NewPinnedStore creates a pinned store backed by the given file path,
// validating entries against the given objects directory.
func NewPinnedStore(path, objectsDir string) *PinnedStore {
	return &PinnedStore{path: path, objectsDir: objectsDir}
}

// List returns the pinned ids, dropping any id without a backing object
// directory. The pruned list is persisted when it differs from what was stored.
func (s *PinnedStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.load()
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if info, err := os.Stat(filepath.Join(s.objectsDir, id)); err == nil && info.IsDir() {
			valid = append(valid, id)
		}
	}

	if len(valid) != len(ids) {
		log.Info().Int("removed", len(ids)-len(valid)).Msg("pruned stale pinned ids")
		if err := s.save(valid); err != nil {
			return nil, err
		}
	}
	return valid, nil
}

// Replace overwrites the pinned list verbatim. Entries are not validated;
// stale ids are cleaned up by the next List call.
func (s *PinnedStore) Replace(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ids == nil {
		ids = []string{}
	}
	return s.save(ids)
}

func (s *PinnedStore) load() []string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var ids []string
	if err := yaml.Unmarshal(data, &ids); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("malformed pinned file, treating as empty")
		return nil
	}
	return ids
}

func (s *PinnedStore) save(ids []string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal pinned ids: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write pinned file: %w", err)
	}
	return nil
}
