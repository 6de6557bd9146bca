package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Tag is a global taggable label. Names are unique case-insensitively.
type Tag struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// TagCount is a tag together with the number of objects referencing it.
type TagCount struct {
	Tag
	Count int `json:"count"`
}

// TagStore persists the tag registry as a YAML sequence in a single file.
// A malformed or missing file degrades to an empty registry.
type TagStore struct {
	path string
	mu   sync.Mutex
}

// NewTagStore creates a tag store backed by the given file path.
func NewTagStore(path string) *TagStore {
	return &TagStore{path: path}
}

// List returns all registered tags.
func (s *TagStore) List() ([]Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// IDs returns the set of registered tag ids.
func (s *TagStore) IDs() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]bool)
	for _, t := range s.load() {
		ids[t.ID] = true
	}
	return ids
}

// Create registers a new tag. Fails with ErrDuplicateName if a tag with the
// same name already exists, compared case-insensitively.
func (s *TagStore) Create(name string) (*Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := s.load()
	for _, t := range tags {
		if strings.EqualFold(t.Name, name) {
			return nil, ErrDuplicateName
		}
	}

	id := GenerateID()
	for s.hasID(tags, id) {
		id = GenerateID()
	}

	tag := Tag{ID: id, Name: name}
	tags = append(tags, tag)
	if err := s.save(tags); err != nil {
		return nil, err
	}
	return &tag, nil
}

// Rename changes a tag's name. Fails with ErrNotFound if the id is absent and
// ErrDuplicateName if the new name collides with a different tag.
func (s *TagStore) Rename(id, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := s.load()
	idx := -1
	for i, t := range tags {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return ErrNotFound
	}

	for _, t := range tags {
		if t.ID != id && strings.EqualFold(t.Name, newName) {
			return ErrDuplicateName
		}
	}

	tags[idx].Name = newName
	return s.save(tags)
}

// Delete removes a tag by id. Fails with ErrNotFound if absent.
func (s *TagStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := s.load()
	kept := tags[:0]
	for _, t := range tags {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(tags) {
		return ErrNotFound
	}
	return s.save(kept)
}

// ListWithUsage returns every registered tag with its usage count across the
// given reconciled objects. Tags with zero references are removed from the
// registry as a side effect; the returned list still includes them (with a
// zero count) so callers see the pre-prune registry exactly once.
func (s *TagStore) ListWithUsage(objects []Object) ([]TagCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := s.load()

	counts := make(map[string]int)
	for _, obj := range objects {
		for _, tid := range obj.Tags {
			counts[tid]++
		}
	}

	active := tags[:0:0]
	for _, t := range tags {
		if counts[t.ID] > 0 {
			active = append(active, t)
		}
	}
	if len(active) != len(tags) {
		log.Info().Int("removed", len(tags)-len(active)).Msg("pruned unused tags")
		if err := s.save(active); err != nil {
			return nil, err
		}
	}

	result := make([]TagCount, 0, len(tags))
	for _, t := range tags {
		result = append(result, TagCount{Tag: t, Count: counts[t.ID]})
	}
	return result, nil
}

func (s *TagStore) hasID(tags []Tag, id string) bool {
	for _, t := range tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (s *TagStore) load() []Tag {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var tags []Tag
	if err := yaml.Unmarshal(data, &tags); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("malformed tags file, treating as empty")
		return nil
	}
	return tags
}

func (s *TagStore) save(tags []Tag) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write tags file: %w", err)
	}
	return nil
}
