package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// User is a stored credential record. Password holds the scrypt hash,
// never plaintext, and is excluded from JSON responses.
type User struct {
	ID       string `yaml:"id" json:"id"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
	Role     string `yaml:"role" json:"role"`
}

// UserPatch describes a partial user update. Nil fields are left unchanged.
type UserPatch struct {
	Username *string
	Password *string // already hashed by the caller
	Role     *string
}

// UserStore persists the user collection as a YAML sequence in a single file.
// A malformed or missing file degrades to an empty collection.
type UserStore struct {
	path string
	mu   sync.Mutex
}

// NewUserStore creates a user store backed by the given file path.
func NewUserStore(path string) *UserStore {
	return &UserStore{path: path}
}

// List returns all users.
func (s *UserStore) List() ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// FindByUsername returns the user with the given username, or ErrNotFound.
func (s *UserStore) FindByUsername(username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.load() {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// FindByID returns the user with the given id, or ErrNotFound.
func (s *UserStore) FindByID(id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.load() {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// UserExists reports whether a user id is present. Used for token revalidation.
func (s *UserStore) UserExists(id string) bool {
	_, err := s.FindByID(id)
	return err == nil
}

// Create adds a new user. Fails with ErrDuplicateUsername if the username is taken.
func (s *UserStore) Create(user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.load()
	for _, u := range users {
		if u.Username == user.Username {
			return ErrDuplicateUsername
		}
	}

	users = append(users, user)
	return s.save(users)
}

// Update applies a patch to an existing user. Changing the username to one
// already held by another user fails with ErrDuplicateUsername.
func (s *UserStore) Update(id string, patch UserPatch) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.load()
	idx := -1
	for i, u := range users {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrNotFound
	}

	if patch.Username != nil && *patch.Username != users[idx].Username {
		for _, u := range users {
			if u.Username == *patch.Username {
				return nil, ErrDuplicateUsername
			}
		}
		users[idx].Username = *patch.Username
	}
	if patch.Password != nil {
		users[idx].Password = *patch.Password
	}
	if patch.Role != nil {
		users[idx].Role = normalizeRole(*patch.Role)
	}

	if err := s.save(users); err != nil {
		return nil, err
	}
	updated := users[idx]
	return &updated, nil
}

// Delete removes a user by id. Dangling permission-map references held by
// objects are cleaned up lazily by the next reconciliation pass.
func (s *UserStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.load()
	kept := users[:0]
	for _, u := range users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	if len(kept) == len(users) {
		return ErrNotFound
	}
	return s.save(kept)
}

// Count returns the number of stored users.
func (s *UserStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.load())
}

func (s *UserStore) load() []User {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}

	var users []User
	if err := yaml.Unmarshal(data, &users); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("malformed users file, treating as empty")
		return nil
	}
	return users
}

func (s *UserStore) save(users []User) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(users)
	if err != nil {
		return fmt.Errorf("marshal users: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write users file: %w", err)
	}
	return nil
}

// normalizeRole collapses any unknown role to "user".
func normalizeRole(role string) string {
	if role == "admin" {
		return "admin"
	}
	return "user"
}
