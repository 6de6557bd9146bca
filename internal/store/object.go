package store

// Permission levels in an object's user map.
const (
	LevelOwner = "owner"
	LevelRead  = "read"
	LevelEdit  = "edit"
)

// Visibility values.
const (
	VisibilityPublic     = "public"
	VisibilityPrivate    = "private"
	VisibilityRestricted = "restricted"
)

// Defaults applied by reconciliation.
const (
	DefaultName       = "New Object"
	DefaultType       = "project"
	DefaultVisibility = VisibilityPublic
	DefaultAuthor     = "Artix"
)

// Object is the canonical record for one stored entity: its persisted config
// after defaulting, migration, and pruning. Author is derived from the owner
// entry of the user map and never persisted.
type Object struct {
	ID           string            `yaml:"id" json:"id"`
	Name         string            `yaml:"name" json:"name"`
	DateCreated  string            `yaml:"dateCreated" json:"dateCreated"`
	DateModified string            `yaml:"dateModified" json:"dateModified"`
	Type         string            `yaml:"type" json:"type"`
	Visibility   string            `yaml:"visibility" json:"visibility"`
	User         map[string]string `yaml:"user" json:"user"`
	Description  string            `yaml:"description" json:"description"`
	BasePath     string            `yaml:"basePath" json:"basePath"`
	CoverImage   string            `yaml:"coverImage" json:"coverImage"`
	CardImages   []string          `yaml:"cardImages" json:"cardImages"`
	Tags         []string          `yaml:"tags" json:"tags"`

	Author string `yaml:"-" json:"author"`
}

// rawConfig is an object's config file as found on disk, before
// reconciliation. It carries the legacy permission fields so the migration
// chain can consume them.
type rawConfig struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	DateCreated  string            `yaml:"dateCreated"`
	DateModified string            `yaml:"dateModified"`
	Type         string            `yaml:"type"`
	Visibility   string            `yaml:"visibility"`
	User         map[string]string `yaml:"user"`
	Description  string            `yaml:"description"`
	BasePath     string            `yaml:"basePath"`
	CoverImage   string            `yaml:"coverImage"`
	CardImages   []string          `yaml:"cardImages"`
	Tags         []string          `yaml:"tags"`

	// Legacy fields, consumed by migration and never written back.
	Author     string   `yaml:"author"`
	OwnerID    string   `yaml:"owner_id"`
	SharedWith []string `yaml:"shared_with"`
}

// OwnerID returns the user id holding the owner level, or "" if none.
func (o *Object) OwnerID() string {
	for uid, level := range o.User {
		if level == LevelOwner {
			return uid
		}
	}
	return ""
}

// CanView reports whether the given caller may see this object. An anonymous
// caller is represented by an empty userID with admin false. Any permission
// level grants visibility.
func (o *Object) CanView(userID string, admin bool) bool {
	if o.Visibility == VisibilityPublic {
		return true
	}
	if admin {
		return true
	}
	if userID == "" {
		return false
	}
	_, ok := o.User[userID]
	return ok
}

// CanMutate reports whether the given caller may update or delete this object.
// Only the owner and admins may mutate.
func (o *Object) CanMutate(userID string, admin bool) bool {
	if admin {
		return true
	}
	return userID != "" && o.User[userID] == LevelOwner
}

// ValidVisibility reports whether v is an accepted visibility value.
func ValidVisibility(v string) bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityRestricted:
		return true
	}
	return false
}
