package store

import "errors"

// Store error types.
var (
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrDuplicateName     = errors.New("name already exists")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrInvalidVisibility = errors.New("invalid visibility")
)
