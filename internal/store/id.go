package store

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateID returns a random 8-character hex identifier.
func GenerateID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
