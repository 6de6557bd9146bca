// Package auth provides password hashing and session token handling for folioserve.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. These are fixed: changing them invalidates every stored
// hash, since the parameters are not packaged with the derived key.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltBytes    = 16
)

// HashPassword derives a storable hash from a plaintext password.
// The result is "salt:key" with both parts hex-encoded.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	saltHex := hex.EncodeToString(salt)
	key, err := scrypt.Key([]byte(password), []byte(saltHex), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}

	return saltHex + ":" + hex.EncodeToString(key), nil
}

// VerifyPassword checks a plaintext password against a stored "salt:key" hash.
// The comparison is constant-time.
func VerifyPassword(password, stored string) bool {
	salt, keyHex, ok := strings.Cut(stored, ":")
	if !ok {
		return false
	}

	want, err := hex.DecodeString(keyHex)
	if err != nil {
		return false
	}

	got, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(got, want) == 1
}
