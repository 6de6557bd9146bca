package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry is how long an issued session token stays valid.
const TokenExpiry = 7 * 24 * time.Hour

// Role names.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Token verification errors.
var (
	ErrTokenInvalid    = errors.New("token invalid")
	ErrTokenExpired    = errors.New("token expired")
	ErrIdentityRevoked = errors.New("identity revoked")
)

// Identity is the authenticated caller embedded in a session token.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin returns true if the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Claims is the JWT payload for a session token.
type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserResolver reports whether a user id still exists in the credential store.
// Tokens for deleted users fail verification, which makes user deletion
// self-enforcing without a revocation list.
type UserResolver interface {
	UserExists(id string) bool
}

// TokenIssuer issues and verifies signed session tokens.
type TokenIssuer struct {
	secret []byte
	expiry time.Duration
}

// NewTokenIssuer creates a token issuer signing with the given shared secret.
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		expiry: TokenExpiry,
	}
}

// Issue creates a signed token for the given identity.
func (ti *TokenIssuer) Issue(id Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   id.ID,
		Username: id.Username,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "folioserve",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, then re-resolves the embedded user id
// against the live credential store. A structurally valid token whose backing
// user no longer exists fails with ErrIdentityRevoked.
func (ti *TokenIssuer) Verify(tokenString string, users UserResolver) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ti.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return Identity{}, ErrTokenInvalid
	}

	if users != nil && !users.UserExists(claims.UserID) {
		return Identity{}, ErrIdentityRevoked
	}

	return Identity{
		ID:       claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}
