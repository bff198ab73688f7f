package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAdmin = "admin"
	roleAdmin      = "admin"

	// DefaultAdminTTL is used when NewAdminTokenIssuer is given a zero TTL.
	DefaultAdminTTL = 8 * time.Hour
)

// ErrInvalidToken is returned by Verify for any token that fails validation.
var ErrInvalidToken = errors.New("invalid admin token")

// AdminClaims are the JWT claims of an operator session token.
type AdminClaims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
	Role string `json:"role"`
}

// AdminTokenIssuer issues and verifies admin session JWTs signed with a
// shared HMAC key.
type AdminTokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewAdminTokenIssuer creates an AdminTokenIssuer.
//
//	key   : HMAC signing key; must be non-empty.
//	issuer: the "iss" claim value.
//	ttl   : token lifetime (default: 8 hours).
func NewAdminTokenIssuer(key []byte, issuer string, ttl time.Duration) (*AdminTokenIssuer, error) {
	if len(key) == 0 {
		return nil, errors.New("admin signing key is empty")
	}
	if ttl == 0 {
		ttl = DefaultAdminTTL
	}
	return &AdminTokenIssuer{key: key, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// NewRandomAdminTokenIssuer creates an issuer with a fresh 32-byte key.
// Tokens it signs do not survive a restart.
func NewRandomAdminTokenIssuer(issuer string, ttl time.Duration) (*AdminTokenIssuer, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate admin signing key: %w", err)
	}
	return NewAdminTokenIssuer(key, issuer, ttl)
}

// TTL returns the lifetime of issued tokens.
func (a *AdminTokenIssuer) TTL() time.Duration { return a.ttl }

// Issue creates a signed admin token.
func (a *AdminTokenIssuer) Issue() (string, error) {
	now := a.now().UTC()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			ID:        uuid.New().String(),
		},
		Type: tokenTypeAdmin,
		Role: roleAdmin,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates an admin token, returning its claims.
func (a *AdminTokenIssuer) Verify(tokenStr string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&AdminClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return a.key, nil
		},
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != tokenTypeAdmin || claims.Role != roleAdmin {
		return nil, fmt.Errorf("%w: not an admin session token", ErrInvalidToken)
	}
	return claims, nil
}

// SecretMatches reports whether given equals want. Both sides are hashed
// first so the comparison time does not depend on either length.
func SecretMatches(given, want string) bool {
	g := sha256.Sum256([]byte(given))
	w := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(g[:], w[:]) == 1
}
