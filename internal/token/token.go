// Package token mints and verifies the short-lived signed credential
// that binds a realtime connection to an already-authenticated web
// identity. Tokens are never stored and cannot be revoked or renewed;
// a client that outlives its credential must request a fresh one
// against its still-valid web session.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failure reasons. Each is terminal for the connection
// attempt that presented the credential.
var (
	ErrMissingToken     = errors.New("token: missing credential")
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrExpired          = errors.New("token: credential expired")
	ErrMissingRole      = errors.New("token: missing role claim")
)

// Participant roles. Exactly two exist; broadcasts carry the role so
// receivers can tell clinician from client.
const (
	RoleClinician = "CLINICIAN"
	RoleClient    = "CLIENT"
)

// Identity is the authenticated web identity carried by a credential.
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// Claims is the credential payload.
type Claims struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies realtime credentials with a shared
// process-wide secret, read-only after startup.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a credential for id, expiring after the configured TTL.
// Expiration is fixed at issuance regardless of how long the caller's
// web session has left.
func (i *Issuer) Issue(id Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: id.UserID,
		Name:   id.Name,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign credential: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded identity.
// A credential without a role claim is rejected even if otherwise
// valid. Failures map onto exactly one of the four sentinel errors;
// a malformed token is indistinguishable from a forged one and reports
// ErrInvalidSignature.
func (i *Issuer) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidSignature
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidSignature
	}
	if claims.Role == "" {
		return nil, ErrMissingRole
	}

	return &Identity{UserID: claims.UserID, Name: claims.Name, Role: claims.Role}, nil
}
