// Package auth gates HTTP routes on HS256 JSON Web Tokens.
//
// Tokens carry the user id in "sub" and a "roles" array. Reading sessions
// require [RoleStudent]; results and definitions require [RoleTeacher] or
// [RoleAdmin]. Browsers cannot set headers on websocket upgrades, so
// [Require] also accepts the token in the access_token query parameter.
package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role names a permission set.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// ErrInvalidToken is wrapped by every verification failure.
var ErrInvalidToken = errors.New("auth: invalid token")

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Roles  []Role
}

// HasAny reports whether p holds at least one of roles. An empty roles list
// admits any authenticated principal.
func (p Principal) HasAny(roles ...Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if slices.Contains(p.Roles, r) {
			return true
		}
	}
	return false
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by [Require].
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

type claims struct {
	Roles []Role `json:"roles"`
	jwt.RegisteredClaims
}

// Verifier validates tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewVerifier returns a verifier for tokens issued by issuer. An empty
// issuer disables the issuer check.
func NewVerifier(secret []byte, issuer string) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: secret must not be empty")
	}
	return &Verifier{secret: secret, issuer: issuer, now: time.Now}, nil
}

// Verify checks signature, expiry and issuer and returns the principal.
func (v *Verifier) Verify(token string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	roles := make([]Role, 0, len(c.Roles))
	for _, r := range c.Roles {
		if r.Valid() {
			roles = append(roles, r)
		}
	}
	return Principal{UserID: c.Subject, Roles: roles}, nil
}

// Signer issues tokens. It is used by the token command and by tests.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewSigner returns a signer using the same secret and issuer as the
// matching [Verifier].
func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: secret must not be empty")
	}
	return &Signer{secret: secret, issuer: issuer, now: time.Now}, nil
}

// Sign returns a token for userID holding roles and valid for ttl.
func (s *Signer) Sign(userID string, ttl time.Duration, roles ...Role) (string, error) {
	if userID == "" {
		return "", errors.New("auth: user id must not be empty")
	}
	if ttl <= 0 {
		return "", errors.New("auth: ttl must be positive")
	}
	for _, r := range roles {
		if !r.Valid() {
			return "", fmt.Errorf("auth: unknown role %q", r)
		}
	}
	now := s.now()
	c := claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}
