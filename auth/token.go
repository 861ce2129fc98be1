// Package auth verifies the opaque identity tokens presented by clients.
// Identity issuance itself lives outside this service; tokens are
// HMAC-signed JWTs minted by the identity provider (or by tests).
package auth

import (
	"errors"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrAuthRequired = errors.New("authentication required")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is a verified caller.
type Identity struct {
	UserID string
	Name   string
}

// Verifier validates bearer tokens against a shared HMAC secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

type claims struct {
	Name string `json:"name,omitempty"`
	gojwt.RegisteredClaims
}

// Verify parses and validates a bearer token. An empty token fails with
// ErrAuthRequired; anything unverifiable (bad signature, wrong algorithm,
// expired, missing subject) fails with ErrInvalidToken.
func (v *Verifier) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrAuthRequired
	}

	parsed, err := gojwt.ParseWithClaims(token, &claims{}, func(t *gojwt.Token) (any, error) {
		if _, ok := t.Method.(*gojwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || c.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID: c.Subject,
		Name:   c.Name,
	}, nil
}

// Issue mints a token for id, valid for ttl. Used by tests and by
// deployments that co-locate the identity provider.
func (v *Verifier) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, &claims{
		Name: id.Name,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.secret)
}
