// Package token verifies the session tokens minted by the auth service.
// The relay never issues tokens to clients; Issue exists for the mktoken
// tool and for tests.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoCookie means the handshake carried no Cookie header at all.
	ErrNoCookie = errors.New("no cookie header")
	// ErrNoToken means the Cookie header had no token entry.
	ErrNoToken = errors.New("no token cookie")
	// ErrEmptyToken means a token entry was present but empty.
	ErrEmptyToken = errors.New("empty token")
	// ErrInvalidToken means the token was malformed or its signature
	// did not verify.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are the identity claims carried by a session token.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// FromCookieHeader extracts the token from a raw Cookie header value and
// verifies it. The header is a semicolon-separated list of name=value
// pairs; the token lives under the "token" name. Every failure path
// returns a distinct error so the handshake can be rejected with a
// precise reason.
func FromCookieHeader(raw string, secret []byte) (*Claims, error) {
	if raw == "" {
		return nil, ErrNoCookie
	}

	var tok string
	found := false
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if value, ok := strings.CutPrefix(pair, "token="); ok {
			tok = strings.TrimSpace(value)
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNoToken
	}
	if tok == "" {
		return nil, ErrEmptyToken
	}

	return Verify(tok, secret)
}

// Verify parses and validates a signed session token. Expiry is enforced
// only when the token carries an exp claim; the auth service issues
// tokens without one.
func Verify(tok string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Issue creates a signed HS256 session token for the given identity.
// A zero ttl issues a token with no expiry.
func Issue(userID, username string, secret []byte, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(secret)
}
