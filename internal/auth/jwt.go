// Package auth provides JWT issuing/validation, bcrypt password hashing, and
// the GitHub OAuth provider for the codetutor API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Learner visits /auth/github/login → redirected to GitHub
//  2. GitHub calls back /auth/github/callback with a code
//  3. Server exchanges the code for GitHub profile info, upserts the user
//  4. Server issues a JWT access token, stores it in an HttpOnly cookie
//  5. On later API calls, middleware reads the cookie, validates the JWT,
//     and puts the userID in the request context
//
// WHY JWT?
// The token is stateless: everything needed (userID, expiry) travels inside
// the signed token, and the HMAC signature means nobody can alter it without
// the secret. Validation needs no DB lookup.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer appears in the "iss" claim and is checked on validation, so a
// token minted by some other HS256 app can't be replayed here.
const tokenIssuer = "codetutor"

// AccessTokenLifetime is short on purpose: an exfiltrated cookie goes stale
// quickly. The desktop client re-authenticates transparently.
const AccessTokenLifetime = 15 * time.Minute

// TokenService signs and verifies JWTs with a single HMAC secret.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Use at least 32 bytes of random data in production, e.g.
// JWT_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims embeds jwt.RegisteredClaims; the internal user ID rides in the
// standard "sub" (Subject) field.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs an access token for the given userID,
// valid for AccessTokenLifetime.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, AccessTokenLifetime)
}

// GenerateWithDuration creates a token with a custom expiry. Used by tests
// (to mint an already-expired token) and available for longer-lived tokens.
//
// Signing algorithm is HS256: symmetric, one key for signing and verifying.
// Fine for a single-server deployment like this one.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the userID from its
// "sub" claim.
//
// The jwt library checks the signature, expiry, and issuer. We additionally
// pin the algorithm to HS256 — both in the keyfunc and via WithValidMethods —
// so a token claiming alg "none" (or an asymmetric alg) is rejected before
// its signature is even considered.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
