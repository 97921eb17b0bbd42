// Package auth — password hashing utilities.
//
// bcrypt is deliberately slow, which is the security property: brute-forcing
// a leaked table of bcrypt hashes is expensive in a way that MD5 or SHA-256
// tables are not. It also generates and embeds a per-password salt, so no
// separate salt column is needed.
//
// GitHub OAuth is codetutor's primary identity provider, so this service is
// unused in the main login flow today; it stays wired for a future
// email/password option.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on a
// modern server: negligible at login, brutal for an attacker. Tune so that
// hashing stays in the 200-300ms range on production hardware.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification. It's a struct
// rather than free functions so tests can inject a lower cost.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a caller-chosen
// cost. Tests pass 4 (the bcrypt minimum) to skip the ~250ms per hash.
// Never use low costs in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt. The output string
// embeds version, cost, and salt; store it directly.
//
// Plaintexts over 72 bytes are rejected: bcrypt silently truncates at 72,
// and silent truncation of a password is worse than an error.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether plaintext matches a stored bcrypt hash: nil on
// match, non-nil otherwise. bcrypt compares in constant time, so response
// timing leaks nothing about how close a guess was.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
