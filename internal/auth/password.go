// Package auth provides authentication primitives for the portal: bcrypt
// password hashing/verification and opaque random token generation. Sessions
// are opaque server-side tokens, not signed claims — the session row in the
// database is the single source of truth, so deactivating a user or deleting
// a session takes effect on the very next request.
// See internal/middleware/auth.go for the request-time authentication logic
// that uses these primitives.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 12

// ErrPasswordMismatch is returned by VerifyPassword when the candidate does
// not match the stored hash. Any other error from VerifyPassword indicates an
// internal fault (e.g. a malformed hash in the database) and must not be
// treated as a simple wrong-password case.
var ErrPasswordMismatch = errors.New("auth: password does not match")

// HashPassword hashes a plaintext password with bcrypt at BcryptCost
func HashPassword(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashBytes), nil
}

// VerifyPassword compares a candidate password against a stored bcrypt hash.
// Returns nil on match, ErrPasswordMismatch on mismatch, and a wrapped error
// for any internal bcrypt failure.
func VerifyPassword(storedHash, candidate string) error {
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(candidate))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return fmt.Errorf("password verification failed: %w", err)
}
