package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// SessionTokenBytes is the entropy of a session token (hex-encoded to 64 chars)
	SessionTokenBytes = 32

	// ResetTokenBytes is the entropy of a password-reset token
	ResetTokenBytes = 32

	// TempPasswordBytes is the entropy of an admin-issued temporary password
	TempPasswordBytes = 12
)

// GenerateToken returns n random bytes hex-encoded. It is the single source
// of session tokens, reset tokens, and temporary passwords; hex keeps the
// values safe for cookies, URLs, and email bodies without further escaping.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateSessionToken returns a new opaque session identifier
func GenerateSessionToken() (string, error) {
	return GenerateToken(SessionTokenBytes)
}

// GenerateResetToken returns a new single-use password-reset token
func GenerateResetToken() (string, error) {
	return GenerateToken(ResetTokenBytes)
}

// GenerateTempPassword returns a random temporary password for invitations
func GenerateTempPassword() (string, error) {
	return GenerateToken(TempPasswordBytes)
}
