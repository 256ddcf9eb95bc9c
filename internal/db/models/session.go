// Package models - session.go defines the opaque server-side session row.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Session represents a sessions row. ID is the opaque token itself; it is
// never logged and only ever travels inside the signed session cookie.
type Session struct {
	ID        string    `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Expired reports whether the session is past its expiry at the given instant
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionWithUser is the join of a session row with its owning profile,
// produced by the validation lookup.
type SessionWithUser struct {
	Session Session
	User    User
}
