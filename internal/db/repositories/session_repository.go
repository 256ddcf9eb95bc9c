// session_repository.go implements SessionRepository, the persistence layer
// for opaque session tokens. The token value is the primary key; rows are
// removed lazily at validation time and in bulk by the background sweep.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/portal-boost/portal/internal/db/models"
)

// SessionRepository handles session database operations
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession inserts a new session row
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.Session) error {
	session.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO sessions (id, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.UserID,
		session.ExpiresAt.UTC(),
		session.CreatedAt,
	)

	return err
}

// GetSessionWithUser retrieves a session joined with its owning profile.
// Returns (nil, nil) when the token is unknown; expiry and account status are
// the caller's decision, so the row is returned as stored.
func (r *SessionRepository) GetSessionWithUser(ctx context.Context, token string) (*models.SessionWithUser, error) {
	query := `
		SELECT s.id, s.user_id, s.expires_at, s.created_at,
		       p.id, p.email, p.password, p.full_name, p.role, p.must_change_password,
		       p.reset_token, p.reset_token_expires, p.is_active, p.last_access, p.created_at, p.updated_at
		FROM sessions s
		JOIN profiles p ON p.id = s.user_id
		WHERE s.id = $1
	`

	var sw models.SessionWithUser
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&sw.Session.ID,
		&sw.Session.UserID,
		&sw.Session.ExpiresAt,
		&sw.Session.CreatedAt,
		&sw.User.ID,
		&sw.User.Email,
		&sw.User.Password,
		&sw.User.FullName,
		&sw.User.Role,
		&sw.User.MustChangePassword,
		&sw.User.ResetToken,
		&sw.User.ResetTokenExpires,
		&sw.User.IsActive,
		&sw.User.LastAccess,
		&sw.User.CreatedAt,
		&sw.User.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &sw, nil
}

// DeleteSession removes a session row; deleting an unknown token is a no-op
func (r *SessionRepository) DeleteSession(ctx context.Context, token string) error {
	query := `DELETE FROM sessions WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, token)
	return err
}

// DeleteSessionsForUser removes every session belonging to a user, forcing
// re-login everywhere (used when an account is deactivated)
func (r *SessionRepository) DeleteSessionsForUser(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM sessions WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

// DeleteExpired removes all sessions past their expiry and returns the count
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= $1`
	res, err := r.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountActive returns the number of unexpired sessions
func (r *SessionRepository) CountActive(ctx context.Context, now time.Time) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM sessions WHERE expires_at > $1`
	err := r.db.QueryRowContext(ctx, query, now.UTC()).Scan(&total)
	return total, err
}
