// Package repositories implements the data access layer (repository pattern) for the portal.
// Each repository type encapsulates all database queries for a domain entity.
// Handlers never issue SQL directly — all database access goes through this layer, which makes query logic testable in isolation and prevents accidental cross-domain data access.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/portal-boost/portal/internal/db/models"
)

// UserRepository handles profile database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, password, full_name, role, must_change_password,
		reset_token, reset_token_expires, is_active, last_access, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Password,
		&user.FullName,
		&user.Role,
		&user.MustChangePassword,
		&user.ResetToken,
		&user.ResetTokenExpires,
		&user.IsActive,
		&user.LastAccess,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser creates a new user
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO profiles (id, email, password, full_name, role, must_change_password, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Password,
		user.FullName,
		user.Role,
		user.MustChangePassword,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)

	return err
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM profiles WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, userID))
}

// GetUserByEmail retrieves a user by email, matched case-insensitively
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM profiles WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// UpdateUser updates a user's profile fields (not credentials)
func (r *UserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE profiles
		SET email = $2, full_name = $3, role = $4, is_active = $5, updated_at = $6
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.FullName,
		user.Role,
		user.IsActive,
		user.UpdatedAt,
	)

	return err
}

// SetPassword stores a new password hash and clears the forced-change flag in
// a single statement, so a crash can never leave a new password paired with a
// stale must_change_password.
func (r *UserRepository) SetPassword(ctx context.Context, userID uuid.UUID, hash string) (bool, error) {
	query := `
		UPDATE profiles
		SET password = $2, must_change_password = FALSE, updated_at = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID, hash, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetTempPassword stores a temporary password hash and forces a change on next login
func (r *UserRepository) SetTempPassword(ctx context.Context, userID uuid.UUID, hash string) (bool, error) {
	query := `
		UPDATE profiles
		SET password = $2, must_change_password = TRUE, updated_at = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID, hash, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetResetToken stores a reset token and its expiry on the user row
func (r *UserRepository) SetResetToken(ctx context.Context, userID uuid.UUID, token string, expires time.Time) error {
	query := `
		UPDATE profiles
		SET reset_token = $2, reset_token_expires = $3, updated_at = $4
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID, token, expires.UTC(), time.Now().UTC())
	return err
}

// RedeemResetToken atomically consumes a reset token: the new password hash is
// stored, the forced-change flag and both token columns are cleared, all in
// one UPDATE guarded by the token match and expiry check. Returns false when
// no row matched (unknown token, already used, or expired) — callers cannot
// tell which, and clients are told even less.
func (r *UserRepository) RedeemResetToken(ctx context.Context, token, hash string, now time.Time) (bool, error) {
	query := `
		UPDATE profiles
		SET password = $2, must_change_password = FALSE,
		    reset_token = NULL, reset_token_expires = NULL, updated_at = $3
		WHERE reset_token = $1 AND reset_token_expires > $3
	`
	res, err := r.db.ExecContext(ctx, query, token, hash, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TouchLastAccess records a login timestamp. Failures are the caller's problem
// to downgrade; the query itself stays trivial on purpose.
func (r *UserRepository) TouchLastAccess(ctx context.Context, userID uuid.UUID, at time.Time) error {
	query := `UPDATE profiles SET last_access = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, userID, at.UTC())
	return err
}

// DeleteUser deletes a user (cascades to sessions and page access)
func (r *UserRepository) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM profiles WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

// ListUsers retrieves a paginated list of users
func (r *UserRepository) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM profiles`
	err := r.db.QueryRowContext(ctx, countQuery).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + userColumns + `
		FROM profiles
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	return users, total, rows.Err()
}
