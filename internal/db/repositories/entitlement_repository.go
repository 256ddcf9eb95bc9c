// entitlement_repository.go implements EntitlementRepository, the per-user
// page allow-list. Assignment is a bulk replace: the admin UI always submits
// the complete desired set, so the old rows are deleted and the new ones
// inserted inside one transaction — a reader never observes the half-empty
// intermediate state.
package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/portal-boost/portal/internal/db/models"
)

// EntitlementRepository handles user_page_access database operations
type EntitlementRepository struct {
	db *sqlx.DB
}

// NewEntitlementRepository creates a new EntitlementRepository
func NewEntitlementRepository(db *sqlx.DB) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

// ReplaceForUser replaces the user's entire entitlement set transactionally
func (r *EntitlementRepository) ReplaceForUser(ctx context.Context, userID uuid.UUID, assignments []models.PageAssignment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_page_access WHERE user_id = $1`, userID); err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, a := range assignments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO user_page_access (user_id, page_id, enabled, created_at) VALUES ($1, $2, $3, $4)`,
			userID, a.PageID, a.Enabled, now,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListForUser returns the raw entitlement rows for a user
func (r *EntitlementRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.PageAccess, error) {
	var access []models.PageAccess
	query := `SELECT user_id, page_id, enabled, created_at FROM user_page_access WHERE user_id = $1 ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &access, query, userID)
	return access, err
}

// ListPagesForUser returns the pages a user is entitled to view, i.e. those
// with an enabled access row
func (r *EntitlementRepository) ListPagesForUser(ctx context.Context, userID uuid.UUID) ([]*models.Page, error) {
	var pages []*models.Page
	query := `
		SELECT p.id, p.slug, p.title, p.description, p.icon, p.workspace_id, p.report_id,
		       p.dataset_id, p.default_page_name, p.show_filter_pane, p.created_at, p.updated_at
		FROM pages p
		JOIN user_page_access upa ON upa.page_id = p.id
		WHERE upa.user_id = $1 AND upa.enabled = TRUE
		ORDER BY p.title ASC
	`
	err := r.db.SelectContext(ctx, &pages, query, userID)
	return pages, err
}

// HasAccess reports whether an enabled entitlement row exists for (user, page)
func (r *EntitlementRepository) HasAccess(ctx context.Context, userID, pageID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
		SELECT 1 FROM user_page_access WHERE user_id = $1 AND page_id = $2 AND enabled = TRUE
	)`
	err := r.db.GetContext(ctx, &exists, query, userID, pageID)
	return exists, err
}
